package host

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/picam/demo"
	"github.com/nasa-jpl/picamlab/session"
)

func TestInitAcquireClose(t *testing.T) {
	h := New(demo.New())
	r := h.Do(Init, Params{ExposureMs: 1})
	require.Equal(t, picam.None, r.Code, r.Err)
	assert.Nil(t, r.Image)
	assert.Equal(t, MinAcquireTimeout, h.Timeout())

	r = h.Do(Acquire, Params{})
	require.Equal(t, picam.None, r.Code, r.Err)
	w, ht, _ := demo.SensorSize(picam.ModelPixis100F)
	require.Len(t, r.Image, ht)
	require.Len(t, r.Image[0], w)
	assert.Equal(t, demo.PixelValue(0, w+3), r.Image[1][3])

	r = h.Do(Close, Params{})
	assert.Equal(t, picam.None, r.Code, r.Err)
	assert.Equal(t, session.Uninitialized, h.Ctl.State())
}

func TestRowBinning(t *testing.T) {
	h := New(demo.New())
	defer h.Do(Close, Params{})
	require.Equal(t, picam.None, h.Do(Init, Params{}).Code)
	r := h.Do(Acquire, Params{ExposureMs: 1, RowBins: 4, ShutterMode: picam.ShutterAlwaysOpen})
	require.Equal(t, picam.None, r.Code, r.Err)
	w, _, _ := demo.SensorSize(picam.ModelPixis100F)
	require.Len(t, r.Image, 1)
	assert.Len(t, r.Image[0], w)
	shutter, err := h.dev.Int(picam.ShutterTimingMode)
	require.NoError(t, err)
	assert.Equal(t, picam.ShutterAlwaysOpen, shutter)
}

func TestSlowReadoutStretchesTimeout(t *testing.T) {
	h := New(demo.New())
	defer h.Do(Close, Params{})
	require.Equal(t, picam.None, h.Do(Init, Params{ExposureMs: 2500}).Code)
	assert.Greater(t, h.Timeout(), 5*time.Second)
}

func TestAcquireBeforeInit(t *testing.T) {
	h := New(demo.New())
	r := h.Do(Acquire, Params{})
	assert.NotEqual(t, picam.None, r.Code)
	assert.Contains(t, r.Err, "no camera open")
	assert.Nil(t, r.Image)
	assert.Equal(t, picam.None, h.Do(Command(7), Params{}).Code)
}

func TestInvalidParameterReportsCode(t *testing.T) {
	h := New(demo.New())
	defer h.Do(Close, Params{})
	require.Equal(t, picam.None, h.Do(Init, Params{}).Code)
	r := h.Do(Acquire, Params{ShutterMode: 9})
	assert.NotEqual(t, picam.None, r.Code)
	assert.Nil(t, r.Image)
}

func TestAttachedKeepsDeviceOpen(t *testing.T) {
	ctl := session.New(demo.New())
	require.NoError(t, ctl.Initialize())
	d, err := ctl.OpenFirst()
	require.NoError(t, err)
	defer func() {
		d.Close()
		ctl.Uninitialize()
	}()
	h := Attach(ctl, d)
	require.Equal(t, picam.None, h.Do(Init, Params{ExposureMs: 2}).Code)
	assert.Equal(t, session.Configured, d.State())
	r := h.Do(Acquire, Params{RowBins: 2})
	require.Equal(t, picam.None, r.Code, r.Err)
	assert.Len(t, r.Image, 1)
	require.Equal(t, picam.None, h.Do(Close, Params{}).Code)
	assert.Equal(t, session.Configured, d.State())
	assert.Equal(t, session.Initialized, ctl.State())
}

func TestHTTPCommand(t *testing.T) {
	h := New(demo.New())
	defer h.Do(Close, Params{})
	hf := HTTPCommand(h)
	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		hf(w, httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(body)))
		return w
	}
	w := post(`{"cmd": 0, "exposure": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, picam.None, res.Code)

	w = post(`{"cmd": 1, "rowBins": 100}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, picam.None, res.Code, res.Err)
	require.Len(t, res.Image, 1)
	wd, _, _ := demo.SensorSize(picam.ModelPixis100F)
	assert.Len(t, res.Image[0], wd)

	assert.Equal(t, http.StatusBadRequest, post(`{"cmd":`).Code)
}
