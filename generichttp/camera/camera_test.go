package camera

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/picamlab/camera"
	"github.com/nasa-jpl/picamlab/imgrec"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/picam/demo"
	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/session"
)

var _ camera.Sci = (*session.Device)(nil)

func newCamera(t *testing.T, rec *imgrec.Recorder) (*HTTPCamera, *session.Device, http.Handler) {
	t.Helper()
	ctl := session.New(demo.New())
	require.NoError(t, ctl.Initialize())
	d, err := ctl.OpenFirst()
	require.NoError(t, err)
	t.Cleanup(func() {
		d.Close()
		ctl.Uninitialize()
	})
	require.NoError(t, d.SetRois(picam.Rois{{X: 0, Width: 10, XBinning: 1, Y: 0, Height: 10, YBinning: 1}}))
	require.NoError(t, d.SetFloat(picam.ExposureTime, 1))
	require.NoError(t, d.Commit())
	h := NewHTTPCamera(d, rec)
	mux := chi.NewRouter()
	h.RT().Bind(mux)
	return h, d, mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestFramePNG(t *testing.T) {
	_, _, mux := newCamera(t, nil)
	w := do(mux, http.MethodGet, "/frame?fmt=png", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	g, ok := img.(*image.Gray16)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 10, 10), g.Bounds())
	assert.Equal(t, demo.PixelValue(0, 13), g.Gray16At(3, 1).Y)
}

func TestFrameRotated(t *testing.T) {
	_, _, mux := newCamera(t, nil)
	w := do(mux, http.MethodGet, "/frame?fmt=png&rot=90", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	// row 1 column 3 moves to row 3 column 8
	assert.Equal(t, demo.PixelValue(0, 13), img.(*image.Gray16).Gray16At(8, 3).Y)

	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/frame?fmt=png&rot=45", "").Code)
}

func TestFrameFormats(t *testing.T) {
	_, d, mux := newCamera(t, nil)
	w := do(mux, http.MethodGet, "/frame", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = do(mux, http.MethodGet, "/frame?fmt=fits", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("SIMPLE")))

	w = do(mux, http.MethodGet, "/frame?fmt=raw", "")
	require.Equal(t, http.StatusOK, w.Code)
	l, err := d.Layout()
	require.NoError(t, err)
	assert.Len(t, w.Body.Bytes(), l.Stride)
	sum := strconv.FormatUint(uint64(readout.Checksum(w.Body.Bytes())), 10)
	assert.Equal(t, sum, w.Header().Get("X-Readout-Checksum"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "-10x10-1-16bit.raw")

	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/frame?fmt=bmp", "").Code)
}

func TestExposureTime(t *testing.T) {
	_, d, mux := newCamera(t, nil)
	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/exposure-time", `{"f64": 0.002}`).Code)
	assert.JSONEq(t, `{"f64":0.002}`, do(mux, http.MethodGet, "/exposure-time", "").Body.String())
	assert.Equal(t, session.Configured, d.State())

	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/exposure-time?exposureTime=5ms", "").Code)
	ms, err := d.Float(picam.ExposureTime)
	require.NoError(t, err)
	assert.Equal(t, 5.0, ms)

	require.Equal(t, http.StatusOK, do(mux, http.MethodGet, "/frame?fmt=png&exposureTime=3ms", "").Code)
	ms, _ = d.Float(picam.ExposureTime)
	assert.Equal(t, 3.0, ms)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/exposure-time?exposureTime=soon", "").Code)
}

func TestBurst(t *testing.T) {
	_, _, mux := newCamera(t, nil)
	w := do(mux, http.MethodPost, "/burst", `{"frames": 3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f, err := fitsio.Open(w.Body)
	require.NoError(t, err)
	defer f.Close()
	img := f.HDU(0).(fitsio.Image)
	assert.Equal(t, []int{10, 10, 3}, img.Header().Axes())
	assert.Equal(t, session.HeaderVersion+"+burst", img.Header().Get("HDRVER").Value)

	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/burst", `{"frames": 0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/burst?fmt=png", `{"frames": 2}`).Code)
}

func TestParameters(t *testing.T) {
	_, d, mux := newCamera(t, nil)
	assert.JSONEq(t, `{"f64":1}`, do(mux, http.MethodGet, "/parameter/ExposureTime", "").Body.String())
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/parameter/FluxCapacitance", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/parameter/Rois", "").Code)

	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/parameter/adcanaloggain", `{"f64": 3}`).Code)
	assert.JSONEq(t, `{"f64":3}`, do(mux, http.MethodGet, "/parameter/AdcAnalogGain", "").Body.String())
	assert.Equal(t, session.DeviceOpen, d.State())
	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/commit", "").Code)
	assert.Equal(t, session.Configured, d.State())

	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/parameter/AdcSpeed", `{"f64": 123}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/commit", "").Code)
	assert.Equal(t, http.StatusConflict, do(mux, http.MethodGet, "/frame", "").Code)
}

func TestRois(t *testing.T) {
	_, d, mux := newCamera(t, nil)
	assert.JSONEq(t, `{"width":1340,"height":100}`, do(mux, http.MethodGet, "/sensor-size", "").Body.String())

	body := `[{"x":10,"width":20,"xBinning":1,"y":5,"height":4,"yBinning":2}]`
	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/rois", body).Code)
	var rois picam.Rois
	require.NoError(t, json.Unmarshal(do(mux, http.MethodGet, "/rois", "").Body.Bytes(), &rois))
	require.Len(t, rois, 1)
	assert.Equal(t, 2, rois[0].Rows())

	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/rois/center", `{"int": 4}`).Code)
	rois, err := d.Rois()
	require.NoError(t, err)
	assert.Equal(t, picam.Roi{X: 668, Width: 4, XBinning: 1, Y: 48, Height: 4, YBinning: 1}, rois[0])

	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/rois/full", "").Code)
	rois, _ = d.Rois()
	assert.Equal(t, 1340, rois[0].Width)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/rois", `{`).Code)
}

func TestTemperature(t *testing.T) {
	_, _, mux := newCamera(t, nil)
	assert.Equal(t, http.StatusOK, do(mux, http.MethodGet, "/temperature", "").Code)
	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/temperature-setpoint", `{"f64": -60}`).Code)
	assert.JSONEq(t, `{"f64":-60}`, do(mux, http.MethodGet, "/temperature-setpoint", "").Body.String())
	w := do(mux, http.MethodGet, "/temperature-status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"str"`)
}

func TestRecorderCapturesFits(t *testing.T) {
	rec := &imgrec.Recorder{Root: t.TempDir(), Prefix: "pixis", Enabled: true}
	_, _, mux := newCamera(t, rec)
	w := do(mux, http.MethodGet, "/frame?fmt=fits", "")
	require.Equal(t, http.StatusOK, w.Code)
	b, err := os.ReadFile(rec.Last())
	require.NoError(t, err)
	assert.Equal(t, w.Body.Bytes(), b)

	// jpg is not recorded
	last := rec.Last()
	require.Equal(t, http.StatusOK, do(mux, http.MethodGet, "/frame?fmt=jpg", "").Code)
	assert.Equal(t, last, rec.Last())
	assert.Equal(t, http.StatusOK, do(mux, http.MethodGet, "/autowrite/last", "").Code)
}

func TestStreamEvents(t *testing.T) {
	h, d, mux := newCamera(t, nil)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wc, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer wc.Close()
	// let the handler subscribe
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/stream/latest", "").Code)
	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/stream", `{"bool": true}`).Code)
	assert.JSONEq(t, `{"bool":true}`, do(mux, http.MethodGet, "/stream", "").Body.String())
	assert.Equal(t, session.Acquiring, d.State())

	wc.SetReadDeadline(time.Now().Add(5 * time.Second))
	var u Update
	for u.Readouts == 0 {
		require.NoError(t, wc.ReadJSON(&u))
	}
	assert.Equal(t, d.String(), u.Camera)
	assert.True(t, u.Running)

	// synchronous frames wait for the stream
	assert.Equal(t, http.StatusConflict, do(mux, http.MethodGet, "/frame", "").Code)

	w := do(mux, http.MethodGet, "/stream/latest?fmt=png", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, http.StatusOK, do(mux, http.MethodPost, "/stream", `{"bool": false}`).Code)
	assert.False(t, h.Stream.Running())
	assert.Greater(t, h.Stream.Stats().Readouts, int64(0))
	assert.Equal(t, session.Configured, d.State())

	m := do(mux, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, m, "picam_readouts_total")
	assert.Contains(t, m, "picam_sensor_temperature_celcius")

	// the camera acquires again once the stream is over
	assert.Equal(t, http.StatusOK, do(mux, http.MethodGet, "/frame?fmt=png", "").Code)
}
