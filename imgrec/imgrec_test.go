package imgrec

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/picamlab/generichttp"
)

func fixedDay() time.Time {
	return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
}

func TestWriteAndIncr(t *testing.T) {
	root := t.TempDir()
	r := &Recorder{Root: root, Prefix: "pixis", Enabled: true, now: fixedDay}
	assert.True(t, r.Active())

	_, err := r.Write([]byte("ab"))
	require.NoError(t, err)
	_, err = r.Write([]byte("cd"))
	require.NoError(t, err)
	first := filepath.Join(root, "2024-03-09", "pixis000000.fits")
	assert.Equal(t, first, r.Last())
	b, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(b))

	r.Incr()
	_, err = r.Write([]byte("ef"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2024-03-09", "pixis000001.fits"), r.Last())
}

func TestIncrSkipsOtherFiles(t *testing.T) {
	root := t.TempDir()
	r := &Recorder{Root: root, Prefix: "a", Ext: "raw", now: fixedDay}
	dir := filepath.Join(root, "2024-03-09")
	require.NoError(t, os.MkdirAll(dir, 0o777))
	for _, fn := range []string{"a000004.raw", "a000009.fits", "b000020.raw", "axyz.raw"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fn), nil, 0o644))
	}
	r.Incr()
	assert.Equal(t, 5, r.counter)
}

func TestInactive(t *testing.T) {
	var r *Recorder
	assert.False(t, r.Active())
	assert.False(t, (&Recorder{Enabled: true}).Active())
	assert.False(t, (&Recorder{Root: "/tmp"}).Active())
}

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func TestHTTPWrapper(t *testing.T) {
	root := t.TempDir()
	r := &Recorder{now: fixedDay}
	rt := table{}
	NewHTTPWrapper(r).Inject(rt)
	mux := chi.NewRouter()
	rt.RT().Bind(mux)
	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/autowrite/last", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/autowrite/root", `{"str":"`+filepath.ToSlash(root)+`"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/autowrite/prefix", `{"str":"cam"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/autowrite/enabled", `{"bool":true}`).Code)
	assert.JSONEq(t, `{"str":"cam"}`, do(http.MethodGet, "/autowrite/prefix", "").Body.String())
	assert.JSONEq(t, `{"bool":true}`, do(http.MethodGet, "/autowrite/enabled", "").Body.String())
	assert.True(t, r.Active())

	_, err := r.Write([]byte("frame"))
	require.NoError(t, err)
	w := do(http.MethodGet, "/autowrite/last", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "frame", w.Body.String())
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/autowrite/prefix", `{`).Code)
}
