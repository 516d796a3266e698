package generichttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubMuxSanitize(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"cam":      "/cam",
		"/cam/":    "/cam",
		" /a/b// ": "/a/b",
		"///":      "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, SubMuxSanitize(in), "input %q", in)
	}
}

func TestBindAndEndpoints(t *testing.T) {
	val := 2.0
	rt := RouteTable{
		MethodPath{Method: http.MethodGet, Path: "/value"}:  Get(func() (float64, error) { return val, nil }),
		MethodPath{Method: http.MethodPost, Path: "/value"}: Set(func(f float64) error { val = f; return nil }),
		MethodPath{Method: http.MethodGet, Path: "/broken"}: Get(func() (int, error) { return 0, errors.New("nope") }),
	}
	mux := chi.NewRouter()
	rt.Bind(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/value", strings.NewReader(`{"f64": 3.5}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.5, val)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/value", nil))
	assert.JSONEq(t, `{"f64":3.5}`, w.Body.String())

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/value", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	assert.JSONEq(t, `["GET /broken","GET /value","POST /value"]`, w.Body.String())
}

func TestStringAndBool(t *testing.T) {
	s, b := "", false
	mux := chi.NewRouter()
	RouteTable{
		MethodPath{Method: http.MethodPost, Path: "/s"}: Set(func(v string) error { s = v; return nil }),
		MethodPath{Method: http.MethodGet, Path: "/s"}:  Get(func() (string, error) { return s, nil }),
		MethodPath{Method: http.MethodPost, Path: "/b"}: Set(func(v bool) error { b = v; return nil }),
		MethodPath{Method: http.MethodGet, Path: "/b"}:  Get(func() (bool, error) { return b, nil }),
		MethodPath{Method: http.MethodPost, Path: "/i"}: Set(func(v int) error { return errors.New("refused") }),
	}.Bind(mux)

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/s", strings.NewReader(`{"str":"pixis"}`)))
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/b", strings.NewReader(`{"bool":true}`)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))
	assert.JSONEq(t, `{"str":"pixis"}`, w.Body.String())
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/b", nil))
	assert.JSONEq(t, `{"bool":true}`, w.Body.String())
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/i", strings.NewReader(`{"int":1}`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/i", strings.NewReader(`{"f64":1}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayloadKey(t *testing.T) {
	assert.Equal(t, "f64", payloadKey[float64]())
	assert.Equal(t, "int", payloadKey[int]())
	assert.Equal(t, "str", payloadKey[string]())
	assert.Equal(t, "bool", payloadKey[bool]())
}
