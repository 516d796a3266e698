package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"

	"github.com/nasa-jpl/picamlab/generichttp"
)

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func TestLockRefusesWrites(t *testing.T) {
	hits := 0
	rt := table{
		generichttp.MethodPath{Method: http.MethodPost, Path: "/frame"}: func(w http.ResponseWriter, r *http.Request) { hits++ },
		generichttp.MethodPath{Method: http.MethodGet, Path: "/frame"}:  func(w http.ResponseWriter, r *http.Request) { hits++ },
	}
	l := New()
	Inject(rt, l)
	mux := chi.NewRouter()
	mux.Use(l.Check)
	rt.RT().Bind(mux)

	do := func(method, path, body string) int {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/frame", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/lock", `{"bool": true}`))
	assert.True(t, l.Locked())
	assert.Equal(t, http.StatusLocked, do(http.MethodPost, "/frame", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/frame", ""))
	assert.Equal(t, 2, hits)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lock", nil))
	assert.JSONEq(t, `{"bool":true}`, w.Body.String())

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/lock", `{"bool": false}`))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/frame", ""))
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/lock", `yes`))
}
