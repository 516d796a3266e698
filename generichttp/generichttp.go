// Package generichttp defines interfaces for generic devices
// and an extensible type that wraps them in an HTTP interface
package generichttp

import (
	"encoding/json"
	"go/types"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/picamlab/server"
)

// MethodPath is an HTTP method and a route pattern
type MethodPath struct {
	Method string
	Path   string
}

func (mp MethodPath) String() string {
	return mp.Method + " " + mp.Path
}

// RouteTable maps methods and paths to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints lists the routes in the table, sorted by path then method
func (rt RouteTable) Endpoints() []string {
	keys := make([]MethodPath, 0, len(rt))
	for k := range rt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path == keys[j].Path {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Path < keys[j].Path
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// Bind binds every route in the table to r, plus GET /endpoints which lists them
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
	r.Get("/endpoints", func(w http.ResponseWriter, req *http.Request) {
		server.WriteJSON(w, rt.Endpoints())
	})
}

// HTTPer is a type which has a route table
type HTTPer interface {
	RT() RouteTable
}

// SubMuxSanitize cleans a string for use as a chi mount point.
// The result starts with a slash and does not end with one, except "/" itself.
func SubMuxSanitize(str string) string {
	str = strings.TrimSpace(str)
	if !strings.HasPrefix(str, "/") {
		str = "/" + str
	}
	if len(str) > 1 {
		str = strings.TrimRight(str, "/")
		if str == "" {
			str = "/"
		}
	}
	return str
}

// Scalar is a value a server.HumanPayload can carry
type Scalar interface {
	float64 | int | string | bool
}

func payload(v interface{}) server.HumanPayload {
	switch x := v.(type) {
	case float64:
		return server.HumanPayload{T: types.Float64, Float: x}
	case int:
		return server.HumanPayload{T: types.Int, Int: x}
	case string:
		return server.HumanPayload{T: types.String, String: x}
	default:
		b, _ := x.(bool)
		return server.HumanPayload{T: types.Bool, Bool: b}
	}
}

// payloadKey is the JSON key of a payload of T
func payloadKey[T Scalar]() string {
	var zero T
	hp := payload(zero)
	switch hp.T {
	case types.Float64:
		return "f64"
	case types.Int:
		return "int"
	case types.String:
		return "str"
	}
	return "bool"
}

// Get calls a getter and responds with its value as json,
// {'f64': value} for floats, 'int', 'str' and 'bool' for the rest
func Get[T Scalar](fcn func() (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := payload(v)
		hp.EncodeAndRespond(w, r)
	}
}

// Set parses a JSON input shaped like the output of Get and calls fcn with it
func Set[T Scalar](fcn func(T) error) http.HandlerFunc {
	key := payloadKey[T]()
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body := map[string]T{}
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		v, ok := body[key]
		if !ok {
			http.Error(w, "body is missing the key "+key, http.StatusBadRequest)
			return
		}
		err = fcn(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
