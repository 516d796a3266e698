// Package locker provides an HTTP middleware which allows an HTTPHandler to be locked, returning 423 (locked)
package locker

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/nasa-jpl/picamlab/generichttp"
)

// Inject adds GET and POST /lock to a generichttp.HTTPer.
// The body is {"bool": true} to lock and {"bool": false} to unlock.
func Inject(other generichttp.HTTPer, l *Locker) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = generichttp.Get(l.get)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = generichttp.Set(l.set)
}

// Locker refuses writes while locked without blocking anybody.
// Paths containing any of DoNotProtect are never refused.
type Locker struct {
	locked atomic.Bool

	// DoNotProtect is a list of path fragments not to apply the lock to
	DoNotProtect []string
}

// New returns a new Locker with DoNotProtect prepopulated with "lock"
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock"}}
}

// Lock the locker
func (l *Locker) Lock() { l.locked.Store(true) }

// Unlock the locker
func (l *Locker) Unlock() { l.locked.Store(false) }

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool { return l.locked.Load() }

func (l *Locker) get() (bool, error) { return l.Locked(), nil }

func (l *Locker) set(b bool) error {
	l.locked.Store(b)
	return nil
}

func (l *Locker) protects(r *http.Request) bool {
	if r.Method == http.MethodGet {
		return false
	}
	for _, str := range l.DoNotProtect {
		if strings.Contains(r.URL.Path, str) {
			return false
		}
	}
	return true
}

// Check is an HTTP middleware that returns http.StatusLocked for protected
// requests while locked.  GET requests are never refused.
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() && l.protects(r) {
			http.Error(w, "camera is locked", http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}
