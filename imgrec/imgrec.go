// Package imgrec contains an image recorder used to automatically save images to disk.
package imgrec

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nasa-jpl/picamlab/generichttp"
	"github.com/nasa-jpl/picamlab/server"
)

// Recorder records image sequences with incrementing filenames in yyyy-mm-dd subfolders.
//
// Writes between two calls to Incr go to the same file.
type Recorder struct {
	mu sync.Mutex

	// counter is the internally incrementing counter
	counter int

	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Ext is the file extension without the dot, fits if empty
	Ext string

	// timeFldr is the subfolder with yyyy-mm-dd format.
	timeFldr string

	// last is the path of the most recently written file
	last string

	// Enabled is a flag unused by this struct that allows consumers to disable its use in their code
	Enabled bool

	// now is time.Now, swapped in tests
	now func() time.Time
}

func (r *Recorder) ext() string {
	if r.Ext == "" {
		return "fits"
	}
	return r.Ext
}

// updateFolder checks the current time and updates the folder as needed
func (r *Recorder) updateFolder() {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	t := now()
	r.timeFldr = fmt.Sprintf("%04d-%02d-%02d", t.Year(), t.Month(), t.Day())
}

// mkDir makes the folder and returns it
func (r *Recorder) mkDir() (string, error) {
	fldr := filepath.Join(r.Root, r.timeFldr)
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// Active is true when the recorder is enabled and has somewhere to write
func (r *Recorder) Active() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Enabled && r.Root != ""
}

// Write implements io.Writer and appends p to the current file
func (r *Recorder) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateFolder()
	fldr, err := r.mkDir()
	if err != nil {
		return 0, err
	}

	fn := fmt.Sprintf("%s%06d.%s", r.Prefix, r.counter, r.ext())
	fn = filepath.Join(fldr, fn)
	fid, err := os.OpenFile(fn, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0666)
	if err != nil {
		return 0, err
	}
	defer fid.Close()
	r.last = fn
	return fid.Write(p)
}

// Last is the path of the most recently written file, empty if none
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Incr updates the filename counter; it scans the folder to do so.  If there is an error, the counter is not incremented
func (r *Recorder) Incr() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateFolder()
	dn, _ := r.mkDir()
	files, err := os.ReadDir(dn)
	if err != nil {
		return
	}
	suffix := "." + r.ext()
	count := -1
	for _, file := range files {
		// skip directories, wrong extension, and wrong prefix
		if file.IsDir() {
			continue
		}
		fn := file.Name()
		if !strings.HasSuffix(fn, suffix) || !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		bit := strings.TrimSuffix(strings.TrimPrefix(fn, r.Prefix), suffix)
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		if count < n {
			count = n
		}
	}
	r.counter = count + 1
}

// HTTPWrapper is an HTTP wrapper around an image recorder that allows the folder and prefix to be changed on the fly
//
// it does not implement generichttp.HTTPer, offering an Inject method allowing it to be injected
// into another HTTPer
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

func (h HTTPWrapper) setRoot(root string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Root = root
	h.updateFolder()
	_, err := h.mkDir()
	return err
}

func (h HTTPWrapper) root() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Root, nil
}

// setPrefix also restarts the counter
func (h HTTPWrapper) setPrefix(prefix string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Prefix = prefix
	h.counter = 0
	return nil
}

func (h HTTPWrapper) prefix() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Prefix, nil
}

func (h HTTPWrapper) setEnabled(b bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Enabled = b
	return nil
}

func (h HTTPWrapper) enabled() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Enabled, nil
}

// GetLast serves the most recently recorded file
func (h HTTPWrapper) GetLast(w http.ResponseWriter, r *http.Request) {
	last := h.Recorder.Last()
	if last == "" {
		http.Error(w, "nothing recorded yet", http.StatusNotFound)
		return
	}
	server.ReplyWithFile(w, r, filepath.Base(last), filepath.Dir(last))
}

// Inject adds GET and POST routes for /autowrite/root, /autowrite/prefix and /autowrite/enabled
// and GET /autowrite/last to the HTTPer which manipulate this wrapper's recorder
func (h HTTPWrapper) Inject(other generichttp.HTTPer) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}] = generichttp.Set(h.setRoot)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/root"}] = generichttp.Get(h.root)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}] = generichttp.Set(h.setPrefix)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}] = generichttp.Get(h.prefix)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/enabled"}] = generichttp.Set(h.setEnabled)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/enabled"}] = generichttp.Get(h.enabled)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/last"}] = h.GetLast
}
