// Package camera provides a generic HTTP interface to a PICam camera
package camera

import (
	"encoding/json"
	"errors"
	"go/types"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/camera"
	"github.com/nasa-jpl/picamlab/generichttp"
	"github.com/nasa-jpl/picamlab/generichttp/thermal"
	"github.com/nasa-jpl/picamlab/imgrec"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/server"
	"github.com/nasa-jpl/picamlab/session"
	"github.com/nasa-jpl/picamlab/util"
)

// MaxBurst bounds the frames of one burst request
var MaxBurst = 1000

// HTTPCamera wraps a camera in an HTTP route table
type HTTPCamera struct {
	// Cam is the underlying camera
	Cam camera.Sci

	// Rec records fits or raw responses when enabled.  May be nil.
	Rec *imgrec.Recorder

	// Stream is the continuous acquisition behind /stream and /events
	Stream *Stream

	// Metrics are served at /metrics
	Metrics *Metrics

	// RouteTable maps URLs to functions
	RouteTable generichttp.RouteTable

	// acq serializes synchronous acquisitions, whose views alias library memory
	acq sync.Mutex
}

// NewHTTPCamera returns a new HTTP wrapper around an open camera
func NewHTTPCamera(c camera.Sci, rec *imgrec.Recorder) *HTTPCamera {
	m := NewMetrics(c)
	h := &HTTPCamera{Cam: c, Rec: rec, Metrics: m, Stream: NewStream(c, m)}
	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/exposure-time"}] = GetExposureTime(c)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/exposure-time"}] = SetExposureTime(c)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/frame"}] = h.GetFrame
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/burst"}] = h.Burst
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/commit"}] = Commit(c)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/parameter/{name}"}] = GetParameter(c)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/parameter/{name}"}] = SetParameter(c)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/sensor-size"}] = GetSensorSize(c)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/rois"}] = GetRois(c)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/rois"}] = SetRois(c)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/rois/full"}] = SetFullROI(c)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/rois/center"}] = generichttp.Set(c.SetCenterROI)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/rois/bin-rows"}] = generichttp.Set(c.SetCenterBinROI)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/stream"}] = h.GetStreaming
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/stream"}] = h.SetStreaming
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/stream/latest"}] = h.GetLatest
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/events"}] = h.Stream.Events
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/metrics"}] = m.Handler().ServeHTTP
	h.RouteTable = rt
	thermal.HTTPController(c, rt)
	if rec != nil {
		imgrec.NewHTTPWrapper(rec).Inject(h)
	}
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h *HTTPCamera) RT() generichttp.RouteTable {
	return h.RouteTable
}

// httpError replies with a status that matches err
func httpError(w http.ResponseWriter, err error) {
	var (
		se *session.StateError
		ce *session.CommitError
		pe *acquire.PartialError
	)
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &se), errors.Is(err, session.ErrNotCommitted), errors.Is(err, session.ErrClosed):
		code = http.StatusConflict
	case errors.As(err, &ce):
		code = http.StatusBadRequest
	case errors.As(err, &pe), picam.IsTimeout(err):
		code = http.StatusGatewayTimeout
	}
	http.Error(w, err.Error(), code)
}

// SetExposureTime sets and commits the exposure time on a POST request.
// it can be provided either as a query parameter exposureTime, formatted in a
// way that is parseable by golang/time.ParseDuration, or a json payload with
// key f64, holding the exposure time in seconds.
func SetExposureTime(c camera.Minimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		texp := r.URL.Query().Get("exposureTime")
		var d time.Duration
		var err error
		if texp == "" {
			f := server.FloatT{}
			err = json.NewDecoder(r.Body).Decode(&f)
			defer r.Body.Close()
			d = util.SecsToDuration(f.F64)
		} else {
			d, err = parseExposure(texp)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = setExposure(c, d); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// parseExposure parses a duration; a bare number is seconds
func parseExposure(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return util.SecsToDuration(f), nil
	}
	return time.ParseDuration(s)
}

func setExposure(c camera.Minimal, d time.Duration) error {
	err := c.SetFloat(picam.ExposureTime, float64(d)/float64(time.Millisecond))
	if err != nil {
		return err
	}
	return c.Commit()
}

// GetExposureTime gets the exposure time in seconds on a GET request
func GetExposureTime(c camera.Minimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ms, err := c.Float(picam.ExposureTime)
		if err != nil {
			httpError(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Float64, Float: ms / 1e3}
		hp.EncodeAndRespond(w, r)
	}
}

// Commit commits the pending parameter values on a POST request
func Commit(c camera.Minimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Commit(); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetParameter returns the value of the parameter named in the path as {'f64': value}
func GetParameter(c camera.Minimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := picam.ParameterByName(chi.URLParam(r, "name"))
		if !ok {
			http.Error(w, "unknown parameter "+chi.URLParam(r, "name"), http.StatusNotFound)
			return
		}
		var (
			f   float64
			err error
		)
		switch p.ValueType() {
		case picam.ValueFloatingPoint:
			f, err = c.Float(p)
		case picam.ValueLargeInteger:
			var i int64
			i, err = c.LargeInt(p)
			f = float64(i)
		case picam.ValueInteger, picam.ValueBoolean, picam.ValueEnumeration:
			var i int
			i, err = c.Int(p)
			f = float64(i)
		default:
			http.Error(w, p.String()+" is not a scalar parameter", http.StatusBadRequest)
			return
		}
		if err != nil {
			httpError(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Float64, Float: f}
		hp.EncodeAndRespond(w, r)
	}
}

// SetParameter sets the parameter named in the path from {'f64': value}.
// It does not commit.
func SetParameter(c camera.Sci) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if _, ok := picam.ParameterByName(name); !ok {
			http.Error(w, "unknown parameter "+name, http.StatusNotFound)
			return
		}
		f := server.FloatT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = c.Configure(map[string]interface{}{name: f.F64}); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetSensorSize returns {"width": w, "height": h}
func GetSensorSize(c camera.AOIManipulator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wd, ht, err := c.SensorSize()
		if err != nil {
			httpError(w, err)
			return
		}
		server.WriteJSON(w, struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		}{wd, ht})
	}
}

// GetRois returns the regions of interest as a JSON array
func GetRois(c camera.AOIManipulator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rois, err := c.Rois()
		if err != nil {
			httpError(w, err)
			return
		}
		server.WriteJSON(w, rois)
	}
}

// SetRois sets the regions of interest from a JSON array and commits them
func SetRois(c camera.Sci) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rois picam.Rois
		err := json.NewDecoder(r.Body).Decode(&rois)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = c.SetRois(rois); err == nil {
			err = c.Commit()
		}
		if err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// SetFullROI selects the whole sensor on a POST request
func SetFullROI(c camera.AOIManipulator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.SetFullROI(); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// acquireN acquires n readouts with a timeout of twice their duration.
// The caller holds h.acq.
func (h *HTTPCamera) acquireN(n int64) (readout.View, error) {
	cur, err := h.Cam.LargeInt(picam.ReadoutCount)
	if err != nil {
		return readout.View{}, err
	}
	if cur != n {
		if err = h.Cam.SetLargeInt(picam.ReadoutCount, n); err != nil {
			return readout.View{}, err
		}
		if err = h.Cam.Commit(); err != nil {
			return readout.View{}, err
		}
	}
	rate, err := h.Cam.ReadoutRate()
	if err != nil {
		return readout.View{}, err
	}
	v, err := acquire.Frames(h.Cam, n, acquire.FrameTimeout(rate, n))
	h.Metrics.Observe(v.Count, picam.AcquisitionStatus{})
	return v, err
}

// GetFrame takes a picture and returns it on a GET request.
//
// the image format may be specified in the fmt query parameter, one of
// jpg, png, fits or raw; default to jpg.  rot rotates jpg and png images
// clockwise by 90, 180 or 270 degrees.
//
// the exposure time may be specified as a query parameter in any time-looking
// format, such as "25ms" or "10us".  A bare number is seconds.
// if no exposure time is provided, the existing value is used.
func (h *HTTPCamera) GetFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rot := 0
	if s := q.Get("rot"); s != "" {
		var err error
		if rot, err = strconv.Atoi(s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	h.acq.Lock()
	defer h.acq.Unlock()
	if texp := q.Get("exposureTime"); texp != "" {
		d, err := parseExposure(texp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = setExposure(h.Cam, d); err != nil {
			httpError(w, err)
			return
		}
	}
	v, err := h.acquireN(1)
	if err != nil {
		httpError(w, err)
		return
	}
	if err = writeView(w, q.Get("fmt"), v, h.Cam.CollectHeaderMetadata(), h.Rec, rot); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// Burst takes N frames and returns them as a fits image cube, or raw with
// the fmt query parameter.  The body is {"frames": N}.
func (h *HTTPCamera) Burst(w http.ResponseWriter, r *http.Request) {
	t := struct {
		Frames int `json:"frames"`
	}{}
	err := json.NewDecoder(r.Body).Decode(&t)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if t.Frames < 1 || t.Frames > MaxBurst {
		http.Error(w, "frames must be between 1 and "+strconv.Itoa(MaxBurst), http.StatusBadRequest)
		return
	}
	format := r.URL.Query().Get("fmt")
	if format == "" {
		format = "fits"
	}
	if format != "fits" && format != "raw" {
		http.Error(w, "bursts are fits or raw", http.StatusBadRequest)
		return
	}
	h.acq.Lock()
	defer h.acq.Unlock()
	v, err := h.acquireN(int64(t.Frames))
	if err != nil {
		httpError(w, err)
		return
	}
	cards := h.Cam.CollectHeaderMetadata()
	// mutate the header version because this is a burst
	if len(cards) > 0 {
		if s, ok := cards[0].Value.(string); ok {
			cards[0].Value = s + "+burst"
		}
	}
	if err = writeView(w, format, v, cards, h.Rec, 0); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetStreaming returns {'bool': true} while the stream runs
func (h *HTTPCamera) GetStreaming(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Bool, Bool: h.Stream.Running()}
	hp.EncodeAndRespond(w, r)
}

// SetStreaming starts or stops the stream from {'bool': value}
func (h *HTTPCamera) SetStreaming(w http.ResponseWriter, r *http.Request) {
	b := server.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		err = h.Stream.Start()
	} else {
		err = h.Stream.Stop(acquire.DefaultDrainTimeout)
	}
	if err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetLatest returns the last streamed readout as an image, see GetFrame for fmt and rot
func (h *HTTPCamera) GetLatest(w http.ResponseWriter, r *http.Request) {
	v, err := h.Stream.Latest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	rot, _ := strconv.Atoi(q.Get("rot"))
	if err = writeView(w, q.Get("fmt"), v, h.Cam.CollectHeaderMetadata(), nil, rot); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
