/*Package host is a command entry point for numeric hosts such as MATLAB.

A host sends a scalar command and optional numeric parameters and receives an
error code and, after an acquisition, a rows x cols image:

	0  initialize the library and open the first camera
	1  acquire one frame
	2  stop any acquisition, close the camera and uninitialize (any other value too)
*/
package host

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/session"
	"github.com/nasa-jpl/picamlab/util"
)

// Command is a host command
type Command int

const (
	// Init initializes the library and opens the first camera
	Init Command = 0

	// Acquire acquires one frame
	Acquire Command = 1

	// Close stops, closes and uninitializes
	Close Command = 2
)

// MinAcquireTimeout is the shortest timeout given to an acquisition
const MinAcquireTimeout = acquire.MinTimeout

// ErrNotOpen is returned when a frame is requested before Init
var ErrNotOpen = errors.New("host: no camera open")

// Params are the optional numeric parameters of a command.  Zero leaves a
// setting unchanged.
type Params struct {
	// ExposureMs is the exposure time in milliseconds
	ExposureMs float64 `json:"exposure"`

	// ShutterMode is a ShutterTimingMode value, 1 normal, 2 closed, 3 open
	ShutterMode int `json:"shutter"`

	// RowBins bins that many rows in the middle of the sensor into one line
	RowBins int `json:"rowBins"`
}

// Result is the reply to a command
type Result struct {
	// Code is the library error code, 0 for success
	Code picam.Error `json:"code"`

	// Err is the error text, empty for success
	Err string `json:"error,omitempty"`

	// Image is rows x cols, present only after a successful acquisition
	Image [][]uint16 `json:"image,omitempty"`
}

// Host holds the state that persists between commands
type Host struct {
	// Ctl is the session the commands act on
	Ctl *session.Controller

	mu       sync.Mutex
	dev      *session.Device
	attached bool
	timeout  time.Duration
}

// New returns a host over lib
func New(lib picam.Library) *Host {
	return &Host{Ctl: session.New(lib), timeout: MinAcquireTimeout}
}

// Attach returns a host over a device something else owns.  Init only
// applies parameters and Close only stops a running acquisition; the device
// stays open.
func Attach(ctl *session.Controller, d *session.Device) *Host {
	return &Host{Ctl: ctl, dev: d, attached: true, timeout: MinAcquireTimeout}
}

func result(err error) Result {
	if err == nil {
		return Result{}
	}
	return Result{Code: picam.Code(err), Err: err.Error()}
}

// Do runs one command
func (h *Host) Do(cmd Command, p Params) Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch cmd {
	case Init:
		return result(h.init(p))
	case Acquire:
		img, err := h.acquire(p)
		r := result(err)
		r.Image = img
		return r
	default:
		return result(h.close())
	}
}

func (h *Host) init(p Params) error {
	if h.attached {
		if err := h.apply(p); err != nil {
			return err
		}
		return h.retime()
	}
	if h.dev != nil {
		return nil
	}
	if h.Ctl.State() == session.Uninitialized {
		if err := h.Ctl.Initialize(); err != nil {
			return err
		}
	}
	d, err := h.Ctl.OpenFirst()
	if err != nil {
		return err
	}
	h.dev = d
	if err := h.apply(p); err != nil {
		return err
	}
	return h.retime()
}

// retime sets the acquisition timeout to twice the frame time, and at least MinAcquireTimeout
func (h *Host) retime() error {
	rate, err := h.dev.ReadoutRate()
	if err != nil {
		return err
	}
	h.timeout = acquire.FrameTimeout(rate, 1)
	return nil
}

// Timeout is the acquisition timeout in use
func (h *Host) Timeout() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timeout
}

func (h *Host) apply(p Params) error {
	changed := false
	if p.ExposureMs > 0 {
		if err := h.dev.SetFloat(picam.ExposureTime, p.ExposureMs); err != nil {
			return err
		}
		changed = true
	}
	if p.ShutterMode > 0 {
		if err := h.dev.SetInt(picam.ShutterTimingMode, p.ShutterMode); err != nil {
			return err
		}
		changed = true
	}
	if p.RowBins > 0 {
		// commits on its own
		if err := h.dev.SetCenterBinROI(p.RowBins); err != nil {
			return err
		}
	}
	if changed || h.dev.State() != session.Configured {
		return h.dev.Commit()
	}
	return nil
}

func (h *Host) acquire(p Params) ([][]uint16, error) {
	if h.dev == nil {
		return nil, ErrNotOpen
	}
	if err := h.apply(p); err != nil {
		return nil, err
	}
	if err := h.retime(); err != nil {
		return nil, err
	}
	v, err := acquire.Frames(h.dev, 1, h.timeout)
	if err != nil {
		return nil, err
	}
	if len(v.Rois) == 0 {
		return nil, fmt.Errorf("host: camera reported no ROI")
	}
	r := v.Rois[0]
	pix, err := v.ROI(0, 0)
	if err != nil {
		return nil, err
	}
	rows, cols := r.Rows(), r.Cols()
	img := make([][]uint16, rows)
	for i := range img {
		img[i] = pix[i*cols : (i+1)*cols]
	}
	return img, nil
}

func (h *Host) close() error {
	if h.attached {
		if h.dev.State() != session.Acquiring {
			return nil
		}
		if err := h.dev.Stop(); err != nil {
			return err
		}
		return h.dev.Drain(acquire.DefaultDrainTimeout)
	}
	var errs []error
	if h.dev != nil {
		errs = append(errs, h.dev.Close())
		h.dev = nil
	}
	if h.Ctl.State() != session.Uninitialized {
		errs = append(errs, h.Ctl.Uninitialize())
	}
	return util.MergeErrors(errs)
}
