package acquire

import (
	"context"
	"log"
	"time"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/util"
)

// Poller waits for updates of one asynchronous acquisition
type Poller struct {
	// Timeout bounds each wait.  Negative waits forever.
	Timeout time.Duration

	// MaxTimeouts is how many consecutive timed out waits are tolerated.
	// One more stops the acquisition.
	MaxTimeouts int

	// Expected, if nonzero, is the number of readouts the acquisition should
	// deliver before it stops on its own
	Expected int64

	// DrainTimeout bounds the drain after an explicit stop
	DrainTimeout time.Duration

	// OnUpdate sees every update on the polling goroutine.  The view is only
	// valid until it returns.
	OnUpdate func(v readout.View, st picam.AcquisitionStatus)

	// Reporter, if not nil, is fed every update
	Reporter *Reporter
}

func (p Poller) drain() time.Duration {
	if p.DrainTimeout <= 0 {
		return DefaultDrainTimeout
	}
	return p.DrainTimeout
}

// abort stops cam, drains it and returns cause
func abort(cam Camera, timeout time.Duration, cause error) error {
	if err := util.MergeErrors([]error{cam.Stop(), cam.Drain(timeout)}); err != nil {
		log.Printf("%s: stopping after %v: %v", cam, cause, err)
	}
	return cause
}

// Run starts cam and waits for updates until the acquisition stops
func (p Poller) Run(ctx context.Context, cam Camera) (s Stats, err error) {
	start := time.Now()
	defer func() { s.Elapsed = time.Since(start) }()
	if err = cam.Start(); err != nil {
		return s, err
	}
	consecutive := 0
	for {
		if err := ctx.Err(); err != nil {
			return s, abort(cam, p.drain(), err)
		}
		v, st, err := cam.Wait(p.Timeout)
		if err != nil {
			if !picam.IsTimeout(err) {
				return s, abort(cam, p.drain(), err)
			}
			s.Timeouts++
			consecutive++
			if consecutive > p.MaxTimeouts {
				return s, abort(cam, p.drain(), err)
			}
			continue
		}
		consecutive = 0
		s.observe(v.Count, st)
		if p.Reporter != nil {
			p.Reporter.Observe(cam.String(), v.Count, st)
		}
		if st.Errors != picam.AcquisitionErrorsNone {
			log.Printf("%s: acquisition errors %s", cam, st.Errors)
		}
		if p.OnUpdate != nil {
			p.OnUpdate(v, st)
		}
		if !st.Running {
			if st.Errors.Fatal() || (p.Expected > 0 && s.Readouts < p.Expected) {
				return s, &FaultError{Camera: cam.String(), Mask: st.Errors, Got: s.Readouts, Want: p.Expected}
			}
			return s, nil
		}
	}
}

// Multi polls several cameras from one goroutine
type Multi struct {
	// Timeout bounds each wait on each camera.  It must be finite so one idle
	// camera cannot starve the others.
	Timeout time.Duration

	// DrainTimeout bounds the drain of each camera after an explicit stop
	DrainTimeout time.Duration

	// OnUpdate sees every update
	OnUpdate func(i int, cam Camera, v readout.View, st picam.AcquisitionStatus)

	// Reporter, if not nil, is fed every update
	Reporter *Reporter
}

// DefaultMultiTimeout is the per camera wait used when Multi.Timeout is not positive
const DefaultMultiTimeout = 100 * time.Millisecond

// Run starts every camera and polls them in turn until each has reported
// that it is no longer running.  Stats are in the order of cams.  A camera
// that stops on a fatal error is reported as a *FaultError once every other
// camera has finished.
func (m Multi) Run(ctx context.Context, cams []Camera) ([]Stats, error) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultMultiTimeout
	}
	drain := m.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	stats := make([]Stats, len(cams))
	running := make(map[int]bool, len(cams))
	var faults []error
	start := time.Now()
	stopAll := func(cause error) error {
		for i := range running {
			abort(cams[i], drain, cause)
		}
		return cause
	}
	for i, c := range cams {
		if err := c.Start(); err != nil {
			return stats, stopAll(err)
		}
		running[i] = true
	}
	for len(running) > 0 {
		if err := ctx.Err(); err != nil {
			return stats, stopAll(err)
		}
		for i, c := range cams {
			if !running[i] {
				continue
			}
			v, st, err := c.Wait(timeout)
			if err != nil {
				if picam.IsTimeout(err) {
					stats[i].Timeouts++
					continue
				}
				return stats, stopAll(err)
			}
			stats[i].observe(v.Count, st)
			if m.Reporter != nil {
				m.Reporter.Observe(c.String(), v.Count, st)
			}
			if st.Errors != picam.AcquisitionErrorsNone {
				log.Printf("%s: acquisition errors %s", c, st.Errors)
			}
			if m.OnUpdate != nil {
				m.OnUpdate(i, c, v, st)
			}
			if !st.Running {
				delete(running, i)
				stats[i].Elapsed = time.Since(start)
				if st.Errors.Fatal() {
					faults = append(faults, &FaultError{Camera: c.String(), Mask: st.Errors, Got: stats[i].Readouts})
				}
			}
		}
	}
	return stats, util.MergeErrors(faults)
}
