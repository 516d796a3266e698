/*Package acquire runs acquisitions against open cameras.

Frames is the synchronous path.  Poller starts an acquisition and waits for
updates on the calling goroutine.  Sink receives updates from the library's
acquisition thread and hands copies to a consumer over a channel.  Multi polls
several cameras from one goroutine until every one of them is idle.
*/
package acquire

import (
	"fmt"
	"log"
	"time"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/util"
)

// Camera is what the acquisition loops need from an open device.
// *session.Device satisfies it.
type Camera interface {
	fmt.Stringer

	// Acquire synchronously acquires n readouts
	Acquire(n int64, timeout time.Duration) (readout.View, picam.AcquisitionErrorsMask, error)

	// Start starts an asynchronous acquisition
	Start() error

	// Wait blocks for the next update
	Wait(timeout time.Duration) (readout.View, picam.AcquisitionStatus, error)

	// Stop asks the acquisition to end without waiting
	Stop() error

	// Drain waits until the acquisition is seen to have ended
	Drain(timeout time.Duration) error
}

// DefaultDrainTimeout bounds the drain after an explicit stop
const DefaultDrainTimeout = 10 * time.Second

// MinTimeout is the shortest timeout FrameTimeout returns
const MinTimeout = 3 * time.Second

// FrameTimeout is twice the time n readouts take at rate readouts/s, and at least MinTimeout
func FrameTimeout(rate float64, n int64) time.Duration {
	t := MinTimeout
	if rate > 0 {
		if d := util.MillisToDuration(2 * float64(n) / rate * 1000); d > t {
			t = d
		}
	}
	return t
}

// PartialError is returned when fewer readouts than requested arrived
type PartialError struct {
	Got, Want int64
	Err       error
}

func (e *PartialError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acquire: %d of %d readouts", e.Got, e.Want)
	}
	return fmt.Sprintf("acquire: %d of %d readouts: %v", e.Got, e.Want, e.Err)
}

// Unwrap returns the library error, so picam.IsTimeout sees through it
func (e *PartialError) Unwrap() error {
	return e.Err
}

// FaultError is returned when an acquisition ends early or with a fatal error mask
type FaultError struct {
	Camera    string
	Mask      picam.AcquisitionErrorsMask
	Got, Want int64
}

func (e *FaultError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("acquire: %s stopped after %d of %d readouts, errors %s", e.Camera, e.Got, e.Want, e.Mask)
	}
	return fmt.Sprintf("acquire: %s stopped after %d readouts, errors %s", e.Camera, e.Got, e.Mask)
}

// Frames synchronously acquires exactly n readouts.  Anything less is an
// error: a *PartialError wrapping the library error on timeout or disconnect,
// or a *FaultError for a fatal mask.  The view is returned either way.
func Frames(cam Camera, n int64, timeout time.Duration) (readout.View, error) {
	v, mask, err := cam.Acquire(n, timeout)
	if err != nil {
		if v.Count > 0 || picam.IsTimeout(err) {
			return v, &PartialError{Got: int64(v.Count), Want: n, Err: err}
		}
		return v, err
	}
	if mask.Fatal() {
		return v, &FaultError{Camera: cam.String(), Mask: mask, Got: int64(v.Count), Want: n}
	}
	if mask != picam.AcquisitionErrorsNone {
		log.Printf("%s: acquisition errors %s", cam, mask)
	}
	if int64(v.Count) != n {
		return v, &PartialError{Got: int64(v.Count), Want: n}
	}
	return v, nil
}

// Stats summarizes one acquisition
type Stats struct {
	// Readouts is the number of readouts received
	Readouts int64

	// Updates is the number of non-empty updates
	Updates int

	// Timeouts is the number of waits that timed out
	Timeouts int

	// Errors counts updates by error bit
	Errors map[picam.AcquisitionErrorsMask]int

	// LastMask is the error mask of the last update
	LastMask picam.AcquisitionErrorsMask

	// Rate is the last readout rate the library reported, readouts/s
	Rate float64

	// Elapsed is the wall time of the acquisition
	Elapsed time.Duration
}

func (s *Stats) observe(count int, st picam.AcquisitionStatus) {
	if count > 0 {
		s.Updates++
		s.Readouts += int64(count)
	}
	s.LastMask = st.Errors
	if st.ReadoutRate > 0 {
		s.Rate = st.ReadoutRate
	}
	for _, b := range st.Errors.Bits() {
		if s.Errors == nil {
			s.Errors = make(map[picam.AcquisitionErrorsMask]int)
		}
		s.Errors[b]++
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("%d readouts in %d updates over %v, %.1f readouts/s, %d timeouts, last errors %s",
		s.Readouts, s.Updates, s.Elapsed.Round(time.Millisecond), s.Rate, s.Timeouts, s.LastMask)
}
