package session

import (
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/util"
)

// CloseDrainTimeout bounds how long Close waits for a running acquisition to end
var CloseDrainTimeout = 10 * time.Second

// DefaultDrainTimeout replaces a non-positive Drain timeout
var DefaultDrainTimeout = 10 * time.Second

// beginLocked moves a Configured device with committed parameters to Acquiring
// and returns the layout of its readouts
func (d *Device) beginLocked(op string) (readout.Layout, error) {
	if err := d.checkLocked(op, Configured); err != nil {
		return readout.Layout{}, err
	}
	ok, err := d.lib.AreParametersCommitted(d.h)
	if err != nil {
		return readout.Layout{}, err
	}
	if !ok {
		d.state = DeviceOpen
		return readout.Layout{}, ErrNotCommitted
	}
	l, err := layoutOf(d.lib, d.h)
	if err != nil {
		return l, err
	}
	d.layout.Store(&l)
	return l, nil
}

// finish returns an acquiring device to Configured, or DeviceOpen if the
// parameters are no longer committed
func (d *Device) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Acquiring {
		d.state = DeviceOpen
		d.recheckLocked()
	}
}

// Acquire synchronously acquires n readouts.  On a timeout the acquisition
// is stopped explicitly and the view holds the readouts that did arrive.
// The view aliases library memory; see readout.View.Clone.
func (d *Device) Acquire(n int64, timeout time.Duration) (readout.View, picam.AcquisitionErrorsMask, error) {
	d.mu.Lock()
	l, err := d.beginLocked("acquire")
	if err != nil {
		d.mu.Unlock()
		return readout.View{}, 0, err
	}
	d.state = Acquiring
	d.mu.Unlock()

	data, mask, err := d.lib.Acquire(d.h, n, timeout)
	if picam.IsTimeout(err) {
		d.stop()
	}
	d.finish()
	v, verr := readout.NewView(l, data)
	if verr != nil {
		v = readout.View{Layout: l}
		if err == nil {
			err = verr
		}
	}
	return v, mask, err
}

// Start starts an asynchronous acquisition.  Follow it with Wait, or with
// Running when a callback is registered.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.beginLocked("start"); err != nil {
		return err
	}
	if err := d.lib.StartAcquisition(d.h); err != nil {
		return err
	}
	d.state = Acquiring
	return nil
}

// Wait blocks until readouts are available, the acquisition ends or timeout
// elapses.  A negative timeout waits forever.  Once the returned status is
// not running the device has left Acquiring.
func (d *Device) Wait(timeout time.Duration) (readout.View, picam.AcquisitionStatus, error) {
	d.mu.Lock()
	if err := d.checkLocked("wait", Acquiring); err != nil {
		d.mu.Unlock()
		return readout.View{}, picam.AcquisitionStatus{}, err
	}
	d.mu.Unlock()
	l := *d.layout.Load()

	data, st, err := d.lib.WaitForAcquisitionUpdate(d.h, timeout)
	if err != nil {
		return readout.View{Layout: l}, st, err
	}
	if !st.Running {
		d.finish()
	}
	v, err := readout.NewView(l, data)
	if err != nil {
		return readout.View{Layout: l}, st, err
	}
	return v, st, nil
}

func (d *Device) stop() error {
	err := d.lib.StopAcquisition(d.h)
	if picam.Code(err) == picam.AcquisitionNotInProgress {
		return nil
	}
	return err
}

// Stop asks the acquisition to end.  It does not wait; use Drain.
func (d *Device) Stop() error {
	if err := d.open(); err != nil {
		return err
	}
	return d.stop()
}

// Running asks the library if the acquisition is still running
func (d *Device) Running() (bool, error) {
	if err := d.open(); err != nil {
		return false, err
	}
	run, err := d.lib.IsAcquisitionRunning(d.h)
	if err != nil {
		return run, err
	}
	if !run {
		d.finish()
	}
	return run, nil
}

// Drain waits up to timeout until the acquisition is seen to have ended.
// In callback mode the library is polled with exponential backoff; otherwise
// the remaining updates are consumed with Wait.  A non-positive timeout
// means DefaultDrainTimeout.
func (d *Device) Drain(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	d.mu.Lock()
	acquiring, callback := d.state == Acquiring, d.callback
	d.mu.Unlock()
	if !acquiring {
		return nil
	}
	if callback {
		op := func() error {
			run, err := d.Running()
			if err != nil {
				return backoff.Permanent(err)
			}
			if run {
				return picam.AcquisitionInProgress
			}
			return nil
		}
		return backoff.Retry(op, &backoff.ExponentialBackOff{
			InitialInterval:     10 * time.Millisecond,
			RandomizationFactor: 0.,
			Multiplier:          2.,
			MaxInterval:         500 * time.Millisecond,
			MaxElapsedTime:      timeout,
			Clock:               backoff.SystemClock,
		})
	}
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left < 0 {
			left = 0
		}
		_, st, err := d.Wait(left)
		if err != nil {
			return err
		}
		if !st.Running {
			return nil
		}
	}
}

// RegisterCallback routes acquisition updates to fn on the library's
// acquisition thread.  fn must copy what it needs and return promptly;
// it must not call back into the device.
func (d *Device) RegisterCallback(fn func(v readout.View, st picam.AcquisitionStatus)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("register callback", DeviceOpen, Configured); err != nil {
		return err
	}
	err := d.lib.RegisterForAcquisitionUpdated(d.h, func(h picam.Handle, data picam.AvailableData, st picam.AcquisitionStatus) {
		l := d.layout.Load()
		if l == nil {
			return
		}
		v, err := readout.NewView(*l, data)
		if err != nil {
			log.Printf("%s: %v", d, err)
			v = readout.View{Layout: *l}
		}
		fn(v, st)
	})
	if err != nil {
		return err
	}
	d.callback = true
	return nil
}

// UnregisterCallback removes the acquisition update callback
func (d *Device) UnregisterCallback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("unregister callback", DeviceOpen, Configured); err != nil {
		return err
	}
	if !d.callback {
		return nil
	}
	if err := d.lib.UnregisterForAcquisitionUpdated(d.h); err != nil {
		return err
	}
	d.callback = false
	return nil
}

// RegisterState calls fn on the library's acquisition thread whenever state s is reached
func (d *Device) RegisterState(s picam.AcquisitionState, fn picam.AcquisitionStateUpdatedFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("register state callback", DeviceOpen, Configured); err != nil {
		return err
	}
	if err := d.lib.RegisterForAcquisitionStateUpdated(d.h, s, fn); err != nil {
		return err
	}
	d.states = append(d.states, s)
	return nil
}

// Close stops and drains a running acquisition, removes callbacks, closes
// the handle and disconnects the demo camera if this session connected it.
// The device stays open and tracked by its controller unless the handle was
// closed.  Closing a closed device is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	acquiring := d.state == Acquiring
	d.mu.Unlock()

	if acquiring {
		if err := util.MergeErrors([]error{d.stop(), d.Drain(CloseDrainTimeout)}); err != nil {
			return fmt.Errorf("closing %s: %w", d, err)
		}
	}
	var errs []error
	d.mu.Lock()
	if d.callback {
		if err := d.lib.UnregisterForAcquisitionUpdated(d.h); err != nil {
			errs = append(errs, err)
		} else {
			d.callback = false
		}
	}
	var kept []picam.AcquisitionState
	for _, s := range d.states {
		if err := d.lib.UnregisterForAcquisitionStateUpdated(d.h, s); err != nil {
			errs = append(errs, err)
			kept = append(kept, s)
		}
	}
	d.states = kept
	if err := d.lib.CloseCamera(d.h); err != nil {
		d.mu.Unlock()
		errs = append(errs, err)
		return util.MergeErrors(errs)
	}
	d.closed = true
	d.mu.Unlock()

	errs = append(errs, d.c.forget(d))
	log.Printf("closed %s", d)
	return util.MergeErrors(errs)
}
