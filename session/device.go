package session

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/util"
)

// Device is one open camera
type Device struct {
	// ID is the camera the handle was opened on
	ID picam.CameraID

	c   *Controller
	lib picam.Library
	h   picam.Handle

	mu       sync.Mutex
	state    State
	closed   bool
	callback bool
	states   []picam.AcquisitionState

	// layout of the running acquisition, read from the library's thread
	layout atomic.Pointer[readout.Layout]
}

func (d *Device) String() string {
	return d.ID.String()
}

// Handle returns the library handle of the device
func (d *Device) Handle() picam.Handle {
	return d.h
}

// State returns the device state
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.c.State()
	}
	return d.state
}

func (d *Device) checkLocked(op string, want ...State) error {
	if d.closed {
		return ErrClosed
	}
	return stateErr(op, d.state, want...)
}

// recheckLocked settles a non-acquiring device on Configured or DeviceOpen
// depending on what the library reports
func (d *Device) recheckLocked() {
	if d.state == Acquiring {
		return
	}
	ok, err := d.lib.AreParametersCommitted(d.h)
	if err == nil && ok {
		d.state = Configured
	} else {
		d.state = DeviceOpen
	}
}

// set runs a parameter write in DeviceOpen or Configured
func (d *Device) set(op string, fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(op, DeviceOpen, Configured); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	d.recheckLocked()
	return nil
}

func (d *Device) open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

// Exists reports if the camera has parameter p
func (d *Device) Exists(p picam.Parameter) (bool, error) {
	if err := d.open(); err != nil {
		return false, err
	}
	return d.lib.DoesParameterExist(d.h, p)
}

// CanSetOnline reports if p may be changed during acquisition
func (d *Device) CanSetOnline(p picam.Parameter) (bool, error) {
	if err := d.open(); err != nil {
		return false, err
	}
	return d.lib.CanSetParameterOnline(d.h, p)
}

// Int returns an integer, boolean or enumeration parameter
func (d *Device) Int(p picam.Parameter) (int, error) {
	if err := d.open(); err != nil {
		return 0, err
	}
	return d.lib.IntegerValue(d.h, p)
}

// SetInt sets an integer, boolean or enumeration parameter
func (d *Device) SetInt(p picam.Parameter, v int) error {
	return d.set("set "+p.String(), func() error { return d.lib.SetIntegerValue(d.h, p, v) })
}

// LargeInt returns a large integer parameter
func (d *Device) LargeInt(p picam.Parameter) (int64, error) {
	if err := d.open(); err != nil {
		return 0, err
	}
	return d.lib.LargeIntegerValue(d.h, p)
}

// SetLargeInt sets a large integer parameter
func (d *Device) SetLargeInt(p picam.Parameter, v int64) error {
	return d.set("set "+p.String(), func() error { return d.lib.SetLargeIntegerValue(d.h, p, v) })
}

// Float returns a floating point parameter
func (d *Device) Float(p picam.Parameter) (float64, error) {
	if err := d.open(); err != nil {
		return 0, err
	}
	return d.lib.FloatingPointValue(d.h, p)
}

// SetFloat sets a floating point parameter
func (d *Device) SetFloat(p picam.Parameter, v float64) error {
	return d.set("set "+p.String(), func() error { return d.lib.SetFloatingPointValue(d.h, p, v) })
}

// SetFloatOnline changes an onlineable parameter, including during acquisition.
// The change takes effect immediately and needs no commit.
func (d *Device) SetFloatOnline(p picam.Parameter, v float64) error {
	if err := d.open(); err != nil {
		return err
	}
	return d.lib.SetFloatingPointValueOnline(d.h, p, v)
}

// ReadInt reads a readable integer parameter from the hardware
func (d *Device) ReadInt(p picam.Parameter) (int, error) {
	if err := d.open(); err != nil {
		return 0, err
	}
	return d.lib.ReadIntegerValue(d.h, p)
}

// ReadFloat reads a readable floating point parameter from the hardware
func (d *Device) ReadFloat(p picam.Parameter) (float64, error) {
	if err := d.open(); err != nil {
		return 0, err
	}
	return d.lib.ReadFloatingPointValue(d.h, p)
}

// Rois returns the regions of interest
func (d *Device) Rois() (picam.Rois, error) {
	if err := d.open(); err != nil {
		return nil, err
	}
	return d.lib.RoisValue(d.h, picam.RoisParameter)
}

// SetRois sets the regions of interest
func (d *Device) SetRois(r picam.Rois) error {
	return d.set("set Rois", func() error { return d.lib.SetRoisValue(d.h, picam.RoisParameter, r) })
}

// Pulse returns a pulse parameter
func (d *Device) Pulse(p picam.Parameter) (picam.Pulse, error) {
	if err := d.open(); err != nil {
		return picam.Pulse{}, err
	}
	return d.lib.PulseValue(d.h, p)
}

// SetPulse sets a pulse parameter
func (d *Device) SetPulse(p picam.Parameter, v picam.Pulse) error {
	return d.set("set "+p.String(), func() error { return d.lib.SetPulseValue(d.h, p, v) })
}

// Modulations returns a modulation sequence parameter
func (d *Device) Modulations(p picam.Parameter) (picam.Modulations, error) {
	if err := d.open(); err != nil {
		return nil, err
	}
	return d.lib.ModulationsValue(d.h, p)
}

// SetModulations sets a modulation sequence parameter
func (d *Device) SetModulations(p picam.Parameter, v picam.Modulations) error {
	return d.set("set "+p.String(), func() error { return d.lib.SetModulationsValue(d.h, p, v) })
}

// Constraint returns the collection constraint of p in category cat
func (d *Device) Constraint(p picam.Parameter, cat picam.ConstraintCategory) (picam.CollectionConstraint, error) {
	if err := d.open(); err != nil {
		return picam.CollectionConstraint{}, err
	}
	return d.lib.CollectionConstraint(d.h, p, cat)
}

// Committed reports if the library considers the parameters committed
func (d *Device) Committed() (bool, error) {
	if err := d.open(); err != nil {
		return false, err
	}
	return d.lib.AreParametersCommitted(d.h)
}

// Commit commits the parameters.  If any are rejected a *CommitError lists
// them and the device stays in DeviceOpen.
func (d *Device) Commit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("commit", DeviceOpen, Configured); err != nil {
		return err
	}
	failed, err := d.lib.CommitParameters(d.h)
	if err != nil {
		d.recheckLocked()
		return err
	}
	if len(failed) > 0 {
		d.state = DeviceOpen
		return &CommitError{Failed: failed}
	}
	d.state = Configured
	return nil
}

// CommitAndChange commits, and on failure sets each rejected collection
// parameter to the first value it is required to take, then commits again.
func (d *Device) CommitAndChange() error {
	err := d.Commit()
	ce, ok := err.(*CommitError)
	if !ok {
		return err
	}
	var errs []error
	for _, p := range ce.Failed {
		errs = append(errs, d.changeToRequired(p))
	}
	if err := util.MergeErrors(errs); err != nil {
		return err
	}
	return d.Commit()
}

func (d *Device) changeToRequired(p picam.Parameter) error {
	if p.ConstraintType() != picam.ConstraintCollection {
		return fmt.Errorf("session: %s has no collection constraint to choose from", p)
	}
	cc, err := d.Constraint(p, picam.CategoryRequired)
	if err != nil {
		return err
	}
	if len(cc.Values) == 0 {
		return fmt.Errorf("session: %s has no valid value", p)
	}
	v := cc.Values[0]
	log.Printf("%s: changing %s to %v", d, p, v)
	switch p.ValueType() {
	case picam.ValueInteger, picam.ValueBoolean, picam.ValueEnumeration:
		return d.SetInt(p, int(v))
	case picam.ValueLargeInteger:
		return d.SetLargeInt(p, int64(v))
	case picam.ValueFloatingPoint:
		return d.SetFloat(p, v)
	default:
		return fmt.Errorf("session: %s has value type %d, not a scalar", p, p.ValueType())
	}
}

// Layout reads the readout geometry and enabled metadata from the camera
func (d *Device) Layout() (readout.Layout, error) {
	if err := d.open(); err != nil {
		return readout.Layout{}, err
	}
	return layoutOf(d.lib, d.h)
}

func layoutOf(lib picam.Library, h picam.Handle) (readout.Layout, error) {
	var (
		l   readout.Layout
		err error
	)
	intOf := func(p picam.Parameter) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = lib.IntegerValue(h, p)
		return v
	}
	has := func(p picam.Parameter) bool {
		ok, e := lib.DoesParameterExist(h, p)
		return e == nil && ok
	}
	l.Stride = intOf(picam.ReadoutStride)
	l.FrameSize = intOf(picam.FrameSize)
	if err == nil {
		l.Rois, err = lib.RoisValue(h, picam.RoisParameter)
	}
	if has(picam.FramesPerReadout) {
		l.FramesPerReadout = intOf(picam.FramesPerReadout)
		l.FrameStride = intOf(picam.FrameStride)
	}
	if has(picam.TimeStamps) {
		mask := intOf(picam.TimeStamps)
		l.StampStart = mask&picam.TimeStampsExposureStarted != 0
		l.StampEnd = mask&picam.TimeStampsExposureEnded != 0
		if mask != 0 {
			l.StampBitDepth = intOf(picam.TimeStampBitDepth)
			if err == nil {
				l.Resolution, err = lib.LargeIntegerValue(h, picam.TimeStampResolution)
			}
		}
	}
	if has(picam.TrackFrames) {
		l.TrackFrames = intOf(picam.TrackFrames) != 0
		if l.TrackFrames {
			l.TrackBitDepth = intOf(picam.FrameTrackingBitDepth)
		}
	}
	if err != nil {
		return readout.Layout{}, err
	}
	return l, l.Validate()
}

// ReadoutRate is the readout rate the camera calculates for the current settings, in readouts/s
func (d *Device) ReadoutRate() (float64, error) {
	return d.Float(picam.ReadoutRateCalculation)
}

// SetCircularBuffer gives the library a circular buffer of at least min
// readouts and about target bytes.  It returns the size in bytes.
func (d *Device) SetCircularBuffer(target int64, min int) (int64, error) {
	l, err := d.Layout()
	if err != nil {
		return 0, err
	}
	size := readout.BufferSize(l.Stride, target, min)
	err = d.set("set acquisition buffer", func() error { return d.lib.SetAcquisitionBuffer(d.h, size) })
	return size, err
}

// Configure sets many parameters at once, by vendor name.  Values are
// numbers or booleans; nothing is committed.  Every key is attempted and the
// failures are reported together.
func (d *Device) Configure(settings map[string]interface{}) error {
	var errs []error
	for k, v := range settings {
		p, ok := picam.ParameterByName(k)
		if !ok {
			errs = append(errs, fmt.Errorf("configuration parameter %s with value %v not understood or unavailable", k, v))
			continue
		}
		f, ok := number(v)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: value %v is not a number", k, v))
			continue
		}
		var err error
		switch p.ValueType() {
		case picam.ValueInteger, picam.ValueBoolean, picam.ValueEnumeration:
			err = d.SetInt(p, int(f))
		case picam.ValueLargeInteger:
			err = d.SetLargeInt(p, int64(f))
		case picam.ValueFloatingPoint:
			err = d.SetFloat(p, f)
		default:
			err = fmt.Errorf("%s cannot be configured from a scalar", k)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return util.MergeErrors(errs)
}

// number converts the scalar types YAML and JSON decode to
func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
