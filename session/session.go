/*Package session orders the life of a PICam library and the cameras opened through it.

A Controller owns one picam.Library.  Devices move through DeviceOpen,
Configured and Acquiring and are closed before the library is uninitialized:

	Uninitialized -> Initialized -> DeviceOpen -> Configured -> Acquiring -> DeviceOpen -> Uninitialized

Operations attempted in the wrong state return a *StateError rather than
reaching the library.
*/
package session

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/util"
)

var (
	// ErrDevicesOpen is returned by Uninitialize while any device is open
	ErrDevicesOpen = errors.New("session: devices are still open")

	// ErrNotCommitted is returned when acquisition is requested but the library
	// does not report the parameters committed
	ErrNotCommitted = errors.New("session: parameters not committed")

	// ErrClosed is returned by operations on a closed device
	ErrClosed = errors.New("session: device closed")
)

const (
	// DefaultFallbackModel is the demo camera connected when no camera is present
	DefaultFallbackModel = picam.ModelPixis100F

	// DefaultFallbackSerial is the serial number of the fallback demo camera
	DefaultFallbackSerial = "0008675309"
)

// State is a point in the session lifecycle
type State int

const (
	// Uninitialized means the library has not been initialized
	Uninitialized State = iota

	// Initialized means the library is ready and no device is open
	Initialized

	// DeviceOpen means a handle is open with uncommitted or unknown parameters
	DeviceOpen

	// Configured means the parameters are committed
	Configured

	// Acquiring means an acquisition was started and has not been seen to end
	Acquiring
)

var stateNames = [...]string{"Uninitialized", "Initialized", "DeviceOpen", "Configured", "Acquiring"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// StateError is returned when an operation is not valid in the current state
type StateError struct {
	Op    string
	State State
	Want  []State
}

func (e *StateError) Error() string {
	want := make([]string, len(e.Want))
	for i, s := range e.Want {
		want[i] = s.String()
	}
	return fmt.Sprintf("session: %s is not valid in state %s, need %s", e.Op, e.State, strings.Join(want, " or "))
}

func stateErr(op string, s State, want ...State) error {
	for _, w := range want {
		if s == w {
			return nil
		}
	}
	return &StateError{Op: op, State: s, Want: want}
}

// CommitError lists the parameters the library refused to commit
type CommitError struct {
	Failed []picam.Parameter
}

func (e *CommitError) Error() string {
	names := make([]string, len(e.Failed))
	for i, p := range e.Failed {
		names[i] = p.String()
	}
	return fmt.Sprintf("session: %d parameter(s) failed to commit: %s", len(e.Failed), strings.Join(names, ", "))
}

// Controller owns a library and the devices opened through it
type Controller struct {
	// Lib is the linkage in use
	Lib picam.Library

	// Fallback connects and opens a demo camera when OpenFirst finds no camera
	Fallback bool

	// FallbackModel and FallbackSerial describe the fallback demo camera
	FallbackModel  picam.Model
	FallbackSerial string

	// ID identifies this session in headers and logs
	ID uuid.UUID

	mu      sync.Mutex
	state   State
	devices map[picam.Handle]*Device
	demos   map[picam.CameraID]bool
}

// New returns a Controller over lib with the demo fallback enabled
func New(lib picam.Library) *Controller {
	return &Controller{
		Lib:            lib,
		Fallback:       true,
		FallbackModel:  DefaultFallbackModel,
		FallbackSerial: DefaultFallbackSerial,
		ID:             uuid.New(),
		devices:        make(map[picam.Handle]*Device),
		demos:          make(map[picam.CameraID]bool),
	}
}

// State returns the library state, Initialized or Uninitialized
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize initializes the library.  A library that was already initialized
// by someone else is adopted.
func (c *Controller) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := stateErr("initialize", c.state, Uninitialized); err != nil {
		return err
	}
	err := c.Lib.Initialize()
	if err != nil && picam.Code(err) != picam.LibraryAlreadyInitialized {
		return err
	}
	c.state = Initialized
	return nil
}

// Uninitialize releases the library.  It is refused while devices are open.
func (c *Controller) Uninitialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.devices) > 0 {
		return ErrDevicesOpen
	}
	if c.state == Uninitialized {
		return nil
	}
	var errs []error
	for id := range c.demos {
		errs = append(errs, c.Lib.DisconnectDemoCamera(id))
		delete(c.demos, id)
	}
	errs = append(errs, c.Lib.Uninitialize())
	c.state = Uninitialized
	return util.MergeErrors(errs)
}

func (c *Controller) requireInit(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stateErr(op, c.state, Initialized)
}

// Version returns the library version
func (c *Controller) Version() (picam.Version, error) {
	return c.Lib.Version()
}

// Available lists the cameras that can be opened
func (c *Controller) Available() ([]picam.CameraID, error) {
	if err := c.requireInit("list cameras"); err != nil {
		return nil, err
	}
	return c.Lib.AvailableCameraIDs()
}

// OpenFirst opens the first available camera.  If there is none and
// Fallback is set, a demo camera is connected and opened instead.
func (c *Controller) OpenFirst() (*Device, error) {
	if err := c.requireInit("open"); err != nil {
		return nil, err
	}
	h, err := c.Lib.OpenFirstCamera()
	if err == nil {
		return c.adopt(h)
	}
	if !c.Fallback {
		return nil, err
	}
	log.Printf("no camera opened (%v), falling back to demo %s SN:%s", err, c.FallbackModel, c.FallbackSerial)
	return c.OpenDemo(c.FallbackModel, c.FallbackSerial)
}

// OpenDemo connects a demo camera and opens it.  The demo camera is
// disconnected again when the device is closed.
func (c *Controller) OpenDemo(model picam.Model, serial string) (*Device, error) {
	if err := c.requireInit("open"); err != nil {
		return nil, err
	}
	id, err := c.connectDemo(model, serial)
	if err != nil {
		return nil, err
	}
	h, err := c.Lib.OpenCamera(id)
	if err != nil {
		c.disconnectDemo(id)
		return nil, err
	}
	return c.adopt(h)
}

// Open opens a specific camera
func (c *Controller) Open(id picam.CameraID) (*Device, error) {
	if err := c.requireInit("open"); err != nil {
		return nil, err
	}
	h, err := c.Lib.OpenCamera(id)
	if err != nil {
		return nil, err
	}
	return c.adopt(h)
}

// EnsureCameras connects demo cameras from demos, in order, until at least
// min cameras are available.  It returns the available cameras.
func (c *Controller) EnsureCameras(min int, demos []picam.CameraID) ([]picam.CameraID, error) {
	ids, err := c.Available()
	if err != nil {
		return nil, err
	}
	for _, d := range demos {
		if len(ids) >= min {
			break
		}
		if _, err := c.connectDemo(d.Model, d.SerialNumber); err != nil {
			return ids, err
		}
		if ids, err = c.Lib.AvailableCameraIDs(); err != nil {
			return nil, err
		}
	}
	if len(ids) < min {
		return ids, fmt.Errorf("session: %d camera(s) available, need %d", len(ids), min)
	}
	return ids, nil
}

// OpenAll opens every available camera that is not already open.
// On failure the devices it opened are closed again.
func (c *Controller) OpenAll() ([]*Device, error) {
	ids, err := c.Available()
	if err != nil {
		return nil, err
	}
	open := make(map[picam.CameraID]bool)
	for _, d := range c.Devices() {
		open[d.ID] = true
	}
	var out []*Device
	for _, id := range ids {
		if open[id] {
			continue
		}
		d, err := c.Open(id)
		if err != nil {
			for _, d := range out {
				d.Close()
			}
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Devices returns the open devices
func (c *Controller) Devices() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d)
	}
	return out
}

// CloseAll closes every open device
func (c *Controller) CloseAll() error {
	var errs []error
	for _, d := range c.Devices() {
		errs = append(errs, d.Close())
	}
	return util.MergeErrors(errs)
}

func (c *Controller) connectDemo(model picam.Model, serial string) (picam.CameraID, error) {
	id, err := c.Lib.ConnectDemoCamera(model, serial)
	if err != nil {
		return id, err
	}
	c.mu.Lock()
	c.demos[id] = true
	c.mu.Unlock()
	return id, nil
}

func (c *Controller) disconnectDemo(id picam.CameraID) error {
	c.mu.Lock()
	mine := c.demos[id]
	delete(c.demos, id)
	c.mu.Unlock()
	if !mine {
		return nil
	}
	return c.Lib.DisconnectDemoCamera(id)
}

func (c *Controller) adopt(h picam.Handle) (*Device, error) {
	id, err := c.Lib.CameraID(h)
	if err != nil {
		c.Lib.CloseCamera(h)
		return nil, err
	}
	d := &Device{c: c, lib: c.Lib, h: h, ID: id, state: DeviceOpen}
	c.mu.Lock()
	c.devices[h] = d
	c.mu.Unlock()
	log.Printf("opened %s", id)
	return d, nil
}

func (c *Controller) forget(d *Device) error {
	c.mu.Lock()
	delete(c.devices, d.h)
	c.mu.Unlock()
	return c.disconnectDemo(d.ID)
}
