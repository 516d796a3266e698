/*Package demo is an in-process simulation of the PICam library.

It implements picam.Library with demo cameras whose parameters, constraints,
commit behavior, readout pacing and acquisition buffers mirror the vendor
library closely enough to exercise the acquisition client loop without
hardware.  It registers itself as the "demo" linkage.

Pixel values are deterministic; PixelValue(readout, pixel) is the value of
pixel index pixel in the readout-th readout of an acquisition.
*/
package demo

import (
	"sort"
	"sync"

	"github.com/nasa-jpl/picamlab/picam"
)

func init() {
	picam.Register("demo", func(string) (picam.Library, error) {
		return New(), nil
	})
}

// LibraryVersion is reported by Version
var LibraryVersion = picam.Version{Major: 5, Minor: 13, Distribution: 3, Released: 2208}

// sensor describes a simulated model
type sensor struct {
	name        string
	width       int
	height      int
	speeds      []float64 // MHz, fastest first
	defSpeed    float64
	qualities   []float64
	minSetPoint float64
	defSetPoint float64
	intensified bool
}

var sensors = map[picam.Model]sensor{
	picam.ModelPixis100F:           {name: "PIXIS 100F", width: 1340, height: 100, speeds: []float64{2, 0.1}, defSpeed: 2, qualities: []float64{1, 2}, minSetPoint: -80, defSetPoint: -70},
	picam.ModelPixis100B:           {name: "PIXIS 100B", width: 1340, height: 100, speeds: []float64{2, 0.1}, defSpeed: 2, qualities: []float64{1, 2}, minSetPoint: -80, defSetPoint: -70},
	picam.ModelPixis1300F:          {name: "PIXIS 1300F", width: 1340, height: 1300, speeds: []float64{2, 0.1}, defSpeed: 2, qualities: []float64{1, 2}, minSetPoint: -80, defSetPoint: -70},
	picam.ModelPixis100BRExcelon:   {name: "PIXIS 100BR eXcelon", width: 1340, height: 100, speeds: []float64{2, 0.1}, defSpeed: 2, qualities: []float64{1, 2}, minSetPoint: -80, defSetPoint: -70},
	picam.ModelQuadro4096:          {name: "Quad-RO 4096", width: 4096, height: 4096, speeds: []float64{1, 0.5, 0.1}, defSpeed: 1, qualities: []float64{1}, minSetPoint: -60, defSetPoint: -50},
	picam.ModelProEM512B:           {name: "ProEM 512B", width: 512, height: 512, speeds: []float64{10, 5, 1, 0.1}, defSpeed: 10, qualities: []float64{1, 3}, minSetPoint: -70, defSetPoint: -60},
	picam.ModelPIMax41024I:         {name: "PI-MAX4 1024i", width: 1024, height: 1024, speeds: []float64{16, 8, 2}, defSpeed: 16, qualities: []float64{1}, minSetPoint: -30, defSetPoint: -20, intensified: true},
	picam.ModelProEMHS1024BExcelon: {name: "ProEM-HS 1024B eXcelon", width: 1024, height: 1024, speeds: []float64{30, 20, 10, 5}, defSpeed: 30, qualities: []float64{1, 3, 4}, minSetPoint: -70, defSetPoint: -65},
	picam.ModelProEMHS1024BX3:      {name: "ProEM-HS 1024BX3", width: 1024, height: 1024, speeds: []float64{30, 20, 10, 5}, defSpeed: 30, qualities: []float64{1, 3, 4}, minSetPoint: -70, defSetPoint: -65},
	picam.ModelFergie256BFT:        {name: "FERGIE 256BFT", width: 1024, height: 256, speeds: []float64{4, 1}, defSpeed: 4, qualities: []float64{1}, minSetPoint: -55, defSetPoint: -50},
}

// Library is the simulated library.  The zero value is not usable; call New.
type Library struct {
	mu          sync.Mutex
	initialized bool
	attached    []picam.CameraID // simulated hardware
	demos       []picam.CameraID // connected demo cameras
	open        map[picam.Handle]*camera
	next        picam.Handle
}

// New returns an uninitialized simulated library with no attached hardware
func New() *Library {
	return &Library{open: map[picam.Handle]*camera{}, next: 0x1000}
}

// Attach adds a simulated real camera, as if it were plugged in.
// Attached cameras are found by OpenFirstCamera before demo cameras.
func (l *Library) Attach(model picam.Model, serial string) (picam.CameraID, error) {
	s, ok := sensors[model]
	if !ok {
		return picam.CameraID{}, picam.InvalidDemoModel
	}
	id := picam.CameraID{Model: model, ComputerInterface: picam.InterfaceUSB3, SensorName: s.name, SerialNumber: serial}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attached = append(l.attached, id)
	return id, nil
}

// InjectErrors makes the next readout of h report mask.
// ConnectionLost and CameraFaulted end the acquisition.
func (l *Library) InjectErrors(h picam.Handle, mask picam.AcquisitionErrorsMask) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.inject |= mask
	c.mu.Unlock()
	return nil
}

// Initialize initializes the library
func (l *Library) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return picam.LibraryAlreadyInitialized
	}
	l.initialized = true
	return nil
}

// Uninitialize stops every acquisition, closes every camera and disconnects demo cameras
func (l *Library) Uninitialize() error {
	l.mu.Lock()
	if !l.initialized {
		l.mu.Unlock()
		return picam.LibraryNotInitialized
	}
	cams := make([]*camera, 0, len(l.open))
	for _, c := range l.open {
		cams = append(cams, c)
	}
	l.open = map[picam.Handle]*camera{}
	l.demos = nil
	l.initialized = false
	l.mu.Unlock()
	for _, c := range cams {
		c.shutdown()
	}
	return nil
}

// IsInitialized reports if Initialize has been called
func (l *Library) IsInitialized() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialized, nil
}

// Version returns LibraryVersion
func (l *Library) Version() (picam.Version, error) {
	return LibraryVersion, nil
}

// EnumerationString renders an enumeration value
func (l *Library) EnumerationString(t picam.EnumeratedType, value int) (string, error) {
	return picam.EnumString(t, value)
}

func (l *Library) checkInit() error {
	if !l.initialized {
		return picam.LibraryNotInitialized
	}
	return nil
}

// AvailableCameraIDs lists attached then demo cameras
func (l *Library) AvailableCameraIDs() ([]picam.CameraID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkInit(); err != nil {
		return nil, err
	}
	out := make([]picam.CameraID, 0, len(l.attached)+len(l.demos))
	out = append(out, l.attached...)
	out = append(out, l.demos...)
	return out, nil
}

// ConnectDemoCamera makes a demo camera of model available
func (l *Library) ConnectDemoCamera(model picam.Model, serial string) (picam.CameraID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkInit(); err != nil {
		return picam.CameraID{}, err
	}
	s, ok := sensors[model]
	if !ok {
		return picam.CameraID{}, picam.InvalidDemoModel
	}
	if serial == "" {
		return picam.CameraID{}, picam.InvalidDemoSerialNumber
	}
	for _, d := range l.demos {
		if d.SerialNumber == serial && d.Model == model {
			return picam.CameraID{}, picam.DemoAlreadyConnected
		}
	}
	id := picam.CameraID{Model: model, ComputerInterface: picam.InterfaceVirtual, SensorName: s.name, SerialNumber: serial}
	l.demos = append(l.demos, id)
	return id, nil
}

// DisconnectDemoCamera removes a demo camera.  An open demo camera cannot be disconnected.
func (l *Library) DisconnectDemoCamera(id picam.CameraID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkInit(); err != nil {
		return err
	}
	for _, c := range l.open {
		if c.id == id {
			return picam.CameraAlreadyOpened
		}
	}
	for i, d := range l.demos {
		if d == id {
			l.demos = append(l.demos[:i], l.demos[i+1:]...)
			return nil
		}
	}
	return picam.InvalidCameraID
}

func (l *Library) isOpen(id picam.CameraID) bool {
	for _, c := range l.open {
		if c.id == id {
			return true
		}
	}
	return false
}

// OpenFirstCamera opens the first available camera that is not already open
func (l *Library) OpenFirstCamera() (picam.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkInit(); err != nil {
		return 0, err
	}
	for _, list := range [][]picam.CameraID{l.attached, l.demos} {
		for _, id := range list {
			if !l.isOpen(id) {
				return l.openLocked(id), nil
			}
		}
	}
	return 0, picam.NoCamerasAvailable
}

// OpenCamera opens the camera identified by id
func (l *Library) OpenCamera(id picam.CameraID) (picam.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkInit(); err != nil {
		return 0, err
	}
	found := false
	for _, list := range [][]picam.CameraID{l.attached, l.demos} {
		for _, x := range list {
			if x == id {
				found = true
			}
		}
	}
	if !found {
		return 0, picam.InvalidCameraID
	}
	if l.isOpen(id) {
		return 0, picam.CameraAlreadyOpened
	}
	return l.openLocked(id), nil
}

func (l *Library) openLocked(id picam.CameraID) picam.Handle {
	l.next++
	h := l.next
	l.open[h] = newCamera(h, id, sensors[id.Model])
	return h
}

// CloseCamera closes h.  A camera with a running acquisition cannot be closed.
func (l *Library) CloseCamera(h picam.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkInit(); err != nil {
		return err
	}
	c, ok := l.open[h]
	if !ok {
		return picam.InvalidHandle
	}
	if c.running() {
		return picam.AcquisitionInProgress
	}
	delete(l.open, h)
	return nil
}

// CameraID returns the ID of an open camera
func (l *Library) CameraID(h picam.Handle) (picam.CameraID, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.CameraID{}, err
	}
	return c.id, nil
}

func (l *Library) camera(h picam.Handle) (*camera, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkInit(); err != nil {
		return nil, err
	}
	c, ok := l.open[h]
	if !ok {
		return nil, picam.InvalidHandle
	}
	return c, nil
}

// Models lists the models ConnectDemoCamera accepts
func Models() []picam.Model {
	out := make([]picam.Model, 0, len(sensors))
	for m := range sensors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SensorSize returns the active width and height of a model
func SensorSize(m picam.Model) (width, height int, ok bool) {
	s, ok := sensors[m]
	return s.width, s.height, ok
}
