//go:build cgo && picamdl

package dynlib

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include "shim.h"
*/
import "C"

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
	"unsafe"

	"github.com/nasa-jpl/picamlab/picam"
)

// DefaultPath is opened when Open is given an empty path
const DefaultPath = "libpicam.so"

func init() {
	picam.Register("dlopen", func(path string) (picam.Library, error) {
		l, err := Open(path)
		if err != nil {
			return nil, err
		}
		return l, nil
	})
}

var _ picam.Library = (*Library)(nil)

// Module is a dlopened shared object.  It implements picam.Loader.
type Module struct {
	path   string
	handle unsafe.Pointer
}

// Load dlopens path
func Load(path string) (*Module, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	h := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_GLOBAL)
	if h == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}
	return &Module{path: path, handle: h}, nil
}

// Lookup returns the address of the named export
func (m *Module) Lookup(name string) (uintptr, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	C.dlerror()
	addr := C.dlsym(m.handle, cname)
	if addr == nil {
		return 0, fmt.Errorf("dlsym %s in %s: %s", name, m.path, C.GoString(C.dlerror()))
	}
	return uintptr(addr), nil
}

// Close dlcloses the module.  No Library built on it may be used afterwards.
func (m *Module) Close() error {
	if C.dlclose(m.handle) != 0 {
		return fmt.Errorf("dlclose %s: %s", m.path, C.GoString(C.dlerror()))
	}
	return nil
}

// camera is the bookkeeping for one open handle
type camera struct {
	handle picam.Handle
	model  C.PicamHandle
	device C.PicamHandle

	mu      sync.Mutex
	stride  int
	buffer  unsafe.Pointer
	updated picam.AcquisitionUpdatedFunc
	states  map[picam.AcquisitionState]picam.AcquisitionStateUpdatedFunc
}

// Library calls into a loaded libpicam
type Library struct {
	mod  *Module
	syms map[string]unsafe.Pointer

	mu   sync.Mutex
	open map[picam.Handle]*camera
	next picam.Handle
}

// Open loads the module at path and binds its export table
func Open(path string) (*Library, error) {
	if path == "" {
		path = DefaultPath
	}
	mod, err := Load(path)
	if err != nil {
		return nil, err
	}
	syms, err := picam.Bind(mod)
	if err != nil {
		mod.Close()
		return nil, err
	}
	l := &Library{
		mod:  mod,
		syms: make(map[string]unsafe.Pointer, len(syms)),
		open: map[picam.Handle]*camera{},
		next: 1,
	}
	for name := range syms {
		// look up again so the address never round trips through a uintptr
		cname := C.CString(name)
		l.syms[name] = C.dlsym(mod.handle, cname)
		C.free(unsafe.Pointer(cname))
	}
	return l, nil
}

// Close dlcloses the module
func (l *Library) Close() error {
	return l.mod.Close()
}

func (l *Library) fn(name string) unsafe.Pointer {
	return l.syms[name]
}

func check(code C.PicamError) error {
	return picam.ErrorFromCode(int(code))
}

func millis(d time.Duration) C.piint {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	return C.piint(ms)
}

func goID(id *C.PicamCameraID) picam.CameraID {
	return picam.CameraID{
		Model:             picam.Model(id.model),
		ComputerInterface: picam.ComputerInterface(id.computer_interface),
		SensorName:        C.GoString((*C.char)(unsafe.Pointer(&id.sensor_name[0]))),
		SerialNumber:      C.GoString((*C.char)(unsafe.Pointer(&id.serial_number[0]))),
	}
}

func cID(id picam.CameraID) C.PicamCameraID {
	var c C.PicamCameraID
	c.model = C.int(id.Model)
	c.computer_interface = C.int(id.ComputerInterface)
	copyName(c.sensor_name[:], id.SensorName)
	copyName(c.serial_number[:], id.SerialNumber)
	return c
}

// copyName copies s into dst, truncated to leave a terminating NUL
func copyName(dst []C.pichar, s string) {
	n := len(s)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	for i := 0; i < n; i++ {
		dst[i] = C.pichar(s[i])
	}
	dst[n] = 0
}

func (l *Library) camera(h picam.Handle) (*camera, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.open[h]
	if !ok {
		return nil, picam.InvalidHandle
	}
	return c, nil
}

// Initialize initializes the library
func (l *Library) Initialize() error {
	return check(C.pc_void(l.fn("Picam_InitializeLibrary")))
}

// Uninitialize releases the library.  Buffers of cameras left open are freed.
func (l *Library) Uninitialize() error {
	err := check(C.pc_void(l.fn("Picam_UninitializeLibrary")))
	if err != nil {
		return err
	}
	l.mu.Lock()
	cams := l.open
	l.open = map[picam.Handle]*camera{}
	l.mu.Unlock()
	for _, c := range cams {
		forget(c)
		c.freeBuffer()
	}
	return nil
}

// IsInitialized reports if the library is initialized
func (l *Library) IsInitialized() (bool, error) {
	var b C.pibln
	err := check(C.pc_bln(l.fn("Picam_IsLibraryInitialized"), &b))
	return b != 0, err
}

// Version returns the library version
func (l *Library) Version() (picam.Version, error) {
	var major, minor, dist, rel C.piint
	err := check(C.pc_version(l.fn("Picam_GetVersion"), &major, &minor, &dist, &rel))
	return picam.Version{Major: int(major), Minor: int(minor), Distribution: int(dist), Released: int(rel)}, err
}

// EnumerationString returns the library's name for an enumerated value
func (l *Library) EnumerationString(t picam.EnumeratedType, value int) (string, error) {
	var s *C.pichar
	if err := check(C.pc_enum_string(l.fn("Picam_GetEnumerationString"), C.int(t), C.piint(value), &s)); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	out := C.GoString((*C.char)(unsafe.Pointer(s)))
	return out, check(C.pc_ptr(l.fn("Picam_DestroyString"), unsafe.Pointer(s)))
}

// AvailableCameraIDs lists the cameras that can be opened
func (l *Library) AvailableCameraIDs() ([]picam.CameraID, error) {
	var ids *C.PicamCameraID
	var n C.piint
	if err := check(C.pc_ids(l.fn("Picam_GetAvailableCameraIDs"), &ids, &n)); err != nil {
		return nil, err
	}
	if ids == nil {
		return nil, nil
	}
	out := make([]picam.CameraID, 0, int(n))
	for _, id := range unsafe.Slice(ids, int(n)) {
		out = append(out, goID(&id))
	}
	return out, check(C.pc_ptr(l.fn("Picam_DestroyCameraIDs"), unsafe.Pointer(ids)))
}

// ConnectDemoCamera connects a virtual camera
func (l *Library) ConnectDemoCamera(model picam.Model, serial string) (picam.CameraID, error) {
	cs := C.CString(serial)
	defer C.free(unsafe.Pointer(cs))
	var id C.PicamCameraID
	if err := check(C.pc_connect_demo(l.fn("Picam_ConnectDemoCamera"), C.int(model), (*C.pichar)(unsafe.Pointer(cs)), &id)); err != nil {
		return picam.CameraID{}, err
	}
	return goID(&id), nil
}

// DisconnectDemoCamera removes a virtual camera
func (l *Library) DisconnectDemoCamera(id picam.CameraID) error {
	c := cID(id)
	return check(C.pc_ptr(l.fn("Picam_DisconnectDemoCamera"), unsafe.Pointer(&c)))
}

// OpenFirstCamera opens the first available camera
func (l *Library) OpenFirstCamera() (picam.Handle, error) {
	var h C.PicamHandle
	if err := check(C.pc_open_first(l.fn("Picam_OpenFirstCamera"), &h)); err != nil {
		return 0, err
	}
	return l.track(h)
}

// OpenCamera opens the camera with id
func (l *Library) OpenCamera(id picam.CameraID) (picam.Handle, error) {
	c := cID(id)
	var h C.PicamHandle
	if err := check(C.pc_open(l.fn("Picam_OpenCamera"), &c, &h)); err != nil {
		return 0, err
	}
	return l.track(h)
}

// track records a freshly opened camera and its device handle
func (l *Library) track(h C.PicamHandle) (picam.Handle, error) {
	var dev C.PicamHandle
	if err := check(C.pc_device(l.fn("PicamAdvanced_GetCameraDevice"), h, &dev)); err != nil {
		C.pc_handle(l.fn("Picam_CloseCamera"), h)
		return 0, err
	}
	l.mu.Lock()
	c := &camera{handle: l.next, model: h, device: dev, states: map[picam.AcquisitionState]picam.AcquisitionStateUpdatedFunc{}}
	l.next++
	l.open[c.handle] = c
	l.mu.Unlock()
	remember(c)
	l.refreshStride(c)
	return c.handle, nil
}

// CloseCamera closes h and frees its acquisition buffer
func (l *Library) CloseCamera(h picam.Handle) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if err = check(C.pc_handle(l.fn("Picam_CloseCamera"), c.model)); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.open, h)
	l.mu.Unlock()
	forget(c)
	c.freeBuffer()
	return nil
}

// CameraID returns the ID of an open camera
func (l *Library) CameraID(h picam.Handle) (picam.CameraID, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.CameraID{}, err
	}
	var id C.PicamCameraID
	if err = check(C.pc_handle_id(l.fn("Picam_GetCameraID"), c.model, &id)); err != nil {
		return picam.CameraID{}, err
	}
	return goID(&id), nil
}

func (l *Library) paramBool(name string, h picam.Handle, p picam.Parameter) (bool, error) {
	c, err := l.camera(h)
	if err != nil {
		return false, err
	}
	var b C.pibln
	err = check(C.pc_param_bln(l.fn(name), c.model, C.PicamParameter(p), &b))
	return b != 0, err
}

// DoesParameterExist reports if the camera has p
func (l *Library) DoesParameterExist(h picam.Handle, p picam.Parameter) (bool, error) {
	return l.paramBool("Picam_DoesParameterExist", h, p)
}

// CanSetParameterOnline reports if p may change during an acquisition
func (l *Library) CanSetParameterOnline(h picam.Handle, p picam.Parameter) (bool, error) {
	return l.paramBool("Picam_CanSetParameterOnline", h, p)
}

// Parameters lists the camera's parameters, sorted by ID
func (l *Library) Parameters(h picam.Handle) ([]picam.Parameter, error) {
	c, err := l.camera(h)
	if err != nil {
		return nil, err
	}
	ps, err := l.paramList("Picam_GetParameters", c)
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps, err
}

// IsParameterRelevant reports if p affects the camera given the other values
func (l *Library) IsParameterRelevant(h picam.Handle, p picam.Parameter) (bool, error) {
	return l.paramBool("Picam_IsParameterRelevant", h, p)
}

// ValueAccess reports how p may be changed
func (l *Library) ValueAccess(h picam.Handle, p picam.Parameter) (picam.ValueAccess, error) {
	v, err := l.getInt("Picam_GetParameterValueAccess", h, p)
	return picam.ValueAccess(v), err
}

func (l *Library) getInt(name string, h picam.Handle, p picam.Parameter) (int, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	var v C.piint
	err = check(C.pc_get_int(l.fn(name), c.model, C.PicamParameter(p), &v))
	return int(v), err
}

func (l *Library) getFloat(name string, h picam.Handle, p picam.Parameter) (float64, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	var v C.piflt
	err = check(C.pc_get_flt(l.fn(name), c.model, C.PicamParameter(p), &v))
	return float64(v), err
}

func (l *Library) setFloat(name string, h picam.Handle, p picam.Parameter, v float64) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return check(C.pc_set_flt(l.fn(name), c.model, C.PicamParameter(p), C.piflt(v)))
}

// IntegerValue returns the set value of an integer or enumerated parameter
func (l *Library) IntegerValue(h picam.Handle, p picam.Parameter) (int, error) {
	return l.getInt("Picam_GetParameterIntegerValue", h, p)
}

// SetIntegerValue sets an integer or enumerated parameter
func (l *Library) SetIntegerValue(h picam.Handle, p picam.Parameter, v int) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return check(C.pc_set_int(l.fn("Picam_SetParameterIntegerValue"), c.model, C.PicamParameter(p), C.piint(v)))
}

// LargeIntegerValue returns the set value of a large integer parameter
func (l *Library) LargeIntegerValue(h picam.Handle, p picam.Parameter) (int64, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	var v C.pi64s
	err = check(C.pc_get_large(l.fn("Picam_GetParameterLargeIntegerValue"), c.model, C.PicamParameter(p), &v))
	return int64(v), err
}

// SetLargeIntegerValue sets a large integer parameter
func (l *Library) SetLargeIntegerValue(h picam.Handle, p picam.Parameter, v int64) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return check(C.pc_set_large(l.fn("Picam_SetParameterLargeIntegerValue"), c.model, C.PicamParameter(p), C.pi64s(v)))
}

// FloatingPointValue returns the set value of a floating point parameter
func (l *Library) FloatingPointValue(h picam.Handle, p picam.Parameter) (float64, error) {
	return l.getFloat("Picam_GetParameterFloatingPointValue", h, p)
}

// SetFloatingPointValue sets a floating point parameter
func (l *Library) SetFloatingPointValue(h picam.Handle, p picam.Parameter, v float64) error {
	return l.setFloat("Picam_SetParameterFloatingPointValue", h, p, v)
}

// SetFloatingPointValueOnline changes an onlineable parameter during an acquisition
func (l *Library) SetFloatingPointValueOnline(h picam.Handle, p picam.Parameter, v float64) error {
	return l.setFloat("Picam_SetParameterFloatingPointValueOnline", h, p, v)
}

// ReadIntegerValue reads a live integer value from the camera
func (l *Library) ReadIntegerValue(h picam.Handle, p picam.Parameter) (int, error) {
	return l.getInt("Picam_ReadParameterIntegerValue", h, p)
}

// ReadFloatingPointValue reads a live floating point value from the camera
func (l *Library) ReadFloatingPointValue(h picam.Handle, p picam.Parameter) (float64, error) {
	return l.getFloat("Picam_ReadParameterFloatingPointValue", h, p)
}

// getPtr fetches a library-allocated value.  destroy is called exactly once,
// after read, when the call succeeded and returned a non-nil pointer.
func (l *Library) getPtr(get, destroy string, h picam.Handle, p picam.Parameter, read func(unsafe.Pointer)) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	var ptr unsafe.Pointer
	if err = check(C.pc_get_ptr(l.fn(get), c.model, C.PicamParameter(p), &ptr)); err != nil {
		return err
	}
	if ptr == nil {
		return nil
	}
	read(ptr)
	return check(C.pc_ptr(l.fn(destroy), ptr))
}

func (l *Library) setPtr(name string, h picam.Handle, p picam.Parameter, ptr unsafe.Pointer) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return check(C.pc_set_ptr(l.fn(name), c.model, C.PicamParameter(p), ptr))
}

// RoisValue returns the regions of interest
func (l *Library) RoisValue(h picam.Handle, p picam.Parameter) (picam.Rois, error) {
	var out picam.Rois
	err := l.getPtr("Picam_GetParameterRoisValue", "Picam_DestroyRois", h, p, func(ptr unsafe.Pointer) {
		rs := (*C.PicamRois)(ptr)
		if rs.roi_array == nil {
			return
		}
		for _, r := range unsafe.Slice(rs.roi_array, int(rs.roi_count)) {
			out = append(out, picam.Roi{
				X: int(r.x), Width: int(r.width), XBinning: int(r.x_binning),
				Y: int(r.y), Height: int(r.height), YBinning: int(r.y_binning),
			})
		}
	})
	return out, err
}

// SetRoisValue sets the regions of interest
func (l *Library) SetRoisValue(h picam.Handle, p picam.Parameter, r picam.Rois) error {
	var rs C.PicamRois
	if len(r) > 0 {
		arr := (*C.PicamRoi)(C.calloc(C.size_t(len(r)), C.size_t(unsafe.Sizeof(C.PicamRoi{}))))
		if arr == nil {
			return picam.InsufficientMemory
		}
		defer C.free(unsafe.Pointer(arr))
		dst := unsafe.Slice(arr, len(r))
		for i, roi := range r {
			dst[i].x, dst[i].width, dst[i].x_binning = C.piint(roi.X), C.piint(roi.Width), C.piint(roi.XBinning)
			dst[i].y, dst[i].height, dst[i].y_binning = C.piint(roi.Y), C.piint(roi.Height), C.piint(roi.YBinning)
		}
		rs.roi_array = arr
		rs.roi_count = C.piint(len(r))
	}
	return l.setPtr("Picam_SetParameterRoisValue", h, p, unsafe.Pointer(&rs))
}

// PulseValue returns a pulse parameter
func (l *Library) PulseValue(h picam.Handle, p picam.Parameter) (picam.Pulse, error) {
	var out picam.Pulse
	err := l.getPtr("Picam_GetParameterPulseValue", "Picam_DestroyPulses", h, p, func(ptr unsafe.Pointer) {
		v := (*C.PicamPulse)(ptr)
		out = picam.Pulse{Delay: float64(v.delay), Width: float64(v.width)}
	})
	return out, err
}

// SetPulseValue sets a pulse parameter
func (l *Library) SetPulseValue(h picam.Handle, p picam.Parameter, v picam.Pulse) error {
	cv := C.PicamPulse{delay: C.piflt(v.Delay), width: C.piflt(v.Width)}
	return l.setPtr("Picam_SetParameterPulseValue", h, p, unsafe.Pointer(&cv))
}

// ModulationsValue returns a modulation sequence
func (l *Library) ModulationsValue(h picam.Handle, p picam.Parameter) (picam.Modulations, error) {
	var out picam.Modulations
	err := l.getPtr("Picam_GetParameterModulationsValue", "Picam_DestroyModulations", h, p, func(ptr unsafe.Pointer) {
		ms := (*C.PicamModulations)(ptr)
		if ms.modulation_array == nil {
			return
		}
		for _, m := range unsafe.Slice(ms.modulation_array, int(ms.modulation_count)) {
			out = append(out, picam.Modulation{
				Duration:              float64(m.duration),
				Frequency:             float64(m.frequency),
				Phase:                 float64(m.phase),
				OutputSignalFrequency: float64(m.output_signal_frequency),
			})
		}
	})
	return out, err
}

// SetModulationsValue sets a modulation sequence
func (l *Library) SetModulationsValue(h picam.Handle, p picam.Parameter, v picam.Modulations) error {
	var ms C.PicamModulations
	if len(v) > 0 {
		arr := (*C.PicamModulation)(C.calloc(C.size_t(len(v)), C.size_t(unsafe.Sizeof(C.PicamModulation{}))))
		if arr == nil {
			return picam.InsufficientMemory
		}
		defer C.free(unsafe.Pointer(arr))
		dst := unsafe.Slice(arr, len(v))
		for i, m := range v {
			dst[i] = C.PicamModulation{
				duration:                C.piflt(m.Duration),
				frequency:               C.piflt(m.Frequency),
				phase:                   C.piflt(m.Phase),
				output_signal_frequency: C.piflt(m.OutputSignalFrequency),
			}
		}
		ms.modulation_array = arr
		ms.modulation_count = C.piint(len(v))
	}
	return l.setPtr("Picam_SetParameterModulationsValue", h, p, unsafe.Pointer(&ms))
}

// CollectionConstraint returns the allowed values of a collection parameter
func (l *Library) CollectionConstraint(h picam.Handle, p picam.Parameter, cat picam.ConstraintCategory) (picam.CollectionConstraint, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.CollectionConstraint{}, err
	}
	var cc *C.PicamCollectionConstraint
	if err = check(C.pc_constraint(l.fn("Picam_GetParameterCollectionConstraint"), c.model, C.PicamParameter(p), C.int(cat), &cc)); err != nil {
		return picam.CollectionConstraint{}, err
	}
	if cc == nil {
		return picam.CollectionConstraint{}, nil
	}
	var out picam.CollectionConstraint
	if cc.values_array != nil {
		for _, v := range unsafe.Slice(cc.values_array, int(cc.values_count)) {
			out.Values = append(out.Values, float64(v))
		}
	}
	return out, check(C.pc_ptr(l.fn("Picam_DestroyCollectionConstraints"), unsafe.Pointer(cc)))
}

// RangeConstraint returns the allowed span of a range parameter
func (l *Library) RangeConstraint(h picam.Handle, p picam.Parameter, cat picam.ConstraintCategory) (picam.RangeConstraint, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.RangeConstraint{}, err
	}
	var rc *C.PicamRangeConstraint
	if err = check(C.pc_range(l.fn("Picam_GetParameterRangeConstraint"), c.model, C.PicamParameter(p), C.int(cat), &rc)); err != nil {
		return picam.RangeConstraint{}, err
	}
	if rc == nil {
		return picam.RangeConstraint{}, nil
	}
	out := picam.RangeConstraint{
		Empty:     rc.empty_set != 0,
		Minimum:   float64(rc.minimum),
		Maximum:   float64(rc.maximum),
		Increment: float64(rc.increment),
		Excluded:  floats(rc.excluded_values_array, rc.excluded_values_count),
		Outlying:  floats(rc.outlying_values_array, rc.outlying_values_count),
	}
	return out, check(C.pc_ptr(l.fn("Picam_DestroyRangeConstraints"), unsafe.Pointer(rc)))
}

func floats(arr *C.piflt, n C.piint) []float64 {
	if arr == nil || n <= 0 {
		return nil
	}
	out := make([]float64, 0, int(n))
	for _, v := range unsafe.Slice(arr, int(n)) {
		out = append(out, float64(v))
	}
	return out
}

// AreParametersCommitted reports if every set value has been committed
func (l *Library) AreParametersCommitted(h picam.Handle) (bool, error) {
	c, err := l.camera(h)
	if err != nil {
		return false, err
	}
	var b C.pibln
	err = check(C.pc_handle_bln(l.fn("Picam_AreParametersCommitted"), c.model, &b))
	return b != 0, err
}

// paramList calls a list returning entry point, Picam_CommitParameters or
// Picam_GetParameters, and frees the list
func (l *Library) paramList(name string, c *camera) ([]picam.Parameter, error) {
	var ps *C.PicamParameter
	var n C.piint
	if err := check(C.pc_commit(l.fn(name), c.model, &ps, &n)); err != nil {
		return nil, err
	}
	if ps == nil {
		return nil, nil
	}
	var out []picam.Parameter
	for _, p := range unsafe.Slice(ps, int(n)) {
		out = append(out, picam.Parameter(p))
	}
	return out, check(C.pc_ptr(l.fn("Picam_DestroyParameters"), unsafe.Pointer(ps)))
}

// CommitParameters sends the set values to the camera
func (l *Library) CommitParameters(h picam.Handle) ([]picam.Parameter, error) {
	c, err := l.camera(h)
	if err != nil {
		return nil, err
	}
	out, err := l.paramList("Picam_CommitParameters", c)
	if err != nil {
		return out, err
	}
	if len(out) == 0 {
		l.refreshStride(c)
	}
	return out, nil
}

// refreshStride caches the readout stride for building AvailableData
func (l *Library) refreshStride(c *camera) {
	var v C.piint
	if check(C.pc_get_int(l.fn("Picam_GetParameterIntegerValue"), c.model, C.PicamParameter(picam.ReadoutStride), &v)) != nil {
		return
	}
	c.mu.Lock()
	c.stride = int(v)
	c.mu.Unlock()
}

func (c *camera) data(d *C.PicamAvailableData) picam.AvailableData {
	c.mu.Lock()
	stride := c.stride
	c.mu.Unlock()
	n := int64(d.readout_count)
	if d.initial_readout == nil || n <= 0 || stride <= 0 {
		return picam.AvailableData{ReadoutCount: n}
	}
	return picam.AvailableData{
		Data:         unsafe.Slice((*byte)(d.initial_readout), int(n)*stride),
		ReadoutCount: n,
	}
}

// Acquire collects readouts synchronously
func (l *Library) Acquire(h picam.Handle, readouts int64, timeout time.Duration) (picam.AvailableData, picam.AcquisitionErrorsMask, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.AvailableData{}, 0, err
	}
	l.refreshStride(c)
	var d C.PicamAvailableData
	var errs C.int
	err = check(C.pc_acquire(l.fn("Picam_Acquire"), c.model, C.pi64s(readouts), millis(timeout), &d, &errs))
	return c.data(&d), picam.AcquisitionErrorsMask(errs), err
}

func (l *Library) handleCall(name string, h picam.Handle) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return check(C.pc_handle(l.fn(name), c.model))
}

// StartAcquisition begins an asynchronous acquisition
func (l *Library) StartAcquisition(h picam.Handle) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	l.refreshStride(c)
	return check(C.pc_handle(l.fn("Picam_StartAcquisition"), c.model))
}

// StopAcquisition requests the acquisition end
func (l *Library) StopAcquisition(h picam.Handle) error {
	return l.handleCall("Picam_StopAcquisition", h)
}

// IsAcquisitionRunning reports if an acquisition is in progress
func (l *Library) IsAcquisitionRunning(h picam.Handle) (bool, error) {
	c, err := l.camera(h)
	if err != nil {
		return false, err
	}
	var b C.pibln
	err = check(C.pc_handle_bln(l.fn("Picam_IsAcquisitionRunning"), c.model, &b))
	return b != 0, err
}

// WaitForAcquisitionUpdate blocks until readouts arrive, the acquisition
// stops or timeout elapses
func (l *Library) WaitForAcquisitionUpdate(h picam.Handle, timeout time.Duration) (picam.AvailableData, picam.AcquisitionStatus, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.AvailableData{}, picam.AcquisitionStatus{}, err
	}
	var d C.PicamAvailableData
	var st C.PicamAcquisitionStatus
	err = check(C.pc_wait(l.fn("Picam_WaitForAcquisitionUpdate"), c.model, millis(timeout), &d, &st))
	return c.data(&d), goStatus(&st), err
}

func goStatus(st *C.PicamAcquisitionStatus) picam.AcquisitionStatus {
	return picam.AcquisitionStatus{
		Running:     st.running != 0,
		Errors:      picam.AcquisitionErrorsMask(st.errors),
		ReadoutRate: float64(st.readout_rate),
	}
}

// SetAcquisitionBuffer replaces the circular buffer with size bytes of C memory.
// A size of zero returns the camera to its internal buffer.
func (l *Library) SetAcquisitionBuffer(h picam.Handle, size int64) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if size < 0 {
		return picam.InvalidAcquisitionBuffer
	}
	var mem unsafe.Pointer
	if size > 0 {
		mem = C.malloc(C.size_t(size))
		if mem == nil {
			return picam.InsufficientMemory
		}
	}
	buf := C.PicamAcquisitionBuffer{memory: mem, memory_size: C.pi64s(size)}
	if err = check(C.pc_set_buffer(l.fn("PicamAdvanced_SetAcquisitionBuffer"), c.device, &buf)); err != nil {
		if mem != nil {
			C.free(mem)
		}
		return err
	}
	c.mu.Lock()
	old := c.buffer
	c.buffer = mem
	c.mu.Unlock()
	if old != nil {
		C.free(old)
	}
	return nil
}

func (c *camera) freeBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffer != nil {
		C.free(c.buffer)
		c.buffer = nil
	}
}

// RegisterForAcquisitionUpdated routes acquisition updates of h to fn
func (l *Library) RegisterForAcquisitionUpdated(h picam.Handle, fn picam.AcquisitionUpdatedFunc) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if fn == nil {
		return picam.UnexpectedNullPointer
	}
	c.mu.Lock()
	c.updated = fn
	c.mu.Unlock()
	if err = check(C.pc_updated(l.fn("PicamAdvanced_RegisterForAcquisitionUpdated"), c.device)); err != nil {
		c.mu.Lock()
		c.updated = nil
		c.mu.Unlock()
	}
	return err
}

// UnregisterForAcquisitionUpdated removes the update handler of h
func (l *Library) UnregisterForAcquisitionUpdated(h picam.Handle) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if err = check(C.pc_updated(l.fn("PicamAdvanced_UnregisterForAcquisitionUpdated"), c.device)); err != nil {
		return err
	}
	c.mu.Lock()
	c.updated = nil
	c.mu.Unlock()
	return nil
}

// RegisterForAcquisitionStateUpdated routes state s of h to fn
func (l *Library) RegisterForAcquisitionStateUpdated(h picam.Handle, s picam.AcquisitionState, fn picam.AcquisitionStateUpdatedFunc) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if fn == nil {
		return picam.UnexpectedNullPointer
	}
	c.mu.Lock()
	c.states[s] = fn
	c.mu.Unlock()
	if err = check(C.pc_state(l.fn("PicamAdvanced_RegisterForAcquisitionStateUpdated"), c.device, C.int(s))); err != nil {
		c.mu.Lock()
		delete(c.states, s)
		c.mu.Unlock()
	}
	return err
}

// UnregisterForAcquisitionStateUpdated removes the state handler for s
func (l *Library) UnregisterForAcquisitionStateUpdated(h picam.Handle, s picam.AcquisitionState) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if err = check(C.pc_state(l.fn("PicamAdvanced_UnregisterForAcquisitionStateUpdated"), c.device, C.int(s))); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.states, s)
	c.mu.Unlock()
	return nil
}
