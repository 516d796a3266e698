/*Package picam describes the PICam camera library as a Go capability interface.

The Library interface is the uniform surface every linkage strategy implements.
The demo subpackage is an in-process simulated library; the dynlib subpackage
loads libpicam at runtime and resolves its export table with Bind.

Values handed out by a Library (AvailableData in particular) reference memory the
library owns.  They are valid only until the next wait, callback or acquire on the
same handle; copy anything needed after that point.
*/
package picam

import (
	"fmt"
	"strings"
	"time"
)

// Handle is an opaque reference to an open camera.  The library owns it.
type Handle uintptr

// Model is a camera model identifier
type Model int

// ComputerInterface is the transport a camera is attached by
type ComputerInterface int

const (
	// InterfaceUSB2 is a USB 2.0 attached camera
	InterfaceUSB2 ComputerInterface = 1

	// InterfaceUSB3 is a USB 3.0 attached camera
	InterfaceUSB3 ComputerInterface = 3

	// InterfaceGigabitEthernet is a GigE attached camera
	InterfaceGigabitEthernet ComputerInterface = 2

	// InterfaceVirtual is a demo camera
	InterfaceVirtual ComputerInterface = 0
)

// CameraID identifies a camera independent of whether it is open
type CameraID struct {
	Model             Model             `json:"model"`
	ComputerInterface ComputerInterface `json:"computerInterface"`
	SensorName        string            `json:"sensorName"`
	SerialNumber      string            `json:"serialNumber"`
}

func (id CameraID) String() string {
	return fmt.Sprintf("%s (SN:%s) [%s]", id.Model, id.SerialNumber, id.SensorName)
}

// Version is the library version quadruple
type Version struct {
	Major, Minor, Distribution, Released int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Distribution, v.Released)
}

// AvailableData is a view over readouts in the library's acquisition buffer.
// Data holds ReadoutCount readouts of ReadoutStride bytes each.
type AvailableData struct {
	Data         []byte
	ReadoutCount int64
}

// AcquisitionErrorsMask is a bitmask of acquisition errors
type AcquisitionErrorsMask int

const (
	// AcquisitionErrorsNone means no errors
	AcquisitionErrorsNone AcquisitionErrorsMask = 0x00

	// DataLost means readouts were overwritten before they were read
	DataLost AcquisitionErrorsMask = 0x01

	// ConnectionLost means the camera went away
	ConnectionLost AcquisitionErrorsMask = 0x02

	// DataNotArriving means readouts stopped arriving
	DataNotArriving AcquisitionErrorsMask = 0x04

	// ShutterOverheated means the shutter was shut down to cool
	ShutterOverheated AcquisitionErrorsMask = 0x08

	// CameraFaulted means the camera reported a hardware fault
	CameraFaulted AcquisitionErrorsMask = 0x10
)

var errorsMaskNames = []struct {
	bit  AcquisitionErrorsMask
	name string
}{
	{DataLost, "DataLost"},
	{ConnectionLost, "ConnectionLost"},
	{DataNotArriving, "DataNotArriving"},
	{ShutterOverheated, "ShutterOverheated"},
	{CameraFaulted, "CameraFaulted"},
}

// Bits splits the mask into its set bits in ascending order
func (m AcquisitionErrorsMask) Bits() []AcquisitionErrorsMask {
	var out []AcquisitionErrorsMask
	for _, e := range errorsMaskNames {
		if m&e.bit != 0 {
			out = append(out, e.bit)
		}
	}
	return out
}

func (m AcquisitionErrorsMask) String() string {
	if m == AcquisitionErrorsNone {
		return "None"
	}
	names := []string{}
	for _, e := range errorsMaskNames {
		if m&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	if rest := m &^ (DataLost | ConnectionLost | DataNotArriving | ShutterOverheated | CameraFaulted); rest != 0 {
		names = append(names, fmt.Sprintf("0x%02X", int(rest)))
	}
	return strings.Join(names, "|")
}

// Fatal is true when the mask contains an error that ends the acquisition
func (m AcquisitionErrorsMask) Fatal() bool {
	return m&(ConnectionLost|CameraFaulted) != 0
}

// AcquisitionStatus is the state of an acquisition reported with one update
type AcquisitionStatus struct {
	Running     bool
	Errors      AcquisitionErrorsMask
	ReadoutRate float64
}

// AcquisitionState is a point in the life of one readout
type AcquisitionState int

const (
	// ReadoutStarted fires when a readout begins
	ReadoutStarted AcquisitionState = 1

	// ReadoutEnded fires when a readout completes
	ReadoutEnded AcquisitionState = 2
)

func (s AcquisitionState) String() string {
	switch s {
	case ReadoutStarted:
		return "ReadoutStarted"
	case ReadoutEnded:
		return "ReadoutEnded"
	}
	return fmt.Sprintf("AcquisitionState(%d)", int(s))
}

// AcquisitionStateCounters counts state transitions since the acquisition began
type AcquisitionStateCounters struct {
	ReadoutStarted int64
	ReadoutEnded   int64
}

// AcquisitionUpdatedFunc is invoked on the library's acquisition thread.
// data is only valid for the duration of the call.  It must return quickly
// and must not call blocking Library methods.
type AcquisitionUpdatedFunc func(h Handle, data AvailableData, status AcquisitionStatus)

// AcquisitionStateUpdatedFunc is invoked on the library's acquisition thread
// when a registered acquisition state is reached.
type AcquisitionStateUpdatedFunc func(h Handle, state AcquisitionState, counters AcquisitionStateCounters, errors AcquisitionErrorsMask)

// Library is the capability interface over one PICam linkage.
// Every method returning an error returns a picam.Error for vendor failures.
type Library interface {
	// library lifetime
	Initialize() error
	Uninitialize() error
	IsInitialized() (bool, error)
	Version() (Version, error)

	// discovery and open
	AvailableCameraIDs() ([]CameraID, error)
	ConnectDemoCamera(model Model, serial string) (CameraID, error)
	DisconnectDemoCamera(id CameraID) error
	OpenFirstCamera() (Handle, error)
	OpenCamera(id CameraID) (Handle, error)
	CloseCamera(h Handle) error
	CameraID(h Handle) (CameraID, error)
	EnumerationString(t EnumeratedType, value int) (string, error)

	// parameters
	// Parameters lists every parameter the camera has, in ID order
	Parameters(h Handle) ([]Parameter, error)
	DoesParameterExist(h Handle, p Parameter) (bool, error)
	IsParameterRelevant(h Handle, p Parameter) (bool, error)
	ValueAccess(h Handle, p Parameter) (ValueAccess, error)
	CanSetParameterOnline(h Handle, p Parameter) (bool, error)
	IntegerValue(h Handle, p Parameter) (int, error)
	SetIntegerValue(h Handle, p Parameter, v int) error
	LargeIntegerValue(h Handle, p Parameter) (int64, error)
	SetLargeIntegerValue(h Handle, p Parameter, v int64) error
	FloatingPointValue(h Handle, p Parameter) (float64, error)
	SetFloatingPointValue(h Handle, p Parameter, v float64) error
	SetFloatingPointValueOnline(h Handle, p Parameter, v float64) error
	ReadIntegerValue(h Handle, p Parameter) (int, error)
	ReadFloatingPointValue(h Handle, p Parameter) (float64, error)
	RoisValue(h Handle, p Parameter) (Rois, error)
	SetRoisValue(h Handle, p Parameter, r Rois) error
	PulseValue(h Handle, p Parameter) (Pulse, error)
	SetPulseValue(h Handle, p Parameter, v Pulse) error
	ModulationsValue(h Handle, p Parameter) (Modulations, error)
	SetModulationsValue(h Handle, p Parameter, v Modulations) error
	CollectionConstraint(h Handle, p Parameter, c ConstraintCategory) (CollectionConstraint, error)
	RangeConstraint(h Handle, p Parameter, c ConstraintCategory) (RangeConstraint, error)
	AreParametersCommitted(h Handle) (bool, error)
	// CommitParameters returns the parameters that failed to commit.
	// A non-empty list is not an error; nothing was committed.
	CommitParameters(h Handle) ([]Parameter, error)

	// acquisition
	Acquire(h Handle, readouts int64, timeout time.Duration) (AvailableData, AcquisitionErrorsMask, error)
	StartAcquisition(h Handle) error
	StopAcquisition(h Handle) error
	IsAcquisitionRunning(h Handle) (bool, error)
	WaitForAcquisitionUpdate(h Handle, timeout time.Duration) (AvailableData, AcquisitionStatus, error)
	// SetAcquisitionBuffer sizes the circular buffer the library fills.  The library owns the memory.
	SetAcquisitionBuffer(h Handle, size int64) error
	RegisterForAcquisitionUpdated(h Handle, fn AcquisitionUpdatedFunc) error
	UnregisterForAcquisitionUpdated(h Handle) error
	RegisterForAcquisitionStateUpdated(h Handle, s AcquisitionState, fn AcquisitionStateUpdatedFunc) error
	UnregisterForAcquisitionStateUpdated(h Handle, s AcquisitionState) error
}
