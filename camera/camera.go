/*Package camera describes a standard set of interfaces for control of PICam cameras

The Minimal type contains the basics, while Sci contains the extended features
of the scientific cameras PICam drives: regions of interest, cooling,
acquisition callbacks and FITS metadata.  *session.Device implements Sci.
*/
package camera

import (
	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
)

// Minimal describes a minimal camera interface with only the basics.
type Minimal interface {
	acquire.Camera

	// Float gets the value of a floating point parameter, such as ExposureTime
	Float(picam.Parameter) (float64, error)

	// SetFloat sets a floating point parameter.  The camera is unconfigured
	// until Commit succeeds.
	SetFloat(picam.Parameter, float64) error

	// Int gets an integer or enumeration parameter
	Int(picam.Parameter) (int, error)

	// SetInt sets an integer or enumeration parameter
	SetInt(picam.Parameter, int) error

	// LargeInt gets a large integer parameter, such as ReadoutCount
	LargeInt(picam.Parameter) (int64, error)

	// SetLargeInt sets a large integer parameter
	SetLargeInt(picam.Parameter, int64) error

	// Commit validates the pending parameter values with the camera
	Commit() error

	// Layout is the geometry of the readouts the committed parameters produce
	Layout() (readout.Layout, error)

	// ReadoutRate is the calculated readouts per second
	ReadoutRate() (float64, error)
}

// AOIManipulator describes a camera which has configurable regions of interest
type AOIManipulator interface {
	// SensorSize is the active width and height in pixels
	SensorSize() (int, int, error)

	// Rois gets the regions of interest
	Rois() (picam.Rois, error)

	// SetRois sets the regions of interest without committing them
	SetRois(picam.Rois) error

	// SetFullROI selects the whole sensor and commits
	SetFullROI() error

	// SetCenterROI selects a dim x dim square in the middle of the sensor and commits
	SetCenterROI(dim int) error

	// SetCenterBinROI bins rows lines in the middle of the sensor into one and commits
	SetCenterBinROI(rows int) error
}

// ThermalManager describes a camera which can manage its sensor temperature
type ThermalManager interface {
	// Temperature is the sensor temperature in Celsius
	Temperature() (float64, error)

	// TemperatureStatus reports whether the temperature is locked to the setpoint
	TemperatureStatus() (picam.TemperatureStatus, error)

	// TemperatureSetpoint gets the setpoint in Celsius
	TemperatureSetpoint() (float64, error)

	// SetTemperatureSetpoint sets and commits the setpoint in Celsius
	SetTemperatureSetpoint(float64) error
}

// Streamer describes a camera which can deliver readouts through a callback
type Streamer interface {
	RegisterCallback(func(readout.View, picam.AcquisitionStatus)) error
	UnregisterCallback() error
}

// MetadataMaker can produce an array of FITS cards
type MetadataMaker interface {
	// CollectHeaderMetadata produces an array of FITS cards
	CollectHeaderMetadata() []fitsio.Card
}

// Sci describes an extended interface for scientific cameras
type Sci interface {
	Minimal
	AOIManipulator
	ThermalManager
	Streamer
	MetadataMaker

	// Configure sets parameters by name without committing
	Configure(map[string]interface{}) error
}
