package picam

import (
	"fmt"
	"math"
	"strings"
)

// ValueType is the data type of a parameter's value
type ValueType int

const (
	ValueInteger       ValueType = 1
	ValueFloatingPoint ValueType = 2
	ValueBoolean       ValueType = 3
	ValueEnumeration   ValueType = 4
	ValueRois          ValueType = 5
	ValueLargeInteger  ValueType = 6
	ValuePulse         ValueType = 7
	ValueModulations   ValueType = 8
)

// ConstraintType is the kind of constraint restricting a parameter's value
type ConstraintType int

const (
	ConstraintNone        ConstraintType = 1
	ConstraintRange       ConstraintType = 2
	ConstraintCollection  ConstraintType = 3
	ConstraintRois        ConstraintType = 4
	ConstraintPulse       ConstraintType = 5
	ConstraintModulations ConstraintType = 6
)

// ConstraintCategory selects which constraint set of a parameter is queried
type ConstraintCategory int

const (
	// CategoryCapable is every value the hardware can take
	CategoryCapable ConstraintCategory = 1

	// CategoryRequired is every value valid given the current settings
	CategoryRequired ConstraintCategory = 2

	// CategoryRecommended is the subset the vendor recommends
	CategoryRecommended ConstraintCategory = 3
)

// Parameter is a PICam parameter ID.  The ID encodes its value type,
// constraint type and a sequence number.
type Parameter int

// calcParam builds a parameter ID the same way the vendor header does
func calcParam(v ValueType, c ConstraintType, n int) Parameter {
	return Parameter((int(c) << 24) + (int(v) << 16) + n)
}

// ValueType returns the value type encoded in the ID
func (p Parameter) ValueType() ValueType {
	return ValueType((int(p) >> 16) & 0xff)
}

// ConstraintType returns the constraint type encoded in the ID
func (p Parameter) ConstraintType() ConstraintType {
	return ConstraintType((int(p) >> 24) & 0xff)
}

// Number returns the sequence number of the parameter
func (p Parameter) Number() int {
	return int(p) & 0xffff
}

func (p Parameter) String() string {
	if s, ok := ParameterNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Parameter(%d)", int(p))
}

// ParameterByName looks a parameter up by its vendor name, ignoring case
func ParameterByName(name string) (Parameter, bool) {
	for p, s := range ParameterNames {
		if strings.EqualFold(s, name) {
			return p, true
		}
	}
	return 0, false
}

// parameters used by this module.  Values follow picam.h
var (
	ActiveWidth               = calcParam(ValueInteger, ConstraintRange, 1)
	ActiveHeight              = calcParam(ValueInteger, ConstraintRange, 2)
	ActiveLeftMargin          = calcParam(ValueInteger, ConstraintRange, 3)
	ActiveTopMargin           = calcParam(ValueInteger, ConstraintRange, 4)
	VerticalShiftRate         = calcParam(ValueFloatingPoint, ConstraintCollection, 13)
	SensorTemperatureSetPoint = calcParam(ValueFloatingPoint, ConstraintRange, 14)
	SensorTemperatureReading  = calcParam(ValueFloatingPoint, ConstraintNone, 15)
	SensorTemperatureStatus   = calcParam(ValueEnumeration, ConstraintNone, 16)
	CleanUntilTrigger         = calcParam(ValueBoolean, ConstraintCollection, 22)
	ExposureTime              = calcParam(ValueFloatingPoint, ConstraintRange, 23)
	ShutterClosingDelay       = calcParam(ValueFloatingPoint, ConstraintRange, 25)
	ReadoutControlMode        = calcParam(ValueEnumeration, ConstraintCollection, 26)
	ReadoutPortCount          = calcParam(ValueInteger, ConstraintCollection, 28)
	AdcSpeed                  = calcParam(ValueFloatingPoint, ConstraintCollection, 33)
	AdcBitDepth               = calcParam(ValueInteger, ConstraintCollection, 34)
	AdcAnalogGain             = calcParam(ValueEnumeration, ConstraintCollection, 35)
	AdcQuality                = calcParam(ValueEnumeration, ConstraintCollection, 36)
	RoisParameter             = calcParam(ValueRois, ConstraintRois, 37)
	ReadoutCount              = calcParam(ValueLargeInteger, ConstraintRange, 40)
	FrameSize                 = calcParam(ValueInteger, ConstraintNone, 42)
	FrameStride               = calcParam(ValueInteger, ConstraintNone, 43)
	FramesPerReadout          = calcParam(ValueInteger, ConstraintNone, 44)
	ReadoutStride             = calcParam(ValueInteger, ConstraintNone, 45)
	ShutterOpeningDelay       = calcParam(ValueFloatingPoint, ConstraintRange, 46)
	TriggerResponse           = calcParam(ValueEnumeration, ConstraintCollection, 30)
	TriggerDetermination      = calcParam(ValueEnumeration, ConstraintCollection, 31)
	ReadoutTimeCalculation    = calcParam(ValueFloatingPoint, ConstraintNone, 27)
	ShutterTimingMode         = calcParam(ValueEnumeration, ConstraintCollection, 24)
	ReadoutRateCalculation    = calcParam(ValueFloatingPoint, ConstraintNone, 50)
	KineticsWindowHeight      = calcParam(ValueInteger, ConstraintRange, 56)
	SensorActiveWidth         = calcParam(ValueInteger, ConstraintNone, 59)
	SensorActiveHeight        = calcParam(ValueInteger, ConstraintNone, 60)
	TimeStamps                = calcParam(ValueEnumeration, ConstraintCollection, 68)
	TimeStampResolution       = calcParam(ValueLargeInteger, ConstraintCollection, 69)
	TimeStampBitDepth         = calcParam(ValueInteger, ConstraintCollection, 70)
	TrackFrames               = calcParam(ValueBoolean, ConstraintCollection, 71)
	FrameTrackingBitDepth     = calcParam(ValueInteger, ConstraintCollection, 72)
	RepetitiveGate            = calcParam(ValuePulse, ConstraintPulse, 94)
	RepetitiveModulationPhase = calcParam(ValueFloatingPoint, ConstraintRange, 112)
	CustomModulationSequence  = calcParam(ValueModulations, ConstraintModulations, 119)

	// ParameterNames maps parameters to their vendor names
	ParameterNames = map[Parameter]string{
		ActiveWidth:               "ActiveWidth",
		ActiveHeight:              "ActiveHeight",
		ActiveLeftMargin:          "ActiveLeftMargin",
		ActiveTopMargin:           "ActiveTopMargin",
		VerticalShiftRate:         "VerticalShiftRate",
		SensorTemperatureSetPoint: "SensorTemperatureSetPoint",
		SensorTemperatureReading:  "SensorTemperatureReading",
		SensorTemperatureStatus:   "SensorTemperatureStatus",
		CleanUntilTrigger:         "CleanUntilTrigger",
		ExposureTime:              "ExposureTime",
		ShutterClosingDelay:       "ShutterClosingDelay",
		ReadoutControlMode:        "ReadoutControlMode",
		ReadoutPortCount:          "ReadoutPortCount",
		AdcSpeed:                  "AdcSpeed",
		AdcBitDepth:               "AdcBitDepth",
		AdcAnalogGain:             "AdcAnalogGain",
		AdcQuality:                "AdcQuality",
		RoisParameter:             "Rois",
		ReadoutCount:              "ReadoutCount",
		FrameSize:                 "FrameSize",
		FrameStride:               "FrameStride",
		FramesPerReadout:          "FramesPerReadout",
		ReadoutStride:             "ReadoutStride",
		ShutterOpeningDelay:       "ShutterOpeningDelay",
		TriggerResponse:           "TriggerResponse",
		TriggerDetermination:      "TriggerDetermination",
		ReadoutTimeCalculation:    "ReadoutTimeCalculation",
		ShutterTimingMode:         "ShutterTimingMode",
		ReadoutRateCalculation:    "ReadoutRateCalculation",
		KineticsWindowHeight:      "KineticsWindowHeight",
		SensorActiveWidth:         "SensorActiveWidth",
		SensorActiveHeight:        "SensorActiveHeight",
		TimeStamps:                "TimeStamps",
		TimeStampResolution:       "TimeStampResolution",
		TimeStampBitDepth:         "TimeStampBitDepth",
		TrackFrames:               "TrackFrames",
		FrameTrackingBitDepth:     "FrameTrackingBitDepth",
		RepetitiveGate:            "RepetitiveGate",
		RepetitiveModulationPhase: "RepetitiveModulationPhase",
		CustomModulationSequence:  "CustomModulationSequence",
	}
)

// Roi is one region of interest on the sensor.  Coordinates are 0-based pixels.
type Roi struct {
	X        int `json:"x"`
	Width    int `json:"width"`
	XBinning int `json:"xBinning"`
	Y        int `json:"y"`
	Height   int `json:"height"`
	YBinning int `json:"yBinning"`
}

// Cols is the number of binned columns the ROI produces
func (r Roi) Cols() int {
	if r.XBinning == 0 {
		return 0
	}
	return r.Width / r.XBinning
}

// Rows is the number of binned rows the ROI produces
func (r Roi) Rows() int {
	if r.YBinning == 0 {
		return 0
	}
	return r.Height / r.YBinning
}

// Pixels is Rows*Cols
func (r Roi) Pixels() int {
	return r.Rows() * r.Cols()
}

// Rois is the value type of the Rois parameter
type Rois []Roi

// Pixels is the total pixel count of every ROI
func (r Rois) Pixels() int {
	n := 0
	for _, roi := range r {
		n += roi.Pixels()
	}
	return n
}

// Pulse is a gate delay and width, both in ns
type Pulse struct {
	Delay float64 `json:"delay"`
	Width float64 `json:"width"`
}

// Modulation is one entry in a custom modulation sequence
type Modulation struct {
	Duration              float64 `json:"duration"`
	Frequency             float64 `json:"frequency"`
	Phase                 float64 `json:"phase"`
	OutputSignalFrequency float64 `json:"outputSignalFrequency"`
}

// Modulations is the value type of modulation sequence parameters
type Modulations []Modulation

// CollectionConstraint lists the allowed values of a collection parameter
type CollectionConstraint struct {
	Values []float64
}

// Contains is true if v is one of the allowed values
func (c CollectionConstraint) Contains(v float64) bool {
	for _, x := range c.Values {
		if x == v {
			return true
		}
	}
	return false
}

// RangeConstraint is the allowed span of a range parameter
type RangeConstraint struct {
	// Empty reports that no value is allowed
	Empty bool

	Minimum, Maximum, Increment float64

	// Excluded are values inside the range that are not allowed
	Excluded []float64

	// Outlying are allowed values outside the range
	Outlying []float64
}

// Contains is true if v is allowed.  With a non-zero Increment only the
// steps from Minimum are allowed.
func (c RangeConstraint) Contains(v float64) bool {
	for _, x := range c.Outlying {
		if x == v {
			return true
		}
	}
	if c.Empty || v < c.Minimum || v > c.Maximum {
		return false
	}
	for _, x := range c.Excluded {
		if x == v {
			return false
		}
	}
	if c.Increment > 0 {
		steps := (v - c.Minimum) / c.Increment
		return math.Abs(steps-math.Round(steps)) < 1e-9
	}
	return true
}

// ValueAccess is how a parameter's value may change
type ValueAccess int

const (
	// AccessReadOnly values are computed or read from hardware
	AccessReadOnly ValueAccess = 1

	// AccessReadWrite values are set by the user
	AccessReadWrite ValueAccess = 2

	// AccessReadWriteTrivial values can be set, but only to one value
	AccessReadWriteTrivial ValueAccess = 3
)

func (a ValueAccess) String() string {
	switch a {
	case AccessReadOnly:
		return "Read Only"
	case AccessReadWrite:
		return "Read/Write"
	case AccessReadWriteTrivial:
		return "Read/Write Trivial"
	}
	return fmt.Sprintf("ValueAccess(%d)", int(a))
}
