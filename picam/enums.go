package picam

import "fmt"

// EnumeratedType selects a vendor enumeration for EnumerationString
type EnumeratedType int

const (
	EnumError                 EnumeratedType = 1
	EnumModel                 EnumeratedType = 2
	EnumComputerInterface     EnumeratedType = 3
	EnumValueType             EnumeratedType = 4
	EnumConstraintType        EnumeratedType = 5
	EnumParameter             EnumeratedType = 6
	EnumAdcAnalogGain         EnumeratedType = 7
	EnumAdcQuality            EnumeratedType = 8
	EnumShutterTimingMode     EnumeratedType = 13
	EnumTriggerDetermination  EnumeratedType = 14
	EnumTriggerResponse       EnumeratedType = 15
	EnumSensorTemperature     EnumeratedType = 16
	EnumAcquisitionErrorsMask EnumeratedType = 17
	EnumTimeStampsMask        EnumeratedType = 24
)

// demo and common models.  Values follow picam.h where the samples use them.
const (
	ModelPixis100F           Model = 1
	ModelPixis100B           Model = 2
	ModelPixis1300F          Model = 14
	ModelPixis100BRExcelon   Model = 55
	ModelQuadro4096          Model = 500
	ModelProEM512B           Model = 601
	ModelPIMax41024I         Model = 721
	ModelProEMHS1024BExcelon Model = 1203
	ModelProEMHS1024BX3      Model = 1206
	ModelFergie256BFT        Model = 1601
)

// ModelNames maps models to their vendor names
var ModelNames = map[Model]string{
	ModelPixis100F:           "PIXIS: 100F",
	ModelPixis100B:           "PIXIS: 100B",
	ModelPixis1300F:          "PIXIS: 1300F",
	ModelPixis100BRExcelon:   "PIXIS: 100BR eXcelon",
	ModelQuadro4096:          "Quad-RO: 4096",
	ModelProEM512B:           "ProEM: 512B",
	ModelPIMax41024I:         "PI-MAX4: 1024i",
	ModelProEMHS1024BExcelon: "ProEM-HS: 1024B eXcelon",
	ModelProEMHS1024BX3:      "ProEM-HS: 1024BX3",
	ModelFergie256BFT:        "FERGIE: 256BFT",
}

func (m Model) String() string {
	if s, ok := ModelNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// TemperatureStatus is the value of SensorTemperatureStatus
type TemperatureStatus int

const (
	TemperatureUnlocked TemperatureStatus = 1
	TemperatureLocked   TemperatureStatus = 2
	TemperatureFaulted  TemperatureStatus = 3
)

func (s TemperatureStatus) String() string {
	return enumOr(EnumSensorTemperature, int(s))
}

// AdcQuality values
const (
	AdcQualityLowNoise           = 1
	AdcQualityHighCapacity       = 2
	AdcQualityElectronMultiplied = 3
	AdcQualityHighSpeed          = 4
)

// AdcAnalogGain values
const (
	AdcAnalogGainLow    = 1
	AdcAnalogGainMedium = 2
	AdcAnalogGainHigh   = 3
)

// ShutterTimingMode values
const (
	ShutterNormal            = 1
	ShutterAlwaysClosed      = 2
	ShutterAlwaysOpen        = 3
	ShutterOpenBeforeTrigger = 4
)

// TriggerResponse values
const (
	TriggerNoResponse               = 1
	TriggerReadoutPerTrigger        = 2
	TriggerShiftPerTrigger          = 3
	TriggerExposeDuringTriggerPulse = 4
	TriggerStartOnSingleTrigger     = 5
)

// TriggerDetermination values
const (
	TriggerPositivePolarity = 1
	TriggerNegativePolarity = 2
	TriggerRisingEdge       = 3
	TriggerFallingEdge      = 4
)

// ReadoutControlMode values
const (
	ReadoutFullFrame     = 1
	ReadoutFrameTransfer = 2
	ReadoutKinetics      = 3
)

// TimeStamps mask bits
const (
	TimeStampsNone            = 0
	TimeStampsExposureStarted = 1
	TimeStampsExposureEnded   = 2
)

var enumTables = map[EnumeratedType]map[int]string{
	EnumComputerInterface: {0: "Virtual", 1: "USB2", 2: "1000BaseT", 3: "USB3"},
	EnumValueType: {
		1: "Integer", 2: "FloatingPoint", 3: "Boolean", 4: "Enumeration",
		5: "Rois", 6: "LargeInteger", 7: "Pulse", 8: "Modulations"},
	EnumConstraintType: {1: "None", 2: "Range", 3: "Collection", 4: "Rois", 5: "Pulse", 6: "Modulations"},
	EnumAdcAnalogGain:  {1: "Low", 2: "Medium", 3: "High"},
	EnumAdcQuality:     {1: "Low Noise", 2: "High Capacity", 3: "Electron Multiplied", 4: "High Speed"},
	EnumShutterTimingMode: {
		1: "Normal", 2: "Always Closed", 3: "Always Open", 4: "Open Before Trigger"},
	EnumTriggerDetermination: {
		1: "Positive Polarity", 2: "Negative Polarity", 3: "Rising Edge", 4: "Falling Edge"},
	EnumTriggerResponse: {
		1: "No Response", 2: "Readout Per Trigger", 3: "Shift Per Trigger",
		4: "Expose During Trigger Pulse", 5: "Start On Single Trigger"},
	EnumSensorTemperature: {1: "Unlocked", 2: "Locked", 3: "Faulted"},
	EnumTimeStampsMask:    {0: "None", 1: "Exposure Started", 2: "Exposure Ended", 3: "Exposure Started|Exposure Ended"},
}

// EnumString renders value of enumeration t the way the vendor library does.
// It is the table behind the demo library's EnumerationString.
func EnumString(t EnumeratedType, value int) (string, error) {
	switch t {
	case EnumError:
		if s, ok := ErrCodes[Error(value)]; ok {
			return s, nil
		}
	case EnumModel:
		if s, ok := ModelNames[Model(value)]; ok {
			return s, nil
		}
	case EnumParameter:
		if s, ok := ParameterNames[Parameter(value)]; ok {
			return s, nil
		}
	case EnumAcquisitionErrorsMask:
		return AcquisitionErrorsMask(value).String(), nil
	default:
		tbl, ok := enumTables[t]
		if !ok {
			return "", InvalidEnumeratedType
		}
		if s, ok := tbl[value]; ok {
			return s, nil
		}
	}
	return "", EnumerationValueNotDefined
}

func enumOr(t EnumeratedType, value int) string {
	s, err := EnumString(t, value)
	if err != nil {
		return fmt.Sprintf("%d", value)
	}
	return s
}
