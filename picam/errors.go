package picam

import (
	"errors"
	"fmt"
)

// Error is a PICam library error code
type Error int

const (
	None                                Error = 0
	LibraryNotInitialized               Error = 1
	InvalidParameterValue               Error = 2
	UnexpectedNullPointer               Error = 3
	UnexpectedError                     Error = 4
	LibraryAlreadyInitialized           Error = 5
	InvalidDemoModel                    Error = 6
	CameraAlreadyOpened                 Error = 7
	InvalidCameraID                     Error = 8
	InvalidHandle                       Error = 9
	ParameterValueIsReadOnly            Error = 10
	ParameterHasInvalidValueType        Error = 11
	ParameterDoesNotExist               Error = 12
	ParameterHasInvalidConstraintType   Error = 13
	ParameterValueIsIrrelevant          Error = 14
	DeviceCommunicationFailed           Error = 15
	InvalidEnumeratedType               Error = 16
	EnumerationValueNotDefined          Error = 17
	NotDiscoveringCameras               Error = 18
	AlreadyDiscoveringCameras           Error = 19
	AcquisitionInProgress               Error = 20
	InvalidDemoSerialNumber             Error = 21
	DemoAlreadyConnected                Error = 22
	DeviceDisconnected                  Error = 23
	DeviceOpenElsewhere                 Error = 24
	ParameterIsNotOnlineable            Error = 25
	ParameterIsNotReadable              Error = 26
	AcquisitionNotInProgress            Error = 27
	InvalidParameterValues              Error = 28
	ParametersNotCommitted              Error = 29
	InvalidAcquisitionBuffer            Error = 30
	InsufficientMemory                  Error = 31
	TimeOutOccurred                     Error = 32
	AcquisitionUpdatedHandlerRegistered Error = 33
	NoCamerasAvailable                  Error = 34
	InvalidPointer                      Error = 35
	InvalidReadoutCount                 Error = 36
	InvalidReadoutTimeOut               Error = 37
	InvalidConstraintCategory           Error = 38
	InvalidCount                        Error = 39
	DemoNotSupported                    Error = 40
	NondestructiveReadoutEnabled        Error = 41
	InvalidOperation                    Error = 42
	OperationCanceled                   Error = 43
	InvalidAcquisitionState             Error = 44
	ShutterOverheatedError              Error = 52
	CameraFaultedError                  Error = 53
	CenterWavelengthFaulted             Error = 54
)

var (
	// ErrCodes maps error codes to their vendor names
	ErrCodes = map[Error]string{
		None:                                "None",
		LibraryNotInitialized:               "LibraryNotInitialized",
		InvalidParameterValue:               "InvalidParameterValue",
		UnexpectedNullPointer:               "UnexpectedNullPointer",
		UnexpectedError:                     "UnexpectedError",
		LibraryAlreadyInitialized:           "LibraryAlreadyInitialized",
		InvalidDemoModel:                    "InvalidDemoModel",
		CameraAlreadyOpened:                 "CameraAlreadyOpened",
		InvalidCameraID:                     "InvalidCameraID",
		InvalidHandle:                       "InvalidHandle",
		ParameterValueIsReadOnly:            "ParameterValueIsReadOnly",
		ParameterHasInvalidValueType:        "ParameterHasInvalidValueType",
		ParameterDoesNotExist:               "ParameterDoesNotExist",
		ParameterHasInvalidConstraintType:   "ParameterHasInvalidConstraintType",
		ParameterValueIsIrrelevant:          "ParameterValueIsIrrelevant",
		DeviceCommunicationFailed:           "DeviceCommunicationFailed",
		InvalidEnumeratedType:               "InvalidEnumeratedType",
		EnumerationValueNotDefined:          "EnumerationValueNotDefined",
		NotDiscoveringCameras:               "NotDiscoveringCameras",
		AlreadyDiscoveringCameras:           "AlreadyDiscoveringCameras",
		AcquisitionInProgress:               "AcquisitionInProgress",
		InvalidDemoSerialNumber:             "InvalidDemoSerialNumber",
		DemoAlreadyConnected:                "DemoAlreadyConnected",
		DeviceDisconnected:                  "DeviceDisconnected",
		DeviceOpenElsewhere:                 "DeviceOpenElsewhere",
		ParameterIsNotOnlineable:            "ParameterIsNotOnlineable",
		ParameterIsNotReadable:              "ParameterIsNotReadable",
		AcquisitionNotInProgress:            "AcquisitionNotInProgress",
		InvalidParameterValues:              "InvalidParameterValues",
		ParametersNotCommitted:              "ParametersNotCommitted",
		InvalidAcquisitionBuffer:            "InvalidAcquisitionBuffer",
		InsufficientMemory:                  "InsufficientMemory",
		TimeOutOccurred:                     "TimeOutOccurred",
		AcquisitionUpdatedHandlerRegistered: "AcquisitionUpdatedHandlerRegistered",
		NoCamerasAvailable:                  "NoCamerasAvailable",
		InvalidPointer:                      "InvalidPointer",
		InvalidReadoutCount:                 "InvalidReadoutCount",
		InvalidReadoutTimeOut:               "InvalidReadoutTimeOut",
		InvalidConstraintCategory:           "InvalidConstraintCategory",
		InvalidCount:                        "InvalidCount",
		DemoNotSupported:                    "DemoNotSupported",
		NondestructiveReadoutEnabled:        "NondestructiveReadoutEnabled",
		InvalidOperation:                    "InvalidOperation",
		OperationCanceled:                   "OperationCanceled",
		InvalidAcquisitionState:             "InvalidAcquisitionState",
		ShutterOverheatedError:              "ShutterOverheated",
		CameraFaultedError:                  "CameraFaulted",
		CenterWavelengthFaulted:             "CenterWavelengthFaulted",
	}
)

// Name returns the vendor name of the code, or "" if it is unknown
func (e Error) Name() string {
	return ErrCodes[e]
}

func (e Error) Error() string {
	if s, ok := ErrCodes[e]; ok {
		return fmt.Sprintf("%d - %s", e, s)
	}
	return fmt.Sprintf("%v - UNKNOWN_ERROR_CODE", int(e))
}

// ErrorFromCode returns nil for PicamError_None, otherwise an Error
func ErrorFromCode(code int) error {
	if code == 0 {
		return nil
	}
	return Error(code)
}

// Code extracts the vendor code from err.  nil maps to None and
// errors that do not wrap an Error map to UnexpectedError.
func Code(err error) Error {
	if err == nil {
		return None
	}
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return UnexpectedError
}

// IsTimeout is true if err is or wraps TimeOutOccurred
func IsTimeout(err error) bool {
	return errors.Is(err, TimeOutOccurred)
}
