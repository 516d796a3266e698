//go:build cgo && picamdl

package dynlib

/*
#include "shim.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/nasa-jpl/picamlab/picam"
)

// the library only hands the device handle back to callbacks, so open
// cameras are also indexed by it for the whole process
var (
	devMu   sync.RWMutex
	devices = map[uintptr]*camera{}
)

func remember(c *camera) {
	devMu.Lock()
	devices[uintptr(unsafe.Pointer(c.device))] = c
	devMu.Unlock()
}

func forget(c *camera) {
	devMu.Lock()
	delete(devices, uintptr(unsafe.Pointer(c.device)))
	devMu.Unlock()
}

func byDevice(device C.PicamHandle) *camera {
	devMu.RLock()
	defer devMu.RUnlock()
	return devices[uintptr(unsafe.Pointer(device))]
}

//export goAcquisitionUpdated
func goAcquisitionUpdated(device C.PicamHandle, data *C.PicamAvailableData, status *C.PicamAcquisitionStatus) C.PicamError {
	c := byDevice(device)
	if c == nil {
		return C.PicamError(picam.InvalidHandle)
	}
	c.mu.Lock()
	fn := c.updated
	c.mu.Unlock()
	if fn == nil {
		return 0
	}
	var d picam.AvailableData
	if data != nil {
		d = c.data(data)
	}
	var st picam.AcquisitionStatus
	if status != nil {
		st = goStatus(status)
	}
	fn(c.handle, d, st)
	return 0
}

//export goAcquisitionStateUpdated
func goAcquisitionStateUpdated(device C.PicamHandle, state C.int, counters *C.PicamAcquisitionStateCounters, errors C.int) C.PicamError {
	c := byDevice(device)
	if c == nil {
		return C.PicamError(picam.InvalidHandle)
	}
	s := picam.AcquisitionState(state)
	c.mu.Lock()
	fn := c.states[s]
	c.mu.Unlock()
	if fn == nil {
		return 0
	}
	var n picam.AcquisitionStateCounters
	if counters != nil {
		n.ReadoutStarted = int64(counters.readout_started_count)
		n.ReadoutEnded = int64(counters.readout_ended_count)
	}
	fn(c.handle, s, n, picam.AcquisitionErrorsMask(errors))
	return 0
}
