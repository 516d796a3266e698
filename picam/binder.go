package picam

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Exports is the fixed table of library entry points a runtime-loaded
// linkage must resolve before it is used.
var Exports = []string{
	"Picam_InitializeLibrary",
	"Picam_UninitializeLibrary",
	"Picam_IsLibraryInitialized",
	"Picam_GetVersion",
	"Picam_GetEnumerationString",
	"Picam_DestroyString",
	"Picam_GetAvailableCameraIDs",
	"Picam_DestroyCameraIDs",
	"Picam_ConnectDemoCamera",
	"Picam_DisconnectDemoCamera",
	"Picam_OpenFirstCamera",
	"Picam_OpenCamera",
	"Picam_CloseCamera",
	"Picam_GetCameraID",
	"Picam_GetParameters",
	"Picam_DoesParameterExist",
	"Picam_IsParameterRelevant",
	"Picam_GetParameterValueAccess",
	"Picam_CanSetParameterOnline",
	"Picam_GetParameterIntegerValue",
	"Picam_SetParameterIntegerValue",
	"Picam_GetParameterLargeIntegerValue",
	"Picam_SetParameterLargeIntegerValue",
	"Picam_GetParameterFloatingPointValue",
	"Picam_SetParameterFloatingPointValue",
	"Picam_SetParameterFloatingPointValueOnline",
	"Picam_ReadParameterIntegerValue",
	"Picam_ReadParameterFloatingPointValue",
	"Picam_GetParameterRoisValue",
	"Picam_SetParameterRoisValue",
	"Picam_DestroyRois",
	"Picam_GetParameterPulseValue",
	"Picam_SetParameterPulseValue",
	"Picam_DestroyPulses",
	"Picam_GetParameterModulationsValue",
	"Picam_SetParameterModulationsValue",
	"Picam_DestroyModulations",
	"Picam_GetParameterCollectionConstraint",
	"Picam_DestroyCollectionConstraints",
	"Picam_GetParameterRangeConstraint",
	"Picam_DestroyRangeConstraints",
	"Picam_AreParametersCommitted",
	"Picam_CommitParameters",
	"Picam_DestroyParameters",
	"Picam_Acquire",
	"Picam_StartAcquisition",
	"Picam_StopAcquisition",
	"Picam_IsAcquisitionRunning",
	"Picam_WaitForAcquisitionUpdate",
	"PicamAdvanced_GetCameraDevice",
	"PicamAdvanced_SetAcquisitionBuffer",
	"PicamAdvanced_RegisterForAcquisitionUpdated",
	"PicamAdvanced_UnregisterForAcquisitionUpdated",
	"PicamAdvanced_RegisterForAcquisitionStateUpdated",
	"PicamAdvanced_UnregisterForAcquisitionStateUpdated",
}

// Loader looks up entry points by name in a loaded module
type Loader interface {
	// Lookup returns the address of the named entry point
	Lookup(name string) (uintptr, error)
}

// LoaderFunc adapts a function to a Loader
type LoaderFunc func(name string) (uintptr, error)

// Lookup calls f(name)
func (f LoaderFunc) Lookup(name string) (uintptr, error) {
	return f(name)
}

// Symbols is a resolved export table
type Symbols map[string]uintptr

// Must returns the address of name.  It panics if name was never bound,
// which is a programming error since Bind already checked the table.
func (s Symbols) Must(name string) uintptr {
	addr, ok := s[name]
	if !ok {
		panic(fmt.Sprintf("picam: symbol %s was not bound", name))
	}
	return addr
}

// BindError lists every entry point that could not be resolved
type BindError struct {
	Missing []string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("picam: %d entry point(s) could not be resolved: %s", len(e.Missing), strings.Join(e.Missing, ", "))
}

// Bind resolves every name through l.  It does not stop at the first failure;
// the returned *BindError names all of them.  A nil or zero address counts as missing.
func Bind(l Loader, names ...string) (Symbols, error) {
	if l == nil {
		return nil, fmt.Errorf("picam: no module loaded")
	}
	if len(names) == 0 {
		names = Exports
	}
	syms := make(Symbols, len(names))
	var missing []string
	for _, n := range names {
		addr, err := l.Lookup(n)
		if err != nil || addr == 0 {
			missing = append(missing, n)
			continue
		}
		syms[n] = addr
	}
	if len(missing) > 0 {
		return nil, &BindError{Missing: missing}
	}
	return syms, nil
}

// Opener creates a Library for one linkage strategy.  path locates the
// module to load and is ignored by strategies that need none.
type Opener func(path string) (Library, error)

var (
	linkMu   sync.Mutex
	linkages = map[string]Opener{}
)

// Register makes a linkage strategy available to Open.
// It panics if name is registered twice.
func Register(name string, open Opener) {
	linkMu.Lock()
	defer linkMu.Unlock()
	if open == nil {
		panic("picam: Register opener is nil")
	}
	if _, dup := linkages[name]; dup {
		panic("picam: Register called twice for linkage " + name)
	}
	linkages[name] = open
}

// Linkages lists the registered strategies in sorted order
func Linkages() []string {
	linkMu.Lock()
	defer linkMu.Unlock()
	out := make([]string, 0, len(linkages))
	for k := range linkages {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open returns a Library from the named linkage strategy
func Open(name, path string) (Library, error) {
	linkMu.Lock()
	open, ok := linkages[name]
	linkMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("picam: unknown linkage %q (registered: %s)", name, strings.Join(Linkages(), ", "))
	}
	return open(path)
}
