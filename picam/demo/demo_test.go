package demo

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/picamlab/picam"
)

var smallRoi = picam.Rois{{X: 0, Width: 10, XBinning: 1, Y: 0, Height: 10, YBinning: 1}}

// openSmall opens a demo camera with a 10x10 ROI, 1 ms exposures and n readouts
func openSmall(t *testing.T, n int64) (*Library, picam.Handle) {
	t.Helper()
	l := New()
	require.NoError(t, l.Initialize())
	t.Cleanup(func() { l.Uninitialize() })
	_, err := l.ConnectDemoCamera(picam.ModelPixis100F, "0008675309")
	require.NoError(t, err)
	h, err := l.OpenFirstCamera()
	require.NoError(t, err)
	require.NoError(t, l.SetRoisValue(h, picam.RoisParameter, smallRoi))
	require.NoError(t, l.SetFloatingPointValue(h, picam.ExposureTime, 1))
	require.NoError(t, l.SetLargeIntegerValue(h, picam.ReadoutCount, n))
	failed, err := l.CommitParameters(h)
	require.NoError(t, err)
	require.Empty(t, failed)
	return l, h
}

func TestLifecycle(t *testing.T) {
	l := New()
	_, err := l.OpenFirstCamera()
	assert.Equal(t, picam.LibraryNotInitialized, err)
	require.NoError(t, l.Initialize())
	assert.Equal(t, picam.LibraryAlreadyInitialized, l.Initialize())

	_, err = l.OpenFirstCamera()
	assert.Equal(t, picam.NoCamerasAvailable, err)

	id, err := l.ConnectDemoCamera(picam.ModelPixis100F, "0008675309")
	require.NoError(t, err)
	_, err = l.ConnectDemoCamera(picam.ModelPixis100F, "0008675309")
	assert.Equal(t, picam.DemoAlreadyConnected, err)
	_, err = l.ConnectDemoCamera(picam.Model(9999), "1")
	assert.Equal(t, picam.InvalidDemoModel, err)

	h, err := l.OpenCamera(id)
	require.NoError(t, err)
	got, err := l.CameraID(h)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, picam.InterfaceVirtual, got.ComputerInterface)

	_, err = l.OpenCamera(id)
	assert.Equal(t, picam.CameraAlreadyOpened, err)
	assert.Equal(t, picam.CameraAlreadyOpened, l.DisconnectDemoCamera(id))
	require.NoError(t, l.CloseCamera(h))
	assert.Equal(t, picam.InvalidHandle, l.CloseCamera(h))
	require.NoError(t, l.DisconnectDemoCamera(id))
	require.NoError(t, l.Uninitialize())
	ok, _ := l.IsInitialized()
	assert.False(t, ok)
}

func TestAttachedCameraOpensFirst(t *testing.T) {
	l := New()
	hw, err := l.Attach(picam.ModelProEM512B, "PE512")
	require.NoError(t, err)
	require.NoError(t, l.Initialize())
	_, err = l.ConnectDemoCamera(picam.ModelPixis100F, "demo")
	require.NoError(t, err)
	h, err := l.OpenFirstCamera()
	require.NoError(t, err)
	id, _ := l.CameraID(h)
	assert.Equal(t, hw, id)
	ids, _ := l.AvailableCameraIDs()
	assert.Len(t, ids, 2)
}

func TestCommitIsAllOrNothing(t *testing.T) {
	l, h := openSmall(t, 1)
	require.NoError(t, l.SetFloatingPointValue(h, picam.ExposureTime, -1))
	require.NoError(t, l.SetFloatingPointValue(h, picam.AdcSpeed, 3.5))
	require.NoError(t, l.SetIntegerValue(h, picam.AdcAnalogGain, picam.AdcAnalogGainHigh))

	failed, err := l.CommitParameters(h)
	require.NoError(t, err)
	assert.ElementsMatch(t, []picam.Parameter{picam.ExposureTime, picam.AdcSpeed}, failed)
	ok, _ := l.AreParametersCommitted(h)
	assert.False(t, ok)

	_, _, err = l.Acquire(h, 1, time.Second)
	assert.Equal(t, picam.ParametersNotCommitted, err)
	assert.Equal(t, picam.ParametersNotCommitted, l.StartAcquisition(h))
}

func TestParameterErrors(t *testing.T) {
	l, h := openSmall(t, 1)
	assert.Equal(t, picam.ParameterValueIsReadOnly, l.SetIntegerValue(h, picam.ReadoutStride, 4))
	assert.Equal(t, picam.ParameterHasInvalidValueType, l.SetIntegerValue(h, picam.ExposureTime, 4))
	assert.Equal(t, picam.ParameterDoesNotExist, l.SetPulseValue(h, picam.RepetitiveGate, picam.Pulse{Width: 1}))
	_, err := l.CollectionConstraint(h, picam.ExposureTime, picam.CategoryRequired)
	assert.Equal(t, picam.ParameterHasInvalidConstraintType, err)

	cc, err := l.CollectionConstraint(h, picam.AdcSpeed, picam.CategoryRequired)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0.1}, cc.Values)

	ok, err := l.CanSetParameterOnline(h, picam.ExposureTime)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, picam.ParameterIsNotOnlineable, l.SetFloatingPointValueOnline(h, picam.AdcSpeed, 0.1))
}

func TestReadoutStrideIncludesMetadata(t *testing.T) {
	l, h := openSmall(t, 1)
	stride, err := l.IntegerValue(h, picam.ReadoutStride)
	require.NoError(t, err)
	assert.Equal(t, 200, stride)

	require.NoError(t, l.SetIntegerValue(h, picam.TimeStamps, picam.TimeStampsExposureStarted|picam.TimeStampsExposureEnded))
	require.NoError(t, l.SetIntegerValue(h, picam.TrackFrames, 1))
	stride, _ = l.IntegerValue(h, picam.ReadoutStride)
	assert.Equal(t, 200+8+8+8, stride)
	fs, _ := l.IntegerValue(h, picam.FrameSize)
	assert.Equal(t, 200, fs)
}

func TestParameterIntrospection(t *testing.T) {
	l, h := openSmall(t, 1)
	ps, err := l.Parameters(h)
	require.NoError(t, err)
	assert.Contains(t, ps, picam.ExposureTime)
	assert.Contains(t, ps, picam.KineticsWindowHeight)
	assert.NotContains(t, ps, picam.RepetitiveGate)
	assert.IsIncreasing(t, ps)

	acc, err := l.ValueAccess(h, picam.ReadoutStride)
	require.NoError(t, err)
	assert.Equal(t, picam.AccessReadOnly, acc)
	acc, _ = l.ValueAccess(h, picam.AdcBitDepth)
	assert.Equal(t, picam.AccessReadWriteTrivial, acc)
	acc, _ = l.ValueAccess(h, picam.ExposureTime)
	assert.Equal(t, picam.AccessReadWrite, acc)

	rel, err := l.IsParameterRelevant(h, picam.KineticsWindowHeight)
	require.NoError(t, err)
	assert.False(t, rel)
	require.NoError(t, l.SetIntegerValue(h, picam.ReadoutControlMode, picam.ReadoutKinetics))
	rel, _ = l.IsParameterRelevant(h, picam.KineticsWindowHeight)
	assert.True(t, rel)

	rc, err := l.RangeConstraint(h, picam.KineticsWindowHeight, picam.CategoryCapable)
	require.NoError(t, err)
	assert.Equal(t, picam.RangeConstraint{Minimum: 1, Maximum: 100, Increment: 1}, rc)
	rc, _ = l.RangeConstraint(h, picam.SensorTemperatureSetPoint, picam.CategoryRequired)
	assert.True(t, rc.Contains(-70))
	assert.False(t, rc.Contains(-90))
	_, err = l.RangeConstraint(h, picam.AdcSpeed, picam.CategoryCapable)
	assert.Equal(t, picam.ParameterHasInvalidConstraintType, err)
	_, err = l.RangeConstraint(h, picam.ExposureTime, picam.ConstraintCategory(9))
	assert.Equal(t, picam.InvalidConstraintCategory, err)
}

func TestKineticsReadout(t *testing.T) {
	l, h := openSmall(t, 1)
	require.NoError(t, l.SetIntegerValue(h, picam.ReadoutControlMode, picam.ReadoutKinetics))
	require.NoError(t, l.SetIntegerValue(h, picam.KineticsWindowHeight, 5))
	require.NoError(t, l.SetIntegerValue(h, picam.TrackFrames, 1))
	failed, err := l.CommitParameters(h)
	require.NoError(t, err)
	assert.Equal(t, []picam.Parameter{picam.RoisParameter}, failed, "ROI taller than the window")

	require.NoError(t, l.SetRoisValue(h, picam.RoisParameter, picam.Rois{{Width: 10, XBinning: 1, Height: 5, YBinning: 1}}))
	failed, err = l.CommitParameters(h)
	require.NoError(t, err)
	require.Empty(t, failed)

	frames, _ := l.IntegerValue(h, picam.FramesPerReadout)
	assert.Equal(t, 20, frames)
	frameStride, _ := l.IntegerValue(h, picam.FrameStride)
	assert.Equal(t, 100+8, frameStride)
	stride, _ := l.IntegerValue(h, picam.ReadoutStride)
	assert.Equal(t, 20*108, stride)

	data, _, err := l.Acquire(h, 2, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, data.Data, 2*stride)
	frame := data.Data[stride+3*frameStride:]
	assert.Equal(t, PixelValue(1, 3*50+7), binary.LittleEndian.Uint16(frame[2*7:]))
	assert.Equal(t, uint64(20+3+1), binary.LittleEndian.Uint64(frame[100:]))
}

func TestSynchronousAcquire(t *testing.T) {
	l, h := openSmall(t, 1)
	data, mask, err := l.Acquire(h, 3, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, picam.AcquisitionErrorsNone, mask)
	require.Equal(t, int64(3), data.ReadoutCount)
	require.Len(t, data.Data, 600)
	for k := int64(0); k < 3; k++ {
		px := binary.LittleEndian.Uint16(data.Data[int(k)*200+2*7:])
		assert.Equal(t, PixelValue(k, 7), px)
	}
}

func TestSynchronousAcquireTimeout(t *testing.T) {
	l, h := openSmall(t, 1)
	require.NoError(t, l.SetFloatingPointValue(h, picam.ExposureTime, 1000))
	_, err := l.CommitParameters(h)
	require.NoError(t, err)
	data, _, err := l.Acquire(h, 2, 10*time.Millisecond)
	assert.True(t, picam.IsTimeout(err))
	assert.Equal(t, int64(0), data.ReadoutCount)
}

func TestPolledAcquisition(t *testing.T) {
	l, h := openSmall(t, 5)
	require.NoError(t, l.SetIntegerValue(h, picam.TrackFrames, 1))
	_, err := l.CommitParameters(h)
	require.NoError(t, err)
	require.NoError(t, l.StartAcquisition(h))
	assert.Equal(t, picam.AcquisitionInProgress, l.StartAcquisition(h))

	var (
		total  int64
		frames []uint64
		last   picam.AcquisitionStatus
	)
	for i := 0; i < 100; i++ {
		data, st, err := l.WaitForAcquisitionUpdate(h, time.Second)
		require.NoError(t, err)
		last = st
		for k := int64(0); k < data.ReadoutCount; k++ {
			frames = append(frames, binary.LittleEndian.Uint64(data.Data[int(k)*208+200:]))
		}
		total += data.ReadoutCount
		if !st.Running {
			break
		}
	}
	assert.False(t, last.Running)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, frames)

	// the end is reported again to later waits
	_, st, err := l.WaitForAcquisitionUpdate(h, time.Second)
	require.NoError(t, err)
	assert.False(t, st.Running)
}

func TestWaitTimeout(t *testing.T) {
	l, h := openSmall(t, 0)
	require.NoError(t, l.SetFloatingPointValue(h, picam.ExposureTime, 1000))
	_, err := l.CommitParameters(h)
	require.NoError(t, err)
	require.NoError(t, l.StartAcquisition(h))
	_, st, err := l.WaitForAcquisitionUpdate(h, 10*time.Millisecond)
	assert.Equal(t, picam.TimeOutOccurred, err)
	assert.True(t, st.Running)

	require.NoError(t, l.StopAcquisition(h))
	_, st, err = l.WaitForAcquisitionUpdate(h, time.Second)
	require.NoError(t, err)
	assert.False(t, st.Running)
	require.NoError(t, l.CloseCamera(h))
}

func TestDataLost(t *testing.T) {
	l, h := openSmall(t, 4)
	require.NoError(t, l.SetAcquisitionBuffer(h, 200))
	require.NoError(t, l.StartAcquisition(h))
	assert.Eventually(t, func() bool {
		r, _ := l.IsAcquisitionRunning(h)
		return !r
	}, 5*time.Second, time.Millisecond)

	data, st, err := l.WaitForAcquisitionUpdate(h, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), data.ReadoutCount)
	assert.NotZero(t, st.Errors&picam.DataLost)
	assert.False(t, st.Running)
}

func TestInjectedConnectionLost(t *testing.T) {
	l, h := openSmall(t, 0)
	require.NoError(t, l.InjectErrors(h, picam.ConnectionLost))
	require.NoError(t, l.StartAcquisition(h))
	_, st, err := l.WaitForAcquisitionUpdate(h, time.Second)
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.NotZero(t, st.Errors&picam.ConnectionLost)
}

func TestCallbackAcquisition(t *testing.T) {
	l, h := openSmall(t, 4)
	type update struct {
		n  int64
		st picam.AcquisitionStatus
	}
	updates := make(chan update, 16)
	require.NoError(t, l.RegisterForAcquisitionUpdated(h, func(_ picam.Handle, d picam.AvailableData, st picam.AcquisitionStatus) {
		updates <- update{d.ReadoutCount, st}
	}))
	var ended int64
	require.NoError(t, l.RegisterForAcquisitionStateUpdated(h, picam.ReadoutEnded,
		func(_ picam.Handle, _ picam.AcquisitionState, c picam.AcquisitionStateCounters, _ picam.AcquisitionErrorsMask) {
			ended = c.ReadoutEnded
		}))
	require.NoError(t, l.StartAcquisition(h))
	_, _, err := l.WaitForAcquisitionUpdate(h, time.Second)
	assert.Equal(t, picam.AcquisitionUpdatedHandlerRegistered, err)

	var total int64
	for u := range updates {
		total += u.n
		if !u.st.Running {
			break
		}
	}
	assert.Equal(t, int64(4), total)
	assert.Eventually(t, func() bool {
		r, _ := l.IsAcquisitionRunning(h)
		return !r
	}, time.Second, time.Millisecond)
	assert.Equal(t, int64(4), ended)
	require.NoError(t, l.UnregisterForAcquisitionUpdated(h))
}

func TestTemperatureConverges(t *testing.T) {
	l, h := openSmall(t, 1)
	require.NoError(t, l.SetFloatingPointValue(h, picam.SensorTemperatureSetPoint, -10))
	_, err := l.CommitParameters(h)
	require.NoError(t, err)
	st, _ := l.ReadIntegerValue(h, picam.SensorTemperatureStatus)
	assert.Equal(t, int(picam.TemperatureUnlocked), st)
	var temp float64
	for i := 0; i < 10; i++ {
		temp, err = l.ReadFloatingPointValue(h, picam.SensorTemperatureReading)
		require.NoError(t, err)
	}
	assert.Equal(t, -10.0, temp)
	st, _ = l.ReadIntegerValue(h, picam.SensorTemperatureStatus)
	assert.Equal(t, int(picam.TemperatureLocked), st)
}

func TestRegisteredLinkage(t *testing.T) {
	lib, err := picam.Open("demo", "")
	require.NoError(t, err)
	_, ok := lib.(*Library)
	assert.True(t, ok)
}
