package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/picam/demo"
	"github.com/nasa-jpl/picamlab/readout"
)

var smallRoi = picam.Rois{{X: 0, Width: 10, XBinning: 1, Y: 0, Height: 10, YBinning: 1}}

func newController(t *testing.T) (*Controller, *demo.Library) {
	t.Helper()
	lib := demo.New()
	c := New(lib)
	require.NoError(t, c.Initialize())
	t.Cleanup(func() {
		c.CloseAll()
		c.Uninitialize()
	})
	return c, lib
}

// configured opens the fallback demo camera with a 10x10 ROI, 1 ms exposures and n readouts
func configured(t *testing.T, n int64) (*Controller, *demo.Library, *Device) {
	t.Helper()
	c, lib := newController(t)
	d, err := c.OpenFirst()
	require.NoError(t, err)
	require.NoError(t, d.SetRois(smallRoi))
	require.NoError(t, d.SetFloat(picam.ExposureTime, 1))
	require.NoError(t, d.SetLargeInt(picam.ReadoutCount, n))
	require.NoError(t, d.Commit())
	return c, lib, d
}

func TestOpenFallbackReachesConfigured(t *testing.T) {
	c, _ := newController(t)
	d, err := c.OpenFirst()
	require.NoError(t, err)
	assert.Equal(t, DeviceOpen, d.State())
	assert.Equal(t, picam.ModelPixis100F, d.ID.Model)
	assert.Equal(t, DefaultFallbackSerial, d.ID.SerialNumber)

	require.NoError(t, d.SetRois(smallRoi))
	require.NoError(t, d.Commit())
	assert.Equal(t, Configured, d.State())
}

func TestOpenWithoutFallback(t *testing.T) {
	c, _ := newController(t)
	c.Fallback = false
	_, err := c.OpenFirst()
	assert.Equal(t, picam.NoCamerasAvailable, picam.Code(err))
	assert.Empty(t, c.Devices())
}

func TestStateGuards(t *testing.T) {
	c := New(demo.New())
	_, err := c.OpenFirst()
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Uninitialized, se.State)
	require.NoError(t, c.Initialize())
	assert.ErrorAs(t, c.Initialize(), &se)
	require.NoError(t, c.Uninitialize())
	assert.Equal(t, Uninitialized, c.State())
}

func TestCommitFailureRefusesAcquisition(t *testing.T) {
	_, _, d := configured(t, 1)
	require.NoError(t, d.SetFloat(picam.AdcSpeed, 123))
	err := d.Commit()
	var ce *CommitError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Failed, picam.AdcSpeed)
	assert.Equal(t, DeviceOpen, d.State())

	var se *StateError
	assert.ErrorAs(t, d.Start(), &se)
	_, _, err = d.Acquire(1, time.Second)
	assert.ErrorAs(t, err, &se)
}

func TestSetUncommitsConfigured(t *testing.T) {
	_, _, d := configured(t, 1)
	require.NoError(t, d.SetFloat(picam.ExposureTime, 2))
	assert.Equal(t, DeviceOpen, d.State())
	require.NoError(t, d.Commit())
	assert.Equal(t, Configured, d.State())
}

func TestCommitAndChange(t *testing.T) {
	_, _, d := configured(t, 1)
	require.NoError(t, d.SetFloat(picam.AdcSpeed, 123))
	require.NoError(t, d.CommitAndChange())
	assert.Equal(t, Configured, d.State())
	speed, err := d.Float(picam.AdcSpeed)
	require.NoError(t, err)
	cc, err := d.Constraint(picam.AdcSpeed, picam.CategoryRequired)
	require.NoError(t, err)
	assert.Equal(t, cc.Values[0], speed)
}

func TestAcquireExactCount(t *testing.T) {
	_, _, d := configured(t, 1)
	v, mask, err := d.Acquire(5, 5*time.Second)
	require.NoError(t, err)
	assert.Zero(t, mask)
	assert.Equal(t, 5, v.Count)
	assert.Equal(t, 200, v.Stride)
	assert.Equal(t, demo.PixelValue(4, 3), v.Pixel(4, 3))
	assert.Equal(t, Configured, d.State())
}

func TestAcquireTimeoutStops(t *testing.T) {
	_, lib, d := configured(t, 1)
	require.NoError(t, d.SetFloat(picam.ExposureTime, 1000))
	require.NoError(t, d.Commit())
	v, _, err := d.Acquire(5, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, picam.IsTimeout(err))
	assert.Less(t, v.Count, 5)
	assert.Equal(t, Configured, d.State())
	run, err := lib.IsAcquisitionRunning(d.Handle())
	require.NoError(t, err)
	assert.False(t, run)
}

func TestPolledAcquisition(t *testing.T) {
	_, _, d := configured(t, 5)
	require.NoError(t, d.Start())
	assert.Equal(t, Acquiring, d.State())
	total := 0
	for {
		v, st, err := d.Wait(5 * time.Second)
		require.NoError(t, err)
		total += v.Count
		if !st.Running {
			break
		}
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, Configured, d.State())
	var se *StateError
	_, _, err := d.Wait(time.Second)
	assert.ErrorAs(t, err, &se)
}

func TestCallbackDrain(t *testing.T) {
	_, _, d := configured(t, 3)
	var total int64
	require.NoError(t, d.RegisterCallback(func(v readout.View, st picam.AcquisitionStatus) {
		atomic.AddInt64(&total, int64(v.Count))
	}))
	require.NoError(t, d.Start())
	require.NoError(t, d.Drain(5*time.Second))
	assert.Equal(t, int64(3), atomic.LoadInt64(&total))
	assert.Equal(t, Configured, d.State())
	require.NoError(t, d.UnregisterCallback())
}

func TestCloseForcesStopAndDrain(t *testing.T) {
	c, lib, d := configured(t, 0)
	require.NoError(t, d.Start())
	h := d.Handle()
	require.NoError(t, d.Close())
	_, err := lib.IsAcquisitionRunning(h)
	assert.Equal(t, picam.InvalidHandle, picam.Code(err))
	assert.Empty(t, c.Devices())
	assert.Equal(t, Initialized, d.State())
	ids, err := c.Available()
	require.NoError(t, err)
	assert.Empty(t, ids, "fallback demo camera disconnected")
	assert.NoError(t, d.Close())
	assert.ErrorIs(t, d.SetFloat(picam.ExposureTime, 1), ErrClosed)
}

func TestCloseKeepsDeviceWhenDrainFails(t *testing.T) {
	c, _, d := configured(t, 0)
	release := make(chan struct{})
	require.NoError(t, d.RegisterCallback(func(readout.View, picam.AcquisitionStatus) { <-release }))
	defer func(old time.Duration) { CloseDrainTimeout = old }(CloseDrainTimeout)
	CloseDrainTimeout = 50 * time.Millisecond
	require.NoError(t, d.Start())

	require.Error(t, d.Close())
	assert.Len(t, c.Devices(), 1)
	assert.Equal(t, Acquiring, d.State())
	assert.ErrorIs(t, c.Uninitialize(), ErrDevicesOpen)

	close(release)
	require.NoError(t, d.Drain(5*time.Second))
	require.NoError(t, d.Close())
	assert.Empty(t, c.Devices())
}

func TestDrainDefaultsTimeout(t *testing.T) {
	_, _, d := configured(t, 0)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, d.RegisterCallback(func(readout.View, picam.AcquisitionStatus) { <-release }))
	defer func(old time.Duration) { DefaultDrainTimeout = old }(DefaultDrainTimeout)
	DefaultDrainTimeout = 50 * time.Millisecond
	require.NoError(t, d.Start())

	done := make(chan error, 1)
	go func() { done <- d.Drain(0) }()
	select {
	case err := <-done:
		assert.Equal(t, picam.AcquisitionInProgress, picam.Code(err))
	case <-time.After(5 * time.Second):
		t.Fatal("drain with a zero timeout did not return")
	}
	require.NoError(t, d.Stop())
}

func TestUninitializeRefusedWhileOpen(t *testing.T) {
	c, _ := newController(t)
	d, err := c.OpenFirst()
	require.NoError(t, err)
	assert.ErrorIs(t, c.Uninitialize(), ErrDevicesOpen)
	require.NoError(t, d.Close())
	require.NoError(t, c.Uninitialize())
	assert.Equal(t, Uninitialized, c.State())
}

func TestEnsureCamerasAndOpenAll(t *testing.T) {
	c, _ := newController(t)
	demos := []picam.CameraID{
		{Model: picam.ModelQuadro4096, SerialNumber: "1000000001"},
		{Model: picam.ModelPixis1300F, SerialNumber: "1000000002"},
		{Model: picam.ModelProEM512B, SerialNumber: "1000000003"},
	}
	ids, err := c.EnsureCameras(2, demos)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	devs, err := c.OpenAll()
	require.NoError(t, err)
	assert.Len(t, devs, 2)
	require.NoError(t, c.CloseAll())
	assert.Empty(t, c.Devices())
}

func TestCenterROI(t *testing.T) {
	c, _ := newController(t)
	d, err := c.OpenFirst()
	require.NoError(t, err)

	require.NoError(t, d.SetCenterROI(10))
	rois, err := d.Rois()
	require.NoError(t, err)
	assert.Equal(t, picam.Rois{{X: 665, Width: 10, XBinning: 1, Y: 45, Height: 10, YBinning: 1}}, rois)
	assert.Equal(t, Configured, d.State())

	require.NoError(t, d.SetCenterROI(500))
	rois, err = d.Rois()
	require.NoError(t, err)
	assert.Equal(t, picam.Rois{{X: 0, Width: 1340, XBinning: 1, Y: 0, Height: 100, YBinning: 1}}, rois)
}

func TestCenterBinROI(t *testing.T) {
	c, _ := newController(t)
	d, err := c.OpenFirst()
	require.NoError(t, err)
	require.NoError(t, d.SetCenterBinROI(4))
	rois, err := d.Rois()
	require.NoError(t, err)
	assert.Equal(t, picam.Rois{{X: 0, Width: 1340, XBinning: 1, Y: 48, Height: 4, YBinning: 4}}, rois)
	l, err := d.Layout()
	require.NoError(t, err)
	assert.Equal(t, 1340*2, l.FrameSize)
}

func TestLayoutMetadata(t *testing.T) {
	_, _, d := configured(t, 1)
	require.NoError(t, d.SetInt(picam.TimeStamps, picam.TimeStampsExposureStarted|picam.TimeStampsExposureEnded))
	require.NoError(t, d.SetInt(picam.TrackFrames, 1))
	require.NoError(t, d.Commit())
	l, err := d.Layout()
	require.NoError(t, err)
	assert.True(t, l.StampStart && l.StampEnd && l.TrackFrames)
	assert.Equal(t, 200+24, l.Stride)

	v, _, err := d.Acquire(2, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Metadata(1).Frame)
}

func TestSetCircularBuffer(t *testing.T) {
	_, _, d := configured(t, 1)
	size, err := d.SetCircularBuffer(1000, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), size)
	size, err = d.SetCircularBuffer(100, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(800), size)
}

func TestTemperatureLock(t *testing.T) {
	_, _, d := configured(t, 1)
	require.NoError(t, d.SetTemperatureSetpoint(5))
	var seen int
	err := d.WaitForTemperatureLock(10*time.Second, func(c float64, s picam.TemperatureStatus) { seen++ })
	require.NoError(t, err)
	assert.Greater(t, seen, 1)
	s, err := d.TemperatureStatus()
	require.NoError(t, err)
	assert.Equal(t, picam.TemperatureLocked, s)
}

func TestCollectHeaderMetadata(t *testing.T) {
	c, _, d := configured(t, 1)
	cards := d.CollectHeaderMetadata()
	byName := map[string]interface{}{}
	for _, card := range cards {
		byName[card.Name] = card.Value
	}
	assert.Equal(t, c.ID.String(), byName["RUNID"])
	assert.Equal(t, "", byName["METAERR"])
	assert.Equal(t, DefaultFallbackSerial, byName["CAMSN"])
	assert.InDelta(t, 0.001, byName["EXPTIME"], 1e-12)
	assert.Equal(t, 10, byName["AOIW"])
}

func TestConfigure(t *testing.T) {
	_, _, d := configured(t, 1)
	err := d.Configure(map[string]interface{}{
		"ExposureTime":  25.0,
		"adcanaloggain": picam.AdcAnalogGainLow,
		"TrackFrames":   true,
		"ReadoutCount":  "3",
	})
	require.NoError(t, err)
	exp, _ := d.Float(picam.ExposureTime)
	assert.Equal(t, 25.0, exp)
	gain, _ := d.Int(picam.AdcAnalogGain)
	assert.Equal(t, picam.AdcAnalogGainLow, gain)
	n, _ := d.LargeInt(picam.ReadoutCount)
	assert.Equal(t, int64(3), n)
	require.NoError(t, d.Commit())

	assert.Error(t, d.Configure(map[string]interface{}{"NoSuchThing": 1}))
	assert.Error(t, d.Configure(map[string]interface{}{"Rois": 1}))
}

func TestConfigureContinuesPastUnknownKey(t *testing.T) {
	_, _, d := configured(t, 1)
	err := d.Configure(map[string]interface{}{
		"NoSuchThing":  1,
		"ExposureTime": 42.0,
		"ReadoutCount": 7,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchThing")
	exp, err := d.Float(picam.ExposureTime)
	require.NoError(t, err)
	assert.Equal(t, 42.0, exp)
	n, err := d.LargeInt(picam.ReadoutCount)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestKineticsAcquisition(t *testing.T) {
	c, _ := newController(t)
	d, err := c.OpenFirst()
	require.NoError(t, err)
	require.NoError(t, d.SetFloat(picam.ExposureTime, 1))
	require.NoError(t, d.SetKinetics(10))
	assert.Equal(t, Configured, d.State())

	l, err := d.Layout()
	require.NoError(t, err)
	assert.Equal(t, 10, l.Frames())
	assert.Equal(t, 1340*10*2, l.FrameStride)
	assert.Equal(t, 10*l.FrameStride, l.Stride)

	v, _, err := d.Acquire(3, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, v.Count)
	px := v.Pixels()
	assert.Equal(t, demo.PixelValue(2, 4*px+11), v.FrameAt(2, 4)[11])
	assert.Len(t, v.Latest(), px)

	var ce *CommitError
	assert.ErrorAs(t, d.SetKinetics(0), &ce)
}

func TestDescribeParameters(t *testing.T) {
	_, _, d := configured(t, 1)
	ps, err := d.Parameters()
	require.NoError(t, err)
	require.NotEmpty(t, ps)

	for _, p := range ps {
		_, err := d.Describe(p)
		assert.NoError(t, err, p.String())
	}

	info, err := d.Describe(picam.ExposureTime)
	require.NoError(t, err)
	assert.Equal(t, picam.AccessReadWrite, info.Access)
	assert.True(t, info.Onlineable)
	assert.Equal(t, 1.0, info.Value)
	require.NotNil(t, info.Range)
	assert.Nil(t, info.Collection)

	info, err = d.Describe(picam.AdcSpeed)
	require.NoError(t, err)
	require.NotNil(t, info.Collection)
	assert.Equal(t, []float64{2, 0.1}, info.Collection.Values)

	info, err = d.Describe(picam.ReadoutStride)
	require.NoError(t, err)
	assert.Equal(t, picam.AccessReadOnly, info.Access)
	assert.False(t, info.Onlineable)
	assert.Equal(t, 200, info.Value)

	info, err = d.Describe(picam.KineticsWindowHeight)
	require.NoError(t, err)
	assert.False(t, info.Relevant)
}
