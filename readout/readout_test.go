package readout

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/picam/demo"
)

// synthetic builds count readouts of a cols x rows frame with pad bytes of
// trailing space, pixel value k*1000+p
func synthetic(cols, rows, pad, count int) View {
	l := Layout{
		Stride:    cols*rows*2 + pad,
		FrameSize: cols * rows * 2,
		Rois:      picam.Rois{{Width: cols, XBinning: 1, Height: rows, YBinning: 1}},
	}
	data := make([]byte, l.Stride*count)
	for k := 0; k < count; k++ {
		for p := 0; p < cols*rows; p++ {
			binary.LittleEndian.PutUint16(data[l.Stride*k+2*p:], uint16(k*1000+p))
		}
	}
	return View{Layout: l, Data: data, Count: count}
}

func TestAddressingMatchesDemoSensor(t *testing.T) {
	lib := demo.New()
	require.NoError(t, lib.Initialize())
	defer lib.Uninitialize()
	_, err := lib.ConnectDemoCamera(picam.ModelPixis100F, "0008675309")
	require.NoError(t, err)
	h, err := lib.OpenFirstCamera()
	require.NoError(t, err)
	rois := picam.Rois{{X: 4, Width: 12, XBinning: 2, Y: 0, Height: 8, YBinning: 1}}
	require.NoError(t, lib.SetRoisValue(h, picam.RoisParameter, rois))
	require.NoError(t, lib.SetFloatingPointValue(h, picam.ExposureTime, 1))
	require.NoError(t, lib.SetIntegerValue(h, picam.TimeStamps, picam.TimeStampsExposureStarted|picam.TimeStampsExposureEnded))
	require.NoError(t, lib.SetIntegerValue(h, picam.TrackFrames, 1))
	failed, err := lib.CommitParameters(h)
	require.NoError(t, err)
	require.Empty(t, failed)

	stride, _ := lib.IntegerValue(h, picam.ReadoutStride)
	frameSize, _ := lib.IntegerValue(h, picam.FrameSize)
	res, _ := lib.LargeIntegerValue(h, picam.TimeStampResolution)
	l := Layout{Stride: stride, FrameSize: frameSize, Rois: rois,
		StampStart: true, StampEnd: true, StampBitDepth: 64, Resolution: res,
		TrackFrames: true, TrackBitDepth: 64}
	require.NoError(t, l.Validate())

	data, _, err := lib.Acquire(h, 4, 5*time.Second)
	require.NoError(t, err)
	v, err := NewView(l, data)
	require.NoError(t, err)
	require.Equal(t, 4, v.Count)
	for k := 0; k < v.Count; k++ {
		for p := 0; p < v.Pixels(); p++ {
			assert.Equal(t, stride*k+p*2, v.Offset(k, p))
			require.Equal(t, demo.PixelValue(int64(k), p), v.Pixel(k, p))
		}
		m := v.Metadata(k)
		assert.True(t, m.HasStart && m.HasEnd && m.HasFrame)
		assert.Equal(t, int64(k+1), m.Frame)
		assert.LessOrEqual(t, m.Start, m.End)
	}
}

func TestFrameHelpers(t *testing.T) {
	v := synthetic(4, 3, 6, 3)
	assert.Equal(t, uint16(2005), v.Pixel(2, 5))
	assert.Equal(t, v.Frame(2), v.Latest())
	assert.Equal(t, v.Frame(1), v.FrameView(1))
	assert.Equal(t, [3]uint16{1005, 1006, 1007}, v.CenterThree(1))
	// 0..11 averages to 5.5
	assert.InDelta(t, 1005.5, v.Mean(1), 1e-9)
	assert.Len(t, v.Readout(1), v.Stride)
	assert.Len(t, v.Bytes(), 3*v.Stride)
}

func TestFrameHelpersAtEdges(t *testing.T) {
	var empty View
	assert.Nil(t, empty.Latest())
	assert.Equal(t, [3]uint16{}, empty.CenterThree(0))

	one := synthetic(1, 1, 0, 2)
	assert.Equal(t, []uint16{1000}, one.Latest())
	assert.Equal(t, [3]uint16{1000, 1000, 1000}, one.CenterThree(1))
	assert.Equal(t, [3]uint16{}, one.CenterThree(2))
	assert.Nil(t, one.Frame(-1))

	two := synthetic(2, 1, 0, 1)
	assert.Equal(t, [3]uint16{0, 1, 1}, two.CenterThree(0))
}

// kinetics builds count readouts of frames cols x rows frames, each followed
// by a 64-bit frame number and pad bytes, pixel value k*1000+f*100+p
func kinetics(cols, rows, frames, pad, count int) View {
	frame := cols * rows * 2
	l := Layout{
		FrameSize:        frame,
		FrameStride:      frame + 8 + pad,
		FramesPerReadout: frames,
		TrackFrames:      true,
		TrackBitDepth:    64,
		Rois:             picam.Rois{{Width: cols, XBinning: 1, Height: rows, YBinning: 1}},
	}
	l.Stride = l.FrameStride * frames
	data := make([]byte, l.Stride*count)
	for k := 0; k < count; k++ {
		for f := 0; f < frames; f++ {
			base := l.Stride*k + l.FrameStride*f
			for p := 0; p < cols*rows; p++ {
				binary.LittleEndian.PutUint16(data[base+2*p:], uint16(k*1000+f*100+p))
			}
			binary.LittleEndian.PutUint64(data[base+frame:], uint64(k*frames+f+1))
		}
	}
	return View{Layout: l, Data: data, Count: count}
}

func TestKineticsFrames(t *testing.T) {
	v := kinetics(3, 2, 4, 2, 2)
	require.NoError(t, v.Validate())
	assert.Equal(t, 4, v.Frames())
	assert.Equal(t, []uint16{1200, 1201, 1202, 1203, 1204, 1205}, v.FrameAt(1, 2))
	assert.Equal(t, v.FrameAt(0, 0), v.Frame(0))
	assert.Equal(t, v.FrameAt(1, 3), v.Latest())
	assert.Nil(t, v.FrameAt(0, 4))
	assert.Equal(t, int64(7), v.MetadataAt(1, 2).Frame)
	assert.Equal(t, int64(1), v.Metadata(0).Frame)

	var buf bytes.Buffer
	require.NoError(t, WriteFITS(&buf, nil, v))
	f, err := fitsio.Open(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []int{3, 2, 8}, f.HDU(0).(fitsio.Image).Header().Axes())
}

func TestKineticsLayoutValidation(t *testing.T) {
	l := kinetics(3, 2, 4, 0, 1).Layout
	l.Stride -= 2
	assert.ErrorIs(t, l.Validate(), ErrBadLayout)
	l = kinetics(3, 2, 4, 0, 1).Layout
	l.FrameStride = 0
	assert.ErrorIs(t, l.Validate(), ErrBadLayout)
	l = kinetics(3, 2, 4, 0, 1).Layout
	l.FrameStride = l.FrameSize
	assert.ErrorIs(t, l.Validate(), ErrBadLayout)
}

func TestCloneOutlivesSource(t *testing.T) {
	v := synthetic(2, 2, 0, 2)
	c := v.Clone()
	for i := range v.Data {
		v.Data[i] = 0
	}
	assert.Equal(t, uint16(1003), c.Pixel(1, 3))
}

func TestMultipleRois(t *testing.T) {
	rois := picam.Rois{
		{Width: 4, XBinning: 2, Height: 2, YBinning: 1},
		{X: 10, Width: 3, XBinning: 1, Y: 10, Height: 1, YBinning: 1},
	}
	l := Layout{Stride: 14, FrameSize: 14, Rois: rois}
	require.NoError(t, l.Validate())
	data := []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0, 7, 0}
	v, err := NewView(l, picam.AvailableData{Data: data, ReadoutCount: 1})
	require.NoError(t, err)
	a, err := v.ROI(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3, 4}, a)
	b, err := v.ROI(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{5, 6, 7}, b)
	_, err = v.ROI(0, 2)
	assert.Error(t, err)
}

func TestLayoutValidation(t *testing.T) {
	assert.ErrorIs(t, Layout{Stride: 10, FrameSize: 10, TrackFrames: true, TrackBitDepth: 64}.Validate(), ErrBadLayout)
	assert.ErrorIs(t, Layout{Stride: 10, FrameSize: 9}.Validate(), ErrBadLayout)
	_, err := NewView(Layout{Stride: 10, FrameSize: 10}, picam.AvailableData{Data: make([]byte, 15), ReadoutCount: 2})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestRawRoundTrip(t *testing.T) {
	v := synthetic(8, 5, 8, 7)
	fn := filepath.Join(t.TempDir(), "sample.raw")
	f, err := os.Create(fn)
	require.NoError(t, err)
	n, err := WriteRaw(f, v)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, int64(7*v.Stride), n)

	back, err := ReadRaw(fn, v.Layout)
	require.NoError(t, err)
	assert.Equal(t, v.Count, back.Count)
	assert.True(t, bytes.Equal(v.Bytes(), back.Bytes()))
	assert.Equal(t, Checksum(v.Bytes()), Checksum(back.Bytes()))
}

func TestReadRawRejectsPartialReadout(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "bad.raw")
	require.NoError(t, os.WriteFile(fn, make([]byte, 13), 0o644))
	_, err := ReadRaw(fn, Layout{Stride: 10, FrameSize: 10})
	assert.Error(t, err)
}

func TestRawWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRawWriter(&buf, 2)
	v := synthetic(4, 4, 0, 3)
	for i := 0; i < 5; i++ {
		require.NoError(t, rw.Write(v))
	}
	sum, err := rw.Close()
	require.NoError(t, err)
	assert.Equal(t, int64(15), sum.Readouts)
	assert.Equal(t, int64(5*len(v.Bytes())), sum.Bytes)
	assert.Equal(t, Checksum(buf.Bytes()), sum.CRC32)
	assert.Equal(t, ErrWriterClosed, rw.Write(v))
}

func TestChecksum(t *testing.T) {
	// the CRC-32 check value
	assert.Equal(t, uint32(0xCBF43926), Checksum([]byte("123456789")))
}

func TestWriteFITS(t *testing.T) {
	v := synthetic(6, 4, 0, 2)
	var buf bytes.Buffer
	require.NoError(t, WriteFITS(&buf, []fitsio.Card{{Name: "EXPTIME", Value: 0.5}}, v))
	assert.Zero(t, buf.Len()%2880)

	f, err := fitsio.Open(&buf)
	require.NoError(t, err)
	defer f.Close()
	img := f.HDU(0).(fitsio.Image)
	assert.Equal(t, []int{6, 4, 2}, img.Header().Axes())
}

func TestWriteFITSLeavesMetadataAlone(t *testing.T) {
	v := synthetic(2, 2, 0, 1)
	backing := make([]fitsio.Card, 1, 4)
	backing[0] = fitsio.Card{Name: "EXPTIME", Value: 0.5}
	spare := backing[:4]
	require.NoError(t, WriteFITS(&bytes.Buffer{}, backing, v))
	assert.Len(t, backing, 1)
	assert.Equal(t, fitsio.Card{}, spare[1])
	assert.Equal(t, fitsio.Card{}, spare[2])
}

func TestBufferSize(t *testing.T) {
	assert.Equal(t, int64(4*1000), BufferSize(1000, 100, 4))
	assert.Equal(t, int64(50*1000), BufferSize(1000, 50*1000+999, 4))
	assert.Zero(t, BufferSize(0, 100, 4))
}

func ExampleRawFilename() {
	t := time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC)
	fmt.Println(RawFilename(t, 1024, 512, 10, 16))
	// Output: data20210403-050607-1024x512-10-16bit.raw
}
