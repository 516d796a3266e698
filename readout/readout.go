/*Package readout interprets acquisition buffers as 16-bit pixels.

A buffer holds Count readouts of Stride bytes.  Pixel P of readout K is the
little-endian uint16 at byte Stride*K + P*2.  The first FrameSize bytes of a
readout are pixels; enabled metadata follows them.

In kinetics mode a readout holds FramesPerReadout frames, FrameStride bytes
apart, each followed by its own metadata.  Pixel P of frame F in readout K is
at byte Stride*K + FrameStride*F + P*2.

A View made from library memory is only valid until the next wait, callback or
acquire on the same camera.  Clone it to keep it longer.
*/
package readout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"github.com/nasa-jpl/picamlab/picam"
)

var (
	// ErrShortBuffer is returned when a buffer holds fewer bytes than count*stride
	ErrShortBuffer = errors.New("readout: buffer shorter than count*stride")

	// ErrBadLayout is returned for a layout whose stride cannot hold its frame and metadata
	ErrBadLayout = errors.New("readout: stride smaller than frame size plus metadata")
)

// Layout is the geometry of every readout in a buffer
type Layout struct {
	// Stride is the ReadoutStride in bytes
	Stride int

	// FrameSize is the pixel data size in bytes
	FrameSize int

	// Rois are the regions the frame is made of, in order.  May be empty.
	Rois picam.Rois

	// StampStart and StampEnd report if exposure start/end time stamps follow the frame
	StampStart, StampEnd bool

	// StampBitDepth is the size of one time stamp in bits
	StampBitDepth int

	// Resolution is the number of time stamp ticks per second
	Resolution int64

	// TrackFrames reports if a frame number follows the time stamps
	TrackFrames bool

	// TrackBitDepth is the size of the frame number in bits
	TrackBitDepth int

	// FrameStride is the distance in bytes between the frames of a readout.
	// Zero when a readout holds one frame.
	FrameStride int

	// FramesPerReadout is the number of frames in a readout.  Zero means one.
	FramesPerReadout int
}

// Frames is the number of frames in each readout
func (l Layout) Frames() int {
	if l.FramesPerReadout < 1 {
		return 1
	}
	return l.FramesPerReadout
}

func (l Layout) frameStride() int {
	if l.FrameStride <= 0 {
		return l.Stride
	}
	return l.FrameStride
}

// Pixels is the number of pixels in one frame
func (l Layout) Pixels() int {
	return l.FrameSize / 2
}

func (l Layout) stampBytes() int { return (l.StampBitDepth + 7) / 8 }
func (l Layout) trackBytes() int { return (l.TrackBitDepth + 7) / 8 }

// MetadataSize is the number of metadata bytes after each frame
func (l Layout) MetadataSize() int {
	n := 0
	if l.StampStart {
		n += l.stampBytes()
	}
	if l.StampEnd {
		n += l.stampBytes()
	}
	if l.TrackFrames {
		n += l.trackBytes()
	}
	return n
}

// Validate checks that the stride can hold every frame and its metadata
func (l Layout) Validate() error {
	if l.Stride <= 0 || l.FrameSize <= 0 || l.FrameSize%2 != 0 {
		return fmt.Errorf("%w: stride %d frame size %d", ErrBadLayout, l.Stride, l.FrameSize)
	}
	if l.Frames() > 1 && l.FrameStride <= 0 {
		return fmt.Errorf("%w: %d frames per readout without a frame stride", ErrBadLayout, l.Frames())
	}
	if l.FrameSize+l.MetadataSize() > l.frameStride() {
		return fmt.Errorf("%w: frame stride %d < %d+%d", ErrBadLayout, l.frameStride(), l.FrameSize, l.MetadataSize())
	}
	if l.frameStride()*l.Frames() > l.Stride {
		return fmt.Errorf("%w: stride %d < %d frames of %d", ErrBadLayout, l.Stride, l.Frames(), l.frameStride())
	}
	if len(l.Rois) > 0 && l.Rois.Pixels()*2 != l.FrameSize {
		return fmt.Errorf("%w: ROIs hold %d pixels, frame holds %d", ErrBadLayout, l.Rois.Pixels(), l.Pixels())
	}
	return nil
}

// View is a set of readouts with a known layout
type View struct {
	Layout
	Data  []byte
	Count int
}

// NewView wraps data with layout l
func NewView(l Layout, data picam.AvailableData) (View, error) {
	if err := l.Validate(); err != nil {
		return View{}, err
	}
	n := int(data.ReadoutCount)
	if len(data.Data) < n*l.Stride {
		return View{}, fmt.Errorf("%w: have %d bytes, need %d*%d", ErrShortBuffer, len(data.Data), n, l.Stride)
	}
	return View{Layout: l, Data: data.Data, Count: n}, nil
}

// Offset is the byte offset of pixel p in readout k
func (v View) Offset(k, p int) int {
	return v.Stride*k + p*2
}

// Pixel returns pixel p of readout k
func (v View) Pixel(k, p int) uint16 {
	return binary.LittleEndian.Uint16(v.Data[v.Offset(k, p):])
}

// Readout returns the raw bytes of readout k, frame and metadata.  It aliases Data.
func (v View) Readout(k int) []byte {
	return v.Data[k*v.Stride : (k+1)*v.Stride]
}

// Bytes returns the Count*Stride bytes of the view.  It aliases Data.
func (v View) Bytes() []byte {
	return v.Data[:v.Count*v.Stride]
}

// Frame copies the pixels of the first frame of readout k.  It is nil when k
// is outside the view.
func (v View) Frame(k int) []uint16 {
	return v.FrameAt(k, 0)
}

// FrameAt copies the pixels of frame f of readout k.  It is nil when either
// index is outside the view.
func (v View) FrameAt(k, f int) []uint16 {
	if k < 0 || k >= v.Count || f < 0 || f >= v.Frames() {
		return nil
	}
	out := make([]uint16, v.Pixels())
	base := v.Stride*k + v.frameStride()*f
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(v.Data[base+2*i:])
	}
	return out
}

// FrameView reinterprets the pixels of readout k in place, without a copy.
// It is only meaningful on little-endian hosts and aliases Data.
func (v View) FrameView(k int) []uint16 {
	b := v.Data[v.Stride*k : v.Stride*k+v.FrameSize]
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b[0])), len(b)/2)
}

// Latest copies the pixels of the most recent frame, the last in the view.
// It is nil for an empty view.
func (v View) Latest() []uint16 {
	return v.FrameAt(v.Count-1, v.Frames()-1)
}

// ROI copies the pixels of ROI i of readout k, rows*cols in row-major order
func (v View) ROI(k, i int) ([]uint16, error) {
	if i < 0 || i >= len(v.Rois) {
		return nil, fmt.Errorf("readout: ROI %d out of range [0,%d)", i, len(v.Rois))
	}
	start := 0
	for _, r := range v.Rois[:i] {
		start += r.Pixels()
	}
	out := make([]uint16, v.Rois[i].Pixels())
	base := v.Stride*k + start*2
	for j := range out {
		out[j] = binary.LittleEndian.Uint16(v.Data[base+2*j:])
	}
	return out, nil
}

// Mean is the average pixel value of readout k
func (v View) Mean(k int) float64 {
	px := v.Pixels()
	if px == 0 {
		return 0
	}
	var sum uint64
	base := v.Stride * k
	for i := 0; i < px; i++ {
		sum += uint64(binary.LittleEndian.Uint16(v.Data[base+2*i:]))
	}
	return float64(sum) / float64(px)
}

// CenterThree returns the pixels either side of and at the middle of readout
// k.  Neighbors past the frame edge repeat the edge pixel; an empty frame or
// a k outside the view gives zeros.
func (v View) CenterThree(k int) [3]uint16 {
	var out [3]uint16
	px := v.Pixels()
	if px == 0 || k < 0 || k >= v.Count {
		return out
	}
	mid := px / 2
	for i := range out {
		p := mid - 1 + i
		if p < 0 {
			p = 0
		}
		if p > px-1 {
			p = px - 1
		}
		out[i] = v.Pixel(k, p)
	}
	return out
}

// Clone deep copies the view so it outlives the library's buffer
func (v View) Clone() View {
	out := v
	out.Data = append([]byte(nil), v.Bytes()...)
	out.Rois = append(picam.Rois(nil), v.Rois...)
	return out
}

// Metadata is the decoded metadata of one readout
type Metadata struct {
	// Start and End are exposure times in seconds since the acquisition began
	Start, End float64

	// HasStart and HasEnd report which times were present
	HasStart, HasEnd bool

	// Frame is the frame tracking number
	Frame int64

	// HasFrame reports if a frame number was present
	HasFrame bool
}

func getN(b []byte) int64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return int64(v)
}

// Metadata decodes the metadata that follows the first frame of readout k
func (v View) Metadata(k int) Metadata {
	return v.MetadataAt(k, 0)
}

// MetadataAt decodes the metadata that follows frame f of readout k
func (v View) MetadataAt(k, f int) Metadata {
	var m Metadata
	off := v.Stride*k + v.frameStride()*f + v.FrameSize
	ticks := func() float64 {
		n := getN(v.Data[off : off+v.stampBytes()])
		off += v.stampBytes()
		if v.Resolution == 0 {
			return 0
		}
		return float64(n) / float64(v.Resolution)
	}
	if v.StampStart {
		m.Start, m.HasStart = ticks(), true
	}
	if v.StampEnd {
		m.End, m.HasEnd = ticks(), true
	}
	if v.TrackFrames {
		m.Frame, m.HasFrame = getN(v.Data[off:off+v.trackBytes()]), true
	}
	return m
}

// BufferSize is the size in bytes of a circular acquisition buffer holding
// max(minReadouts, target/stride) readouts
func BufferSize(stride int, target int64, minReadouts int) int64 {
	if stride <= 0 {
		return 0
	}
	n := target / int64(stride)
	if n < int64(minReadouts) {
		n = int64(minReadouts)
	}
	return n * int64(stride)
}
