package readout

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
)

// WriteFITS streams the frames of v to w as a 16-bit image, or a cube when
// v holds more than one frame.  The frame must be a single ROI; cols and
// rows come from it.  metadata is not modified.
func WriteFITS(w io.Writer, metadata []fitsio.Card, v View) error {
	if len(v.Rois) != 1 {
		return fmt.Errorf("readout: FITS output needs exactly one ROI, have %d", len(v.Rois))
	}
	if v.Count < 1 {
		return fmt.Errorf("readout: no readouts to write")
	}
	cards := make([]fitsio.Card, 0, len(metadata)+2)
	cards = append(cards, metadata...)
	cards = append(cards, fitsio.Card{Name: "BZERO", Value: 32768}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	frames := v.Count * v.Frames()
	dims := []int{v.Rois[0].Cols(), v.Rois[0].Rows()}
	if frames > 1 {
		dims = append(dims, frames)
	}
	im := fitsio.NewImage(16, dims)
	defer im.Close()
	err = im.Header().Append(cards...)
	if err != nil {
		return err
	}

	// the readouts are strided, so the shift to signed happens frame by frame
	px := v.Pixels()
	ints := make([]int16, px*frames)
	for k := 0; k < v.Count; k++ {
		for f := 0; f < v.Frames(); f++ {
			base := (k*v.Frames() + f) * px
			for i, u := range v.FrameAt(k, f) {
				ints[base+i] = int16(u - 32768)
			}
		}
	}
	err = im.Write(ints)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
