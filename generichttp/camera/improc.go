// this file contains a few small image processing utilities
package camera

import (
	"fmt"
	"image"

	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/util"
)

// roiImage returns the pixels of the single ROI of readout k with its size
func roiImage(v readout.View, k int) ([]uint16, int, int, error) {
	if len(v.Rois) != 1 {
		return nil, 0, 0, fmt.Errorf("images need exactly one ROI, have %d", len(v.Rois))
	}
	if k < 0 || k >= v.Count {
		return nil, 0, 0, fmt.Errorf("readout %d out of range [0,%d)", k, v.Count)
	}
	pix, err := v.ROI(k, 0)
	if err != nil {
		return nil, 0, 0, err
	}
	return pix, v.Rois[0].Cols(), v.Rois[0].Rows(), nil
}

// Gray8 stretches buf between its minimum and maximum into an 8-bit image
func Gray8(buf []uint16, width, height int) *image.Gray {
	lo, hi := uint16(0xFFFF), uint16(0)
	for _, u := range buf {
		if u < lo {
			lo = u
		}
		if u > hi {
			hi = u
		}
	}
	span := float64(hi) - float64(lo)
	if span == 0 {
		span = 1
	}
	im := image.NewGray(image.Rect(0, 0, width, height))
	for i, u := range buf {
		im.Pix[i] = uint8(util.Clamp(float64(u-lo)*255/span, 0, 255))
	}
	return im
}

// Gray16 copies buf into a 16-bit image
func Gray16(buf []uint16, width, height int) *image.Gray16 {
	im := image.NewGray16(image.Rect(0, 0, width, height))
	for i, u := range buf {
		// image.Gray16 is big endian
		im.Pix[2*i] = uint8(u >> 8)
		im.Pix[2*i+1] = uint8(u)
	}
	return im
}

// ImRot90 rotates an image 90 degrees clockwise.  The output is height wide.
func ImRot90(stridedBuffer []uint16, width, height int) []uint16 {
	out := make([]uint16, len(stridedBuffer))
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			out[c*height+(height-1-r)] = stridedBuffer[r*width+c]
		}
	}
	return out
}

// ImRot180 rotates an image 180 degrees
func ImRot180(stridedBuffer []uint16, width, height int) []uint16 {
	n := len(stridedBuffer)
	out := make([]uint16, n)
	for i, u := range stridedBuffer {
		out[n-1-i] = u
	}
	return out
}

// ImRot270 rotates an image 270 degrees clockwise.  The output is height wide.
func ImRot270(stridedBuffer []uint16, width, height int) []uint16 {
	out := make([]uint16, len(stridedBuffer))
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			out[(width-1-c)*height+r] = stridedBuffer[r*width+c]
		}
	}
	return out
}

// rotate applies a rotation of deg degrees clockwise and returns the new width and height
func rotate(buf []uint16, width, height, deg int) ([]uint16, int, int, error) {
	switch deg {
	case 0:
		return buf, width, height, nil
	case 90:
		return ImRot90(buf, width, height), height, width, nil
	case 180:
		return ImRot180(buf, width, height), width, height, nil
	case 270:
		return ImRot270(buf, width, height), height, width, nil
	default:
		return nil, 0, 0, fmt.Errorf("rotation must be 0, 90, 180 or 270, not %d", deg)
	}
}
