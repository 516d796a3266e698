package camera

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/picamlab/imgrec"
	"github.com/nasa-jpl/picamlab/readout"
)

// Formats lists the values accepted by the fmt query parameter
var Formats = []string{"jpg", "png", "fits", "raw"}

// writeView encodes v in format to w.  jpg and png show the last readout,
// fits and raw hold every readout.  When rec is active and its extension
// matches format, the file is also recorded.
func writeView(w http.ResponseWriter, format string, v readout.View, cards []fitsio.Card, rec *imgrec.Recorder, rot int) error {
	if v.Count < 1 {
		return fmt.Errorf("no readouts to encode")
	}
	hdr := w.Header()
	switch format {
	case "", "jpg", "jpeg", "png":
		pix, cols, rows, err := roiImage(v, v.Count-1)
		if err != nil {
			return err
		}
		pix, cols, rows, err = rotate(pix, cols, rows, rot)
		if err != nil {
			return err
		}
		// encode first so an error can still become a 500
		var buf bytes.Buffer
		if format == "png" {
			hdr.Set("Content-Type", "image/png")
			err = png.Encode(&buf, Gray16(pix, cols, rows))
		} else {
			hdr.Set("Content-Type", "image/jpeg")
			err = jpeg.Encode(&buf, Gray8(pix, cols, rows), nil)
		}
		if err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)
		_, err = buf.WriteTo(w)
		return err
	case "fits":
		var buf bytes.Buffer
		if err := readout.WriteFITS(&buf, cards, v); err != nil {
			return err
		}
		hdr.Set("Content-Type", "image/fits")
		hdr.Set("Content-Disposition", "attachment; filename=image.fits")
		return respond(w, buf.Bytes(), rec, "fits")
	case "raw":
		cols, rows := 0, 0
		if len(v.Rois) > 0 {
			cols, rows = v.Rois[0].Cols(), v.Rois[0].Rows()
		}
		var buf bytes.Buffer
		if _, err := readout.WriteRaw(&buf, v); err != nil {
			return err
		}
		fn := readout.RawFilename(time.Now(), cols, rows, v.Count, 16)
		hdr.Set("Content-Type", "application/octet-stream")
		hdr.Set("Content-Disposition", "attachment; filename="+fn)
		hdr.Set("X-Readout-Stride", strconv.Itoa(v.Stride))
		hdr.Set("X-Readout-Checksum", strconv.FormatUint(uint64(readout.Checksum(buf.Bytes())), 10))
		return respond(w, buf.Bytes(), rec, "raw")
	default:
		return fmt.Errorf("unknown image format %q, use one of %v", format, Formats)
	}
}

// respond writes b to w, and to rec when it records ext files
func respond(w http.ResponseWriter, b []byte, rec *imgrec.Recorder, ext string) error {
	var w2 io.Writer = w
	if rec.Active() && recExt(rec) == ext {
		w2 = io.MultiWriter(w, rec)
		defer rec.Incr()
	}
	w.WriteHeader(http.StatusOK)
	_, err := w2.Write(b)
	return err
}

func recExt(rec *imgrec.Recorder) string {
	if rec.Ext == "" {
		return "fits"
	}
	return rec.Ext
}
