// Command savedata acquires readouts and writes them to disk.
//
// Usage:
//
//	savedata [-fits] [-o file] [frames]
//
// The raw file holds frames*stride bytes exactly as the camera delivered them.
// With -fits a FITS cube with the camera metadata is written instead.
package main

import (
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
)

func main() {
	fits := flag.Bool("fits", false, "write a FITS cube instead of raw bytes")
	out := flag.String("o", "", "output file, sample.raw or sample.fits by default")
	flag.Parse()

	_, cfg, err := config.Load(config.FileName)
	if err != nil {
		log.Fatal(err)
	}
	frames := cfg.Frames
	if flag.NArg() > 0 {
		frames, err = strconv.ParseInt(flag.Arg(0), 10, 64)
		if err != nil || frames < 1 {
			log.Fatalf("frames must be a positive integer, got %q", flag.Arg(0))
		}
	}
	fn := *out
	if fn == "" {
		fn = "sample.raw"
		if *fits {
			fn = "sample.fits"
		}
	}

	ctl, err := config.Controller(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer config.Shutdown(ctl)

	d, err := ctl.OpenFirst()
	if err != nil {
		log.Fatal(err)
	}
	if err = d.SetFloat(picam.ExposureTime, cfg.ExposureMs); err != nil {
		log.Fatal(err)
	}
	if err = d.SetLargeInt(picam.ReadoutCount, frames); err != nil {
		log.Fatal(err)
	}
	if err = d.Commit(); err != nil {
		log.Fatal(err)
	}
	rate, err := d.ReadoutRate()
	if err != nil {
		log.Fatal(err)
	}
	v, err := acquire.Frames(d, frames, acquire.FrameTimeout(rate, frames))
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Create(fn)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if *fits {
		err = readout.WriteFITS(f, d.CollectHeaderMetadata(), v)
	} else {
		var n int64
		n, err = readout.WriteRaw(f, v)
		if err == nil {
			log.Printf("%d bytes, crc32 %08x", n, readout.Checksum(v.Bytes()))
		}
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%d readout(s) written to %s", v.Count, fn)
}
