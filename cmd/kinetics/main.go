// Command kinetics acquires in kinetics mode, where the sensor is shifted a
// window at a time and every readout carries many frames, and prints the
// mean of each frame.
//
// Usage:
//
//	kinetics [-window rows] [-exposure ms] [readouts]
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
)

func mean(px []uint16) float64 {
	if len(px) == 0 {
		return 0
	}
	var sum float64
	for _, p := range px {
		sum += float64(p)
	}
	return sum / float64(len(px))
}

func main() {
	window := flag.Int("window", 10, "kinetics window height in rows")
	exposure := flag.Float64("exposure", 20, "exposure time in ms")
	flag.Parse()

	readouts := int64(3)
	if flag.NArg() > 0 {
		n, err := strconv.ParseInt(flag.Arg(0), 10, 64)
		if err != nil || n < 1 {
			log.Fatalf("readouts must be a positive integer, got %q", flag.Arg(0))
		}
		readouts = n
	}

	_, cfg, err := config.Load(config.FileName)
	if err != nil {
		log.Fatal(err)
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
	if err = d.SetFloat(picam.ExposureTime, *exposure); err != nil {
		log.Fatal(err)
	}
	if err = d.SetLargeInt(picam.ReadoutCount, readouts); err != nil {
		log.Fatal(err)
	}
	if err = d.SetKinetics(*window); err != nil {
		log.Fatal(err)
	}
	l, err := d.Layout()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%d frames of %d bytes per readout, frame stride %d", l.Frames(), l.FrameSize, l.FrameStride)

	rate, err := d.ReadoutRate()
	if err != nil {
		log.Fatal(err)
	}
	v, err := acquire.Frames(d, readouts, acquire.FrameTimeout(rate, readouts))
	if err != nil {
		log.Fatal(err)
	}
	for k := 0; k < v.Count; k++ {
		for f := 0; f < v.Frames(); f++ {
			fmt.Printf("readout %d frame %d: mean %.1f\n", k, f, mean(v.FrameAt(k, f)))
		}
	}
}
