// Command rois acquires two regions of interest at once and prints the
// mean of each
package main

import (
	"fmt"
	"log"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
)

func main() {
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
	w, h, err := d.SensorSize()
	if err != nil {
		log.Fatal(err)
	}
	// the top left quarter at full resolution and the whole sensor binned 2x2
	rois := picam.Rois{
		{X: 0, Width: w / 2, XBinning: 1, Y: 0, Height: h / 2, YBinning: 1},
		{X: 0, Width: w - w%2, XBinning: 2, Y: 0, Height: h - h%2, YBinning: 2},
	}
	if err = d.SetRois(rois); err != nil {
		log.Fatal(err)
	}
	if err = d.SetFloat(picam.ExposureTime, cfg.ExposureMs); err != nil {
		log.Fatal(err)
	}
	if err = d.Commit(); err != nil {
		log.Fatal(err)
	}
	rate, err := d.ReadoutRate()
	if err != nil {
		log.Fatal(err)
	}
	v, err := acquire.Frames(d, 1, acquire.FrameTimeout(rate, 1))
	if err != nil {
		log.Fatal(err)
	}
	for i, r := range v.Rois {
		px, err := v.ROI(0, i)
		if err != nil {
			log.Fatal(err)
		}
		var sum float64
		for _, p := range px {
			sum += float64(p)
		}
		fmt.Printf("roi %d %+v: %dx%d, mean %.1f\n", i, r, r.Cols(), r.Rows(), sum/float64(len(px)))
	}
}
