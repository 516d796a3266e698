// Command metadata enables exposure time stamps and frame tracking and
// prints them for every readout
package main

import (
	"fmt"
	"log"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/session"
)

func enable(d *session.Device) error {
	for _, p := range []picam.Parameter{picam.TimeStamps, picam.TrackFrames} {
		ok, err := d.Exists(p)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s does not support %s", d, p)
		}
	}
	if err := d.SetInt(picam.TimeStamps, picam.TimeStampsExposureStarted|picam.TimeStampsExposureEnded); err != nil {
		return err
	}
	if err := d.SetInt(picam.TrackFrames, 1); err != nil {
		return err
	}
	return d.CommitAndChange()
}

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
	if err = d.SetFloat(picam.ExposureTime, cfg.ExposureMs); err != nil {
		log.Fatal(err)
	}
	if err = d.SetLargeInt(picam.ReadoutCount, cfg.Frames); err != nil {
		log.Fatal(err)
	}
	if err = enable(d); err != nil {
		log.Fatal(err)
	}
	rate, err := d.ReadoutRate()
	if err != nil {
		log.Fatal(err)
	}
	v, err := acquire.Frames(d, cfg.Frames, acquire.FrameTimeout(rate, cfg.Frames))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%d ticks/s, %d bit stamps, %d bit frame numbers\n", v.Resolution, v.StampBitDepth, v.TrackBitDepth)
	for k := 0; k < v.Count; k++ {
		m := v.Metadata(k)
		fmt.Printf("frame %d: exposure started %.6f s, ended %.6f s, width %.6f s\n",
			m.Frame, m.Start, m.End, m.End-m.Start)
	}
}
