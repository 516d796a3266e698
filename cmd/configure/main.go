// Command configure sets low analog gain and a long exposure, commits,
// acquires, reads the sensor temperature and finally changes the exposure
// time online during an acquisition.
//
// Usage:
//
//	configure [lock]
//
// lock waits for the sensor temperature to lock before acquiring.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/session"
)

const (
	exposure   = 500. // ms
	onlineRuns = 10
	lockWait   = 5 * time.Minute
)

func configure(d *session.Device) error {
	if err := d.SetInt(picam.AdcAnalogGain, picam.AdcAnalogGainLow); err != nil {
		return err
	}
	if err := d.SetFloat(picam.ExposureTime, exposure); err != nil {
		return err
	}
	ok, err := d.Committed()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("parameters have not been committed")
	}
	err = d.Commit()
	if ce, isCommit := err.(*session.CommitError); isCommit {
		for _, p := range ce.Failed {
			fmt.Printf("failed to commit %s\n", p)
		}
	}
	return err
}

func readTemperature(d *session.Device, lock bool) error {
	t, err := d.Temperature()
	if err != nil {
		return err
	}
	set, err := d.TemperatureSetpoint()
	if err != nil {
		return err
	}
	s, err := d.TemperatureStatus()
	if err != nil {
		return err
	}
	fmt.Printf("sensor temperature %.2f C, set point %.2f C, %s\n", t, set, s)
	if !lock {
		return nil
	}
	return d.WaitForTemperatureLock(lockWait, func(t float64, s picam.TemperatureStatus) {
		fmt.Printf("  %.2f C %s\n", t, s)
	})
}

// acquireAndExpose halves the exposure time online at the halfway readout
func acquireAndExpose(d *session.Device, cfg config.Config) error {
	ok, err := d.CanSetOnline(picam.ExposureTime)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("exposure time cannot be set online")
		return nil
	}
	if err = d.SetLargeInt(picam.ReadoutCount, onlineRuns); err != nil {
		return err
	}
	if err = d.Commit(); err != nil {
		return err
	}
	var seen int64
	changed := false
	p := cfg.Poller()
	p.Expected = onlineRuns
	p.OnUpdate = func(v readout.View, st picam.AcquisitionStatus) {
		for k := 0; k < v.Count; k++ {
			fmt.Printf("readout %d: mean %.1f\n", seen, v.Mean(k))
			seen++
		}
		if !changed && seen >= onlineRuns/2 && st.Running {
			changed = true
			if err := d.SetFloatOnline(picam.ExposureTime, exposure/2); err != nil {
				log.Printf("changing exposure online: %v", err)
				return
			}
			fmt.Printf("exposure time changed to %v ms\n", exposure/2)
		}
	}
	_, err = p.Run(context.Background(), d)
	return err
}

func main() {
	lock := len(os.Args) > 1 && strings.EqualFold(os.Args[1], "lock")
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
	if err = configure(d); err != nil {
		log.Fatal(err)
	}
	if err = readTemperature(d, lock); err != nil {
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
	fmt.Printf("mean of readout: %.1f\n", v.Mean(0))
	if err = acquireAndExpose(d, cfg); err != nil {
		log.Fatal(err)
	}
}
