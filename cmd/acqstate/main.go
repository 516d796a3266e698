// Command acqstate counts readouts starting and ending through the
// acquisition state callbacks while acquiring into a four readout buffer
package main

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
)

const bufferReadouts = 4

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
	if err = d.Commit(); err != nil {
		log.Fatal(err)
	}
	size, err := d.SetCircularBuffer(0, bufferReadouts)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("acquisition buffer of %d bytes", size)

	var started, ended atomic.Int64
	var lastErr atomic.Int64
	count := func(h picam.Handle, s picam.AcquisitionState, c picam.AcquisitionStateCounters, errs picam.AcquisitionErrorsMask) {
		started.Store(c.ReadoutStarted)
		ended.Store(c.ReadoutEnded)
		lastErr.Store(int64(errs))
	}
	for _, s := range []picam.AcquisitionState{picam.ReadoutStarted, picam.ReadoutEnded} {
		if err = d.RegisterState(s, count); err != nil {
			log.Fatal(err)
		}
	}

	var spin *yacspin.Spinner
	if cfg.Spinner {
		spin, err = yacspin.New(yacspin.Config{
			Frequency:       100 * time.Millisecond,
			CharSet:         yacspin.CharSets[9],
			Suffix:          " readouts",
			SuffixAutoColon: true,
			StopCharacter:   "✓",
		})
		if err != nil {
			log.Fatal(err)
		}
		spin.Start()
	}

	p := cfg.Poller()
	p.Expected = cfg.Frames
	p.OnUpdate = func(v readout.View, st picam.AcquisitionStatus) {
		msg := fmt.Sprintf("started %d, ended %d, errors %s", started.Load(), ended.Load(), picam.AcquisitionErrorsMask(lastErr.Load()))
		if spin != nil {
			spin.Message(msg)
		} else {
			fmt.Println(msg)
		}
	}
	stats, err := p.Run(context.Background(), d)
	if spin != nil {
		spin.Stop()
	}
	fmt.Println(stats)
	fmt.Printf("readouts started %d, ended %d\n", started.Load(), ended.Load())
	if err != nil {
		log.Fatal(err)
	}
}
