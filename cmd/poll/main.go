// Command poll runs an asynchronous acquisition and waits for its updates
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
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
	if err = d.SetFloat(picam.ExposureTime, cfg.ExposureMs); err != nil {
		log.Fatal(err)
	}
	if err = d.SetLargeInt(picam.ReadoutCount, cfg.Frames); err != nil {
		log.Fatal(err)
	}
	if err = d.Commit(); err != nil {
		log.Fatal(err)
	}
	if _, err = d.SetCircularBuffer(cfg.BufferBytes, cfg.BufferReadouts); err != nil {
		log.Fatal(err)
	}

	p := cfg.Poller()
	p.Expected = cfg.Frames
	p.OnUpdate = func(v readout.View, st picam.AcquisitionStatus) {
		if v.Count > 0 {
			fmt.Printf("%d readout(s), mean %.1f, rate %.2f/s\n", v.Count, v.Mean(v.Count-1), st.ReadoutRate)
		}
		if st.Errors != picam.AcquisitionErrorsNone {
			fmt.Printf("acquisition errors: %s\n", st.Errors)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if p.Reporter != nil {
		go p.Reporter.Run(ctx)
	}
	s, err := p.Run(ctx, d)
	fmt.Println(s)
	if err != nil {
		log.Fatal(err)
	}
}
