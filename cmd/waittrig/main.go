// Command waittrig acquires one readout per external trigger on the
// negative polarity of the trigger input.  It needs a real camera.
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
	cfg.Fallback = false
	ctl, err := config.Controller(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer config.Shutdown(ctl)

	d, err := ctl.OpenFirst()
	if err != nil {
		log.Fatalf("no camera to trigger: %v", err)
	}
	settings := map[string]interface{}{
		"TriggerResponse":      picam.TriggerReadoutPerTrigger,
		"TriggerDetermination": picam.TriggerNegativePolarity,
		"ReadoutCount":         cfg.Frames,
		"ExposureTime":         cfg.ExposureMs,
	}
	if err = d.Configure(settings); err != nil {
		log.Fatal(err)
	}
	if err = d.Commit(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("waiting for %d trigger(s)\n", cfg.Frames)
	p := cfg.Poller()
	p.Expected = cfg.Frames
	var n int64
	p.OnUpdate = func(v readout.View, st picam.AcquisitionStatus) {
		for k := 0; k < v.Count; k++ {
			n++
			c := v.CenterThree(k)
			fmt.Printf("trigger %d: %d %d %d\n", n, c[0], c[1], c[2])
		}
	}
	stats, err := p.Run(context.Background(), d)
	fmt.Println(stats)
	if err != nil {
		log.Fatal(err)
	}
}
