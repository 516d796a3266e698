// Command callback acquires through the acquisition updated callback.
//
// Usage:
//
//	callback [frames]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
)

func spinner(enabled bool) *yacspin.Spinner {
	if !enabled {
		return nil
	}
	s, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[9],
		Suffix:            " acquiring",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopFailCharacter: "✗",
	})
	if err != nil {
		log.Println(err)
		return nil
	}
	return s
}

func main() {
	_, cfg, err := config.Load(config.FileName)
	if err != nil {
		log.Fatal(err)
	}
	frames := cfg.Frames
	if len(os.Args) > 1 {
		frames, err = strconv.ParseInt(os.Args[1], 10, 64)
		if err != nil || frames < 1 {
			log.Fatalf("frames must be a positive integer, got %q", os.Args[1])
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
	if _, err = d.SetCircularBuffer(cfg.BufferBytes, cfg.BufferReadouts); err != nil {
		log.Fatal(err)
	}

	sink := acquire.NewSink(d.String(), cfg.BufferReadouts)
	if err = d.RegisterCallback(sink.Callback); err != nil {
		log.Fatal(err)
	}
	spin := spinner(cfg.Spinner)
	if spin != nil {
		spin.Start()
	}
	if err = d.Start(); err != nil {
		log.Fatal(err)
	}
	var total int64
	stats, err := sink.Consume(context.Background(), func(ev acquire.Event) {
		if ev.View.Count > 0 {
			total += int64(ev.View.Count)
			msg := fmt.Sprintf("%d readout(s), mean of latest %.1f, %d total, %.2f readouts/s",
				ev.View.Count, ev.View.Mean(ev.View.Count-1), total, ev.Status.ReadoutRate)
			if spin != nil {
				spin.Message(msg)
			} else {
				fmt.Println(msg)
			}
		}
		if !ev.Status.Running && ev.Status.Errors != picam.AcquisitionErrorsNone {
			fmt.Printf("acquisition ended with %s\n", ev.Status.Errors)
		}
	})
	if spin != nil {
		if err != nil {
			spin.StopFail()
		} else {
			spin.Stop()
		}
	}
	if derr := d.Drain(acquire.DefaultDrainTimeout); derr != nil && err == nil {
		err = derr
	}
	fmt.Println(stats)
	if err != nil {
		log.Fatal(err)
	}
	if err = d.UnregisterCallback(); err != nil {
		log.Fatal(err)
	}
}
