// Command acquire takes a few readouts synchronously and prints the
// center pixels of each
package main

import (
	"fmt"
	"log"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/util"
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
	v, err := ctl.Version()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("picam version %s", v)

	d, err := ctl.OpenFirst()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("opened %s", d)
	if err = d.SetFloat(picam.ExposureTime, cfg.ExposureMs); err != nil {
		log.Fatal(err)
	}
	if err = d.SetLargeInt(picam.ReadoutCount, cfg.Frames); err != nil {
		log.Fatal(err)
	}
	if err = d.Commit(); err != nil {
		log.Fatal(err)
	}
	view, err := acquire.Frames(d, cfg.Frames, cfg.Timeout())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Center Three Points:\n")
	for k := 0; k < view.Count; k++ {
		c := view.CenterThree(k)
		fmt.Printf("readout %d: %s\n", k, util.IntSliceToCSV([]int{int(c[0]), int(c[1]), int(c[2])}))
	}
}
