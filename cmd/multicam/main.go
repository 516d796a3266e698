// Command multicam acquires from every available camera at once, connecting
// demo cameras until MinCameras are present
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
	"github.com/nasa-jpl/picamlab/util"
)

var demos = []picam.CameraID{
	{Model: picam.ModelQuadro4096, SerialNumber: "1000000001"},
	{Model: picam.ModelPixis1300F, SerialNumber: "1000000002"},
	{Model: picam.ModelProEM512B, SerialNumber: "1000000003"},
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

	ids, err := ctl.EnsureCameras(cfg.MinCameras, demos)
	if err != nil {
		log.Fatal(err)
	}
	for _, id := range ids {
		log.Printf("available: %s", id)
	}
	devs, err := ctl.OpenAll()
	if err != nil {
		log.Fatal(err)
	}
	cams := make([]acquire.Camera, len(devs))
	for i, d := range devs {
		if err = d.SetLargeInt(picam.ReadoutCount, cfg.Frames); err != nil {
			log.Fatal(err)
		}
		if err = d.SetFloat(picam.ExposureTime, cfg.ExposureMs); err != nil {
			log.Fatal(err)
		}
		if err = d.Commit(); err != nil {
			log.Fatal(err)
		}
		cams[i] = d
	}

	m := acquire.Multi{
		OnUpdate: func(i int, cam acquire.Camera, v readout.View, st picam.AcquisitionStatus) {
			for k := 0; k < v.Count; k++ {
				c := v.CenterThree(k)
				fmt.Printf("%s: %s\n", cam, util.IntSliceToCSV([]int{int(c[0]), int(c[1]), int(c[2])}))
			}
		},
	}
	if cfg.ReportSeconds > 0 {
		m.Reporter = cfg.Poller().Reporter
	}
	stats, err := m.Run(context.Background(), cams)
	for i, s := range stats {
		fmt.Printf("%s: %s\n", cams[i], s)
	}
	if m.Reporter != nil {
		fmt.Println(m.Reporter.Summary())
	}
	if err != nil {
		log.Fatal(err)
	}
}
