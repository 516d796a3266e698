package config

import (
	"time"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/session"
	"github.com/nasa-jpl/picamlab/util"

	// linkages
	_ "github.com/nasa-jpl/picamlab/picam/demo"
	_ "github.com/nasa-jpl/picamlab/picam/dynlib"
)

// Timeout is TimeoutMs as a duration.  Negative waits forever.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMs < 0 {
		return -1
	}
	return util.MillisToDuration(float64(c.TimeoutMs))
}

// Poller returns a poller with the configured timeouts and, when
// ReportSeconds is positive, a reporter
func (c Config) Poller() acquire.Poller {
	p := acquire.Poller{Timeout: c.Timeout(), MaxTimeouts: c.MaxTimeouts}
	if c.ReportSeconds > 0 {
		p.Reporter = acquire.NewReporter(util.MillisToDuration(c.ReportSeconds * 1e3))
	}
	return p
}

// Controller opens the configured linkage and returns an initialized
// controller with the configured demo fallback
func Controller(c Config) (*session.Controller, error) {
	lib, err := picam.Open(c.Linkage, c.Library)
	if err != nil {
		return nil, err
	}
	ctl := session.New(lib)
	ctl.Fallback = c.Fallback
	ctl.FallbackModel = picam.Model(c.FallbackModel)
	ctl.FallbackSerial = c.FallbackSerial
	if err = ctl.Initialize(); err != nil {
		return nil, err
	}
	return ctl, nil
}

// Shutdown closes every device of ctl and uninitializes the library
func Shutdown(ctl *session.Controller) error {
	return util.MergeErrors([]error{ctl.CloseAll(), ctl.Uninitialize()})
}
