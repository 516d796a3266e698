package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/cenkalti/backoff"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/util"
)

// HeaderVersion tags the FITS header layout made by CollectHeaderMetadata
const HeaderVersion = "PICAM-1"

// ErrNotLocked is returned by WaitForTemperatureLock when the sensor does
// not reach its set point in time
var ErrNotLocked = errors.New("session: sensor temperature not locked")

// SensorSize returns the active width and height of the sensor
func (d *Device) SensorSize() (int, int, error) {
	w, err := d.Int(picam.SensorActiveWidth)
	if err != nil {
		return 0, 0, err
	}
	h, err := d.Int(picam.SensorActiveHeight)
	return w, h, err
}

// SetFullROI sets one unbinned ROI covering the sensor and commits
func (d *Device) SetFullROI() error {
	w, h, err := d.SensorSize()
	if err != nil {
		return err
	}
	if err := d.SetRois(picam.Rois{{X: 0, Width: w, XBinning: 1, Y: 0, Height: h, YBinning: 1}}); err != nil {
		return err
	}
	return d.Commit()
}

// SetCenterROI sets a dim x dim unbinned ROI in the middle of the sensor and
// commits.  If dim does not fit or the commit fails the full sensor is used.
func (d *Device) SetCenterROI(dim int) error {
	w, h, err := d.SensorSize()
	if err != nil {
		return err
	}
	if dim <= 0 || dim > w || dim > h {
		return d.SetFullROI()
	}
	r := picam.Roi{X: w/2 - dim/2, Width: dim, XBinning: 1, Y: h/2 - dim/2, Height: dim, YBinning: 1}
	return d.commitOrFull(picam.Rois{r})
}

// SetCenterBinROI bins rows rows in the middle of the sensor into one line
// spanning every column, and commits.  On failure the full sensor is used.
func (d *Device) SetCenterBinROI(rows int) error {
	w, h, err := d.SensorSize()
	if err != nil {
		return err
	}
	if rows <= 0 || rows > h {
		return d.SetFullROI()
	}
	r := picam.Roi{X: 0, Width: w, XBinning: 1, Y: h/2 - rows/2, Height: rows, YBinning: rows}
	return d.commitOrFull(picam.Rois{r})
}

func (d *Device) commitOrFull(r picam.Rois) error {
	err := d.SetRois(r)
	if err == nil {
		err = d.Commit()
	}
	if err == nil {
		return nil
	}
	var se *StateError
	if errors.As(err, &se) || errors.Is(err, ErrClosed) {
		return err
	}
	return d.SetFullROI()
}

// SetKinetics switches to kinetics readout with a window rows high and one
// full width ROI filling the window, and commits.  Each readout then holds
// FramesPerReadout frames; see readout.View.FrameAt.
func (d *Device) SetKinetics(window int) error {
	w, _, err := d.SensorSize()
	if err != nil {
		return err
	}
	if err := d.SetInt(picam.ReadoutControlMode, picam.ReadoutKinetics); err != nil {
		return err
	}
	if err := d.SetInt(picam.KineticsWindowHeight, window); err != nil {
		return err
	}
	if err := d.SetRois(picam.Rois{{X: 0, Width: w, XBinning: 1, Y: 0, Height: window, YBinning: 1}}); err != nil {
		return err
	}
	return d.Commit()
}

// Temperature reads the sensor temperature, C
func (d *Device) Temperature() (float64, error) {
	return d.ReadFloat(picam.SensorTemperatureReading)
}

// TemperatureStatus reads whether the sensor is locked to its set point
func (d *Device) TemperatureStatus() (picam.TemperatureStatus, error) {
	s, err := d.ReadInt(picam.SensorTemperatureStatus)
	return picam.TemperatureStatus(s), err
}

// TemperatureSetpoint returns the sensor set point, C
func (d *Device) TemperatureSetpoint() (float64, error) {
	return d.Float(picam.SensorTemperatureSetPoint)
}

// SetTemperatureSetpoint sets the sensor set point and commits
func (d *Device) SetTemperatureSetpoint(c float64) error {
	if err := d.SetFloat(picam.SensorTemperatureSetPoint, c); err != nil {
		return err
	}
	return d.Commit()
}

// WaitForTemperatureLock polls the sensor until its temperature is locked or
// maxWait elapses.  report, if not nil, sees every reading.
func (d *Device) WaitForTemperatureLock(maxWait time.Duration, report func(float64, picam.TemperatureStatus)) error {
	op := func() error {
		t, err := d.Temperature()
		if err != nil {
			return backoff.Permanent(err)
		}
		s, err := d.TemperatureStatus()
		if err != nil {
			return backoff.Permanent(err)
		}
		if report != nil {
			report(t, s)
		}
		switch s {
		case picam.TemperatureLocked:
			return nil
		case picam.TemperatureFaulted:
			return backoff.Permanent(fmt.Errorf("session: sensor temperature faulted at %.2f C", t))
		default:
			return ErrNotLocked
		}
	}
	return backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      maxWait,
		Clock:               backoff.SystemClock,
	})
}

// CollectHeaderMetadata makes a stack of FITS cards describing the camera
// and its settings
func (d *Device) CollectHeaderMetadata() []fitsio.Card {
	// plow through errors, no need to bail early
	var errs []error
	keep := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	texp, err := d.Float(picam.ExposureTime)
	keep(err)
	speed, err := d.Float(picam.AdcSpeed)
	keep(err)
	bits, err := d.Int(picam.AdcBitDepth)
	keep(err)
	gain, err := d.Int(picam.AdcAnalogGain)
	keep(err)
	tsetpt, err := d.TemperatureSetpoint()
	keep(err)
	temp, err := d.Temperature()
	keep(err)
	rois, err := d.Rois()
	keep(err)
	var roi picam.Roi
	if len(rois) > 0 {
		roi = rois[0]
	}
	var metaerr string
	if len(errs) > 0 {
		metaerr = errs[0].Error()
	}
	gainS, _ := d.lib.EnumerationString(picam.EnumAdcAnalogGain, gain)

	return []fitsio.Card{
		{Name: "HDRVER", Value: HeaderVersion, Comment: "header version"},
		{Name: "RUNID", Value: d.c.ID.String(), Comment: "session identifier"},
		{Name: "METAERR", Value: metaerr, Comment: "error encountered gathering metadata"},
		{Name: "CAMMODL", Value: d.ID.Model.String(), Comment: "camera model"},
		{Name: "CAMSN", Value: d.ID.SerialNumber, Comment: "camera serial number"},
		{Name: "SENSOR", Value: d.ID.SensorName, Comment: "sensor name"},
		{Name: "BITDEPTH", Value: bits, Comment: "2^BITDEPTH is the maximum possible DN"},

		{Name: "DATE", Value: time.Now().UTC().Format("2006-01-02T15:04:05")},

		{Name: "EXPTIME", Value: texp / 1e3, Comment: "exposure time, seconds"},
		{Name: "ADCSPEED", Value: speed, Comment: "ADC speed, MHz"},
		{Name: "GAIN", Value: gainS, Comment: "ADC analog gain"},

		{Name: "TEMPSETP", Value: util.Round(tsetpt, 0.01), Comment: "Temperature setpoint"},
		{Name: "TEMPER", Value: util.Round(temp, 0.01), Comment: "FPA temperature (Celcius)"},

		{Name: "AOIL", Value: roi.X + 1, Comment: "1-based left pixel of the AOI"},
		{Name: "AOIT", Value: roi.Y + 1, Comment: "1-based top pixel of the AOI"},
		{Name: "AOIW", Value: roi.Width, Comment: "AOI width, px"},
		{Name: "AOIH", Value: roi.Height, Comment: "AOI height, px"},
		{Name: "AOIB", Value: fmt.Sprintf("%dx%d", roi.XBinning, roi.YBinning), Comment: "AOI Binning, HxV"},
		{Name: "NROI", Value: len(rois), Comment: "number of regions of interest"},
	}
}
