package camera

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nasa-jpl/picamlab/camera"
	"github.com/nasa-jpl/picamlab/picam"
)

// Metrics are the prometheus collectors of one camera
type Metrics struct {
	// Registry holds every collector below
	Registry *prometheus.Registry

	readouts prometheus.Counter
	updates  prometheus.Counter
	errors   *prometheus.CounterVec
	dropped  prometheus.Counter
}

// NewMetrics registers the collectors for c, labelled with its name
func NewMetrics(c camera.Sci) *Metrics {
	labels := prometheus.Labels{"camera": c.String()}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		readouts: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem:   "picam",
			Name:        "readouts_total",
			Help:        "Readouts received from the camera.",
			ConstLabels: labels,
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem:   "picam",
			Name:        "acquisition_updates_total",
			Help:        "Acquisition updates received from the camera.",
			ConstLabels: labels,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem:   "picam",
			Name:        "acquisition_errors_total",
			Help:        "Acquisition updates that carried each error bit.",
			ConstLabels: labels,
		}, []string{"error"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem:   "picam",
			Name:        "stream_dropped_total",
			Help:        "Streamed updates dropped because the consumer fell behind.",
			ConstLabels: labels,
		}),
	}
	read := func(fn func() (float64, error)) func() float64 {
		return func() float64 {
			f, err := fn()
			if err != nil {
				return math.NaN()
			}
			return f
		}
	}
	m.Registry.MustRegister(
		m.readouts, m.updates, m.errors, m.dropped,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Subsystem:   "picam",
			Name:        "sensor_temperature_celcius",
			Help:        "Current sensor temperature.",
			ConstLabels: labels,
		}, read(c.Temperature)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Subsystem:   "picam",
			Name:        "sensor_temperature_setpoint_celcius",
			Help:        "Sensor temperature setpoint.",
			ConstLabels: labels,
		}, read(c.TemperatureSetpoint)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Subsystem:   "picam",
			Name:        "exposure_time_milliseconds",
			Help:        "Exposure time.",
			ConstLabels: labels,
		}, read(func() (float64, error) { return c.Float(picam.ExposureTime) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Subsystem:   "picam",
			Name:        "readout_rate_hertz",
			Help:        "Calculated readouts per second.",
			ConstLabels: labels,
		}, read(c.ReadoutRate)),
	)
	return m
}

// Observe counts one acquisition update of count readouts
func (m *Metrics) Observe(count int, st picam.AcquisitionStatus) {
	if m == nil {
		return
	}
	if count > 0 {
		m.updates.Inc()
		m.readouts.Add(float64(count))
	}
	for _, b := range st.Errors.Bits() {
		m.errors.WithLabelValues(b.String()).Inc()
	}
}

// Dropped adds n dropped stream updates
func (m *Metrics) Dropped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(float64(n))
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
