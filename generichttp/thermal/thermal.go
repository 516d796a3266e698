// Package thermal exposes an HTTP interface to thermal controllers
package thermal

import (
	"net/http"

	"github.com/nasa-jpl/picamlab/generichttp"
	"github.com/nasa-jpl/picamlab/picam"
)

// Controller is an interface to a thermal controller with a single channel
type Controller interface {
	// TemperatureSetpoint gets the temperature setpoint in Celsius
	TemperatureSetpoint() (float64, error)

	// SetTemperatureSetpoint sets the temperature setpoint in Celsius
	SetTemperatureSetpoint(float64) error

	// Temperature gets the temperature in Celsius
	Temperature() (float64, error)
}

// Locker is a Controller which reports if the temperature is locked to the setpoint
type Locker interface {
	TemperatureStatus() (picam.TemperatureStatus, error)
}

// HTTPController binds routes to control temperature to the table.
// /temperature-status is added when c is also a Locker.
func HTTPController(c Controller, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/temperature"}] = generichttp.Get(c.Temperature)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/temperature-setpoint"}] = generichttp.Get(c.TemperatureSetpoint)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/temperature-setpoint"}] = generichttp.Set(c.SetTemperatureSetpoint)
	if l, ok := c.(Locker); ok {
		table[generichttp.MethodPath{Method: http.MethodGet, Path: "/temperature-status"}] = generichttp.Get(func() (string, error) {
			st, err := l.TemperatureStatus()
			return st.String(), err
		})
	}
}
