package session

import (
	"fmt"

	"github.com/nasa-jpl/picamlab/picam"
)

// ParameterInfo is what the camera reports about one parameter
type ParameterInfo struct {
	Parameter picam.Parameter
	Access    picam.ValueAccess
	Relevant  bool

	// Onlineable is false for read only parameters
	Onlineable bool

	// Value is the current value.  nil when the value type has no getter.
	Value interface{}

	// Collection and Range hold the capable constraint of collection and
	// range parameters
	Collection *picam.CollectionConstraint
	Range      *picam.RangeConstraint
}

// Parameters lists the parameters of the camera in ID order
func (d *Device) Parameters() ([]picam.Parameter, error) {
	if err := d.open(); err != nil {
		return nil, err
	}
	return d.lib.Parameters(d.h)
}

// RangeConstraint returns the range constraint of p in category cat
func (d *Device) RangeConstraint(p picam.Parameter, cat picam.ConstraintCategory) (picam.RangeConstraint, error) {
	if err := d.open(); err != nil {
		return picam.RangeConstraint{}, err
	}
	return d.lib.RangeConstraint(d.h, p, cat)
}

// Describe gathers access, relevance, value and capable constraint of p
func (d *Device) Describe(p picam.Parameter) (ParameterInfo, error) {
	info := ParameterInfo{Parameter: p}
	if err := d.open(); err != nil {
		return info, err
	}
	var err error
	if info.Access, err = d.lib.ValueAccess(d.h, p); err != nil {
		return info, fmt.Errorf("%s access: %w", p, err)
	}
	if info.Relevant, err = d.lib.IsParameterRelevant(d.h, p); err != nil {
		return info, fmt.Errorf("%s relevance: %w", p, err)
	}
	if info.Access != picam.AccessReadOnly {
		if info.Onlineable, err = d.lib.CanSetParameterOnline(d.h, p); err != nil {
			return info, fmt.Errorf("%s onlineable: %w", p, err)
		}
	}
	if info.Value, err = d.value(p); err != nil {
		return info, fmt.Errorf("%s value: %w", p, err)
	}
	switch p.ConstraintType() {
	case picam.ConstraintCollection:
		cc, err := d.lib.CollectionConstraint(d.h, p, picam.CategoryCapable)
		if err != nil {
			return info, fmt.Errorf("%s constraint: %w", p, err)
		}
		info.Collection = &cc
	case picam.ConstraintRange:
		rc, err := d.lib.RangeConstraint(d.h, p, picam.CategoryCapable)
		if err != nil {
			return info, fmt.Errorf("%s constraint: %w", p, err)
		}
		info.Range = &rc
	}
	return info, nil
}

func (d *Device) value(p picam.Parameter) (interface{}, error) {
	switch p.ValueType() {
	case picam.ValueInteger, picam.ValueBoolean, picam.ValueEnumeration:
		return d.lib.IntegerValue(d.h, p)
	case picam.ValueLargeInteger:
		return d.lib.LargeIntegerValue(d.h, p)
	case picam.ValueFloatingPoint:
		return d.lib.FloatingPointValue(d.h, p)
	case picam.ValueRois:
		return d.lib.RoisValue(d.h, p)
	case picam.ValuePulse:
		return d.lib.PulseValue(d.h, p)
	case picam.ValueModulations:
		return d.lib.ModulationsValue(d.h, p)
	}
	return nil, nil
}
