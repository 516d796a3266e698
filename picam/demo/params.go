package demo

import "github.com/nasa-jpl/picamlab/picam"

// DoesParameterExist reports if the camera has p
func (l *Library) DoesParameterExist(h picam.Handle, p picam.Parameter) (bool, error) {
	c, err := l.camera(h)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.params[p]
	return ok, nil
}

// Parameters lists the camera's parameters in ID order
func (l *Library) Parameters(h picam.Handle) ([]picam.Parameter, error) {
	c, err := l.camera(h)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ps := make([]picam.Parameter, 0, len(c.params))
	for p := range c.params {
		ps = append(ps, p)
	}
	sortParams(ps)
	return ps, nil
}

// IsParameterRelevant reports if p affects the camera given the pending values
func (l *Library) IsParameterRelevant(h picam.Handle, p picam.Parameter) (bool, error) {
	c, err := l.camera(h)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, err := c.lookup(p)
	if err != nil {
		return false, err
	}
	return sp.relevant == nil || sp.relevant(c.pending), nil
}

// ValueAccess is read only for computed and status parameters and trivial
// for collections of one value
func (l *Library) ValueAccess(h picam.Handle, p picam.Parameter) (picam.ValueAccess, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, err := c.lookup(p)
	if err != nil {
		return 0, err
	}
	switch {
	case sp.readOnly:
		return picam.AccessReadOnly, nil
	case sp.capable != nil && len(sp.capable(c.s)) == 1:
		return picam.AccessReadWriteTrivial, nil
	}
	return picam.AccessReadWrite, nil
}

// CanSetParameterOnline reports if p may change during an acquisition
func (l *Library) CanSetParameterOnline(h picam.Handle, p picam.Parameter) (bool, error) {
	c, err := l.camera(h)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, err := c.lookup(p)
	if err != nil {
		return false, err
	}
	return sp.onlineable, nil
}

var intTypes = []picam.ValueType{picam.ValueInteger, picam.ValueBoolean, picam.ValueEnumeration}

// IntegerValue gets an integer, boolean or enumeration parameter
func (l *Library) IntegerValue(h picam.Handle, p picam.Parameter) (int, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	v, err := c.get(p, intTypes...)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// SetIntegerValue sets an integer, boolean or enumeration parameter
func (l *Library) SetIntegerValue(h picam.Handle, p picam.Parameter, v int) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return c.set(p, v, intTypes...)
}

// LargeIntegerValue gets a large integer parameter
func (l *Library) LargeIntegerValue(h picam.Handle, p picam.Parameter) (int64, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	v, err := c.get(p, picam.ValueLargeInteger)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// SetLargeIntegerValue sets a large integer parameter
func (l *Library) SetLargeIntegerValue(h picam.Handle, p picam.Parameter, v int64) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return c.set(p, v, picam.ValueLargeInteger)
}

// FloatingPointValue gets a floating point parameter
func (l *Library) FloatingPointValue(h picam.Handle, p picam.Parameter) (float64, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	v, err := c.get(p, picam.ValueFloatingPoint)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// SetFloatingPointValue sets a floating point parameter
func (l *Library) SetFloatingPointValue(h picam.Handle, p picam.Parameter, v float64) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return c.set(p, v, picam.ValueFloatingPoint)
}

// SetFloatingPointValueOnline sets and commits an onlineable parameter.
// A running acquisition picks up the new value at its next readout.
func (l *Library) SetFloatingPointValueOnline(h picam.Handle, p picam.Parameter, v float64) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return c.setOnline(p, v)
}

// ReadIntegerValue reads a status parameter from the hardware
func (l *Library) ReadIntegerValue(h picam.Handle, p picam.Parameter) (int, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	if p != picam.SensorTemperatureStatus {
		return 0, picam.ParameterIsNotReadable
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.tempStatus()), nil
}

// ReadFloatingPointValue reads a status parameter from the hardware
func (l *Library) ReadFloatingPointValue(h picam.Handle, p picam.Parameter) (float64, error) {
	c, err := l.camera(h)
	if err != nil {
		return 0, err
	}
	if p != picam.SensorTemperatureReading {
		return 0, picam.ParameterIsNotReadable
	}
	return c.readTemperature(), nil
}

// RoisValue gets a ROI parameter.  The result is a copy.
func (l *Library) RoisValue(h picam.Handle, p picam.Parameter) (picam.Rois, error) {
	c, err := l.camera(h)
	if err != nil {
		return nil, err
	}
	v, err := c.get(p, picam.ValueRois)
	if err != nil {
		return nil, err
	}
	return append(picam.Rois(nil), v.(picam.Rois)...), nil
}

// SetRoisValue sets a ROI parameter
func (l *Library) SetRoisValue(h picam.Handle, p picam.Parameter, r picam.Rois) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return c.set(p, append(picam.Rois(nil), r...), picam.ValueRois)
}

// PulseValue gets a pulse parameter
func (l *Library) PulseValue(h picam.Handle, p picam.Parameter) (picam.Pulse, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.Pulse{}, err
	}
	v, err := c.get(p, picam.ValuePulse)
	if err != nil {
		return picam.Pulse{}, err
	}
	return v.(picam.Pulse), nil
}

// SetPulseValue sets a pulse parameter
func (l *Library) SetPulseValue(h picam.Handle, p picam.Parameter, v picam.Pulse) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return c.set(p, v, picam.ValuePulse)
}

// ModulationsValue gets a modulation sequence parameter.  The result is a copy.
func (l *Library) ModulationsValue(h picam.Handle, p picam.Parameter) (picam.Modulations, error) {
	c, err := l.camera(h)
	if err != nil {
		return nil, err
	}
	v, err := c.get(p, picam.ValueModulations)
	if err != nil {
		return nil, err
	}
	return append(picam.Modulations(nil), v.(picam.Modulations)...), nil
}

// SetModulationsValue sets a modulation sequence parameter
func (l *Library) SetModulationsValue(h picam.Handle, p picam.Parameter, v picam.Modulations) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	return c.set(p, append(picam.Modulations(nil), v...), picam.ValueModulations)
}

// CollectionConstraint returns the allowed values of a collection parameter.
// The simulated cameras have no cross-parameter restrictions, so every
// category returns the capable set.
func (l *Library) CollectionConstraint(h picam.Handle, p picam.Parameter, cat picam.ConstraintCategory) (picam.CollectionConstraint, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.CollectionConstraint{}, err
	}
	if cat < picam.CategoryCapable || cat > picam.CategoryRecommended {
		return picam.CollectionConstraint{}, picam.InvalidConstraintCategory
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, err := c.lookup(p)
	if err != nil {
		return picam.CollectionConstraint{}, err
	}
	if sp.capable == nil {
		return picam.CollectionConstraint{}, picam.ParameterHasInvalidConstraintType
	}
	vals := sp.capable(c.s)
	return picam.CollectionConstraint{Values: append([]float64(nil), vals...)}, nil
}

// RangeConstraint returns the allowed span of a range parameter.  As with
// collections every category returns the capable range.
func (l *Library) RangeConstraint(h picam.Handle, p picam.Parameter, cat picam.ConstraintCategory) (picam.RangeConstraint, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.RangeConstraint{}, err
	}
	if cat < picam.CategoryCapable || cat > picam.CategoryRecommended {
		return picam.RangeConstraint{}, picam.InvalidConstraintCategory
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, err := c.lookup(p)
	if err != nil {
		return picam.RangeConstraint{}, err
	}
	if sp.span == nil {
		return picam.RangeConstraint{}, picam.ParameterHasInvalidConstraintType
	}
	return sp.span(c.s), nil
}

// AreParametersCommitted is true when no pending value differs from the committed one
func (l *Library) AreParametersCommitted(h picam.Handle) (bool, error) {
	c, err := l.camera(h)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committedLocked(), nil
}

// CommitParameters validates every pending value.  If any fails, nothing is
// committed and the failures are returned.
func (l *Library) CommitParameters(h picam.Handle) ([]picam.Parameter, error) {
	c, err := l.camera(h)
	if err != nil {
		return nil, err
	}
	return c.commit()
}
