package demo

import (
	"math"
	"sync"

	"github.com/nasa-jpl/picamlab/picam"
)

// behavior describes how one parameter behaves on a simulated camera
type behavior struct {
	readOnly   bool
	onlineable bool
	// def returns the power-on value.  nil for computed parameters.
	def func(s sensor) interface{}
	// capable lists collection values.  nil for non-collection parameters.
	capable func(s sensor) []float64
	// span is the capable range.  nil for non-range parameters.
	span func(s sensor) picam.RangeConstraint
	// relevant reports if the parameter has an effect given the other
	// values.  nil means always.
	relevant func(vals map[picam.Parameter]interface{}) bool
	// valid reports if v satisfies the parameter's constraint
	valid func(s sensor, v interface{}) bool
	// computed derives a read-only value from the other values
	computed func(s sensor, vals map[picam.Parameter]interface{}) interface{}
}

func collection(vals ...float64) func(sensor) []float64 {
	return func(sensor) []float64 { return vals }
}

func inCollection(p picam.Parameter) func(s sensor, v interface{}) bool {
	return func(s sensor, v interface{}) bool {
		f, ok := asFloat(v)
		if !ok {
			return false
		}
		return picam.CollectionConstraint{Values: behaviors[p].capable(s)}.Contains(f)
	}
}

func span(lo, hi, inc float64) func(sensor) picam.RangeConstraint {
	return func(sensor) picam.RangeConstraint {
		return picam.RangeConstraint{Minimum: lo, Maximum: hi, Increment: inc}
	}
}

func within(span func(sensor) picam.RangeConstraint) func(s sensor, v interface{}) bool {
	return func(s sensor, v interface{}) bool {
		f, ok := asFloat(v)
		return ok && span(s).Contains(f)
	}
}

func kinetics(vals map[picam.Parameter]interface{}) bool {
	mode, _ := vals[picam.ReadoutControlMode].(int)
	return mode == picam.ReadoutKinetics
}

func constant(v interface{}) func(sensor) interface{} {
	return func(sensor) interface{} { return v }
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

var behaviors map[picam.Parameter]behavior

func init() {
	behaviors = map[picam.Parameter]behavior{
		picam.ExposureTime: {onlineable: true, def: constant(10.0), span: span(0, 1e7, 0)},
		picam.ReadoutCount: {def: constant(int64(1)), span: span(0, math.MaxInt64, 1)},
		picam.SensorTemperatureSetPoint: {def: func(s sensor) interface{} { return s.defSetPoint },
			span: func(s sensor) picam.RangeConstraint {
				return picam.RangeConstraint{Minimum: s.minSetPoint, Maximum: 30, Increment: 0.1}
			}},
		picam.ReadoutControlMode: {def: constant(picam.ReadoutFullFrame), capable: collection(picam.ReadoutFullFrame, picam.ReadoutKinetics)},
		picam.KineticsWindowHeight: {
			def: func(s sensor) interface{} { return s.height },
			span: func(s sensor) picam.RangeConstraint {
				return picam.RangeConstraint{Minimum: 1, Maximum: float64(s.height), Increment: 1}
			},
			relevant: kinetics,
		},
		picam.SensorTemperatureReading: {readOnly: true},
		picam.SensorTemperatureStatus:  {readOnly: true},
		picam.AdcSpeed: {
			def:     func(s sensor) interface{} { return s.defSpeed },
			capable: func(s sensor) []float64 { return s.speeds },
		},
		picam.AdcBitDepth:   {def: constant(16), capable: collection(16)},
		picam.AdcAnalogGain: {def: constant(picam.AdcAnalogGainMedium), capable: collection(1, 2, 3)},
		picam.AdcQuality: {
			def:     func(s sensor) interface{} { return int(s.qualities[0]) },
			capable: func(s sensor) []float64 { return s.qualities },
		},
		picam.ShutterTimingMode:     {def: constant(picam.ShutterNormal), capable: collection(1, 2, 3, 4)},
		picam.TriggerResponse:       {def: constant(picam.TriggerNoResponse), capable: collection(1, 2, 3, 4, 5)},
		picam.TriggerDetermination:  {def: constant(picam.TriggerPositivePolarity), capable: collection(1, 2, 3, 4)},
		picam.CleanUntilTrigger:     {def: constant(0), capable: collection(0, 1)},
		picam.ReadoutPortCount:      {def: constant(1), capable: collection(1)},
		picam.TimeStamps:            {def: constant(picam.TimeStampsNone), capable: collection(0, 1, 2, 3)},
		picam.TimeStampResolution:   {def: constant(int64(1000000)), capable: collection(1000000)},
		picam.TimeStampBitDepth:     {def: constant(64), capable: collection(64)},
		picam.TrackFrames:           {def: constant(0), capable: collection(0, 1)},
		picam.FrameTrackingBitDepth: {def: constant(64), capable: collection(64)},
		picam.RoisParameter: {
			def: func(s sensor) interface{} {
				return picam.Rois{{X: 0, Width: s.width, XBinning: 1, Y: 0, Height: s.height, YBinning: 1}}
			},
			valid: func(s sensor, v interface{}) bool {
				rois, ok := v.(picam.Rois)
				return ok && validRois(s, rois)
			},
		},
		picam.SensorActiveWidth:  {readOnly: true, computed: func(s sensor, _ map[picam.Parameter]interface{}) interface{} { return s.width }},
		picam.SensorActiveHeight: {readOnly: true, computed: func(s sensor, _ map[picam.Parameter]interface{}) interface{} { return s.height }},
		picam.ActiveWidth: {readOnly: true, computed: func(s sensor, _ map[picam.Parameter]interface{}) interface{} { return s.width },
			span: func(s sensor) picam.RangeConstraint {
				return picam.RangeConstraint{Minimum: float64(s.width), Maximum: float64(s.width)}
			}},
		picam.ActiveHeight: {readOnly: true, computed: func(s sensor, _ map[picam.Parameter]interface{}) interface{} { return s.height },
			span: func(s sensor) picam.RangeConstraint {
				return picam.RangeConstraint{Minimum: float64(s.height), Maximum: float64(s.height)}
			}},
		picam.FrameSize: {readOnly: true, computed: func(s sensor, vals map[picam.Parameter]interface{}) interface{} {
			return layoutOf(s, vals).frameSize
		}},
		picam.FrameStride: {readOnly: true, computed: func(s sensor, vals map[picam.Parameter]interface{}) interface{} {
			return layoutOf(s, vals).frameStride
		}},
		picam.FramesPerReadout: {readOnly: true, computed: func(s sensor, vals map[picam.Parameter]interface{}) interface{} {
			return layoutOf(s, vals).frames
		}},
		picam.ReadoutStride: {readOnly: true, computed: func(s sensor, vals map[picam.Parameter]interface{}) interface{} {
			return layoutOf(s, vals).stride
		}},
		picam.ReadoutTimeCalculation: {readOnly: true, computed: func(s sensor, vals map[picam.Parameter]interface{}) interface{} {
			return layoutOf(s, vals).readoutTime
		}},
		picam.ReadoutRateCalculation: {readOnly: true, computed: func(s sensor, vals map[picam.Parameter]interface{}) interface{} {
			return layoutOf(s, vals).rate()
		}},
	}
	for _, p := range []picam.Parameter{
		picam.AdcSpeed, picam.AdcBitDepth, picam.AdcAnalogGain, picam.AdcQuality,
		picam.ShutterTimingMode, picam.TriggerResponse, picam.TriggerDetermination,
		picam.CleanUntilTrigger, picam.ReadoutPortCount, picam.TimeStamps,
		picam.TimeStampResolution, picam.TimeStampBitDepth, picam.TrackFrames,
		picam.FrameTrackingBitDepth, picam.ReadoutControlMode} {
		sp := behaviors[p]
		sp.valid = inCollection(p)
		behaviors[p] = sp
	}
	for _, m := range []map[picam.Parameter]behavior{behaviors, gateBehaviors} {
		for p, sp := range m {
			if sp.span != nil && !sp.readOnly && sp.valid == nil {
				sp.valid = within(sp.span)
				m[p] = sp
			}
		}
	}
}

// intensified cameras only
var gateBehaviors = map[picam.Parameter]behavior{
	picam.RepetitiveGate: {def: constant(picam.Pulse{Delay: 25, Width: 50}), valid: func(s sensor, v interface{}) bool {
		p, ok := v.(picam.Pulse)
		return ok && p.Delay >= 0 && p.Width > 0 && p.Delay+p.Width <= 1e9
	}},
	picam.RepetitiveModulationPhase: {def: constant(0.0), span: span(0, 360, 0)},
	picam.CustomModulationSequence: {def: constant(picam.Modulations{{Duration: 1, Frequency: 100}}), valid: func(s sensor, v interface{}) bool {
		seq, ok := v.(picam.Modulations)
		if !ok || len(seq) == 0 {
			return false
		}
		for _, m := range seq {
			if m.Duration <= 0 || m.Frequency <= 0 {
				return false
			}
		}
		return true
	}},
}

func validRois(s sensor, rois picam.Rois) bool {
	if len(rois) == 0 {
		return false
	}
	for _, r := range rois {
		if r.XBinning < 1 || r.YBinning < 1 || r.Width < 1 || r.Height < 1 || r.X < 0 || r.Y < 0 {
			return false
		}
		if r.X+r.Width > s.width || r.Y+r.Height > s.height {
			return false
		}
		if r.Width%r.XBinning != 0 || r.Height%r.YBinning != 0 {
			return false
		}
	}
	return true
}

// layout is the readout geometry implied by a set of values.  In kinetics
// mode the sensor is shifted a window at a time and a readout holds frames
// frames of frameStride bytes.
type layout struct {
	rois        picam.Rois
	frameSize   int
	frameStride int
	frames      int
	stride      int
	stampStart  bool
	stampEnd    bool
	track       bool
	stampBytes  int
	trackBytes  int
	resolution  int64
	exposure    float64 // ms
	readoutTime float64 // ms
}

func (g layout) rate() float64 {
	return 1000 / (g.exposure + g.readoutTime)
}

func layoutOf(s sensor, vals map[picam.Parameter]interface{}) layout {
	g := layout{rois: vals[picam.RoisParameter].(picam.Rois)}
	g.frameSize = g.rois.Pixels() * 2
	stamps := vals[picam.TimeStamps].(int)
	g.stampStart = stamps&picam.TimeStampsExposureStarted != 0
	g.stampEnd = stamps&picam.TimeStampsExposureEnded != 0
	g.track = vals[picam.TrackFrames].(int) != 0
	g.stampBytes = (vals[picam.TimeStampBitDepth].(int) + 7) / 8
	g.trackBytes = (vals[picam.FrameTrackingBitDepth].(int) + 7) / 8
	g.resolution = vals[picam.TimeStampResolution].(int64)
	g.frameStride = g.frameSize
	if g.stampStart {
		g.frameStride += g.stampBytes
	}
	if g.stampEnd {
		g.frameStride += g.stampBytes
	}
	if g.track {
		g.frameStride += g.trackBytes
	}
	g.frames = 1
	if kinetics(vals) {
		if window, _ := vals[picam.KineticsWindowHeight].(int); window > 0 {
			g.frames = s.height / window
		}
	}
	g.stride = g.frameStride * g.frames
	g.exposure = vals[picam.ExposureTime].(float64)
	speed, _ := asFloat(vals[picam.AdcSpeed])
	// 0.1 ms of fixed overhead per readout
	g.readoutTime = float64(g.frames*g.rois.Pixels())/(speed*1e3) + 0.1
	return g
}

// kineticsRoisFit reports if every ROI fits in the kinetics window
func kineticsRoisFit(vals map[picam.Parameter]interface{}) bool {
	if !kinetics(vals) {
		return true
	}
	window, _ := vals[picam.KineticsWindowHeight].(int)
	rois, _ := vals[picam.RoisParameter].(picam.Rois)
	for _, r := range rois {
		if r.Y+r.Height > window {
			return false
		}
	}
	return true
}

// camera is one open simulated camera
type camera struct {
	h  picam.Handle
	id picam.CameraID
	s  sensor

	mu        sync.Mutex
	params    map[picam.Parameter]behavior
	pending   map[picam.Parameter]interface{}
	committed map[picam.Parameter]interface{}
	temp      float64
	bufSize   int64
	inject    picam.AcquisitionErrorsMask
	updated   picam.AcquisitionUpdatedFunc
	stateFns  map[picam.AcquisitionState]picam.AcquisitionStateUpdatedFunc
	acq       *acquisition
	syncBuf   []byte
}

func newCamera(h picam.Handle, id picam.CameraID, s sensor) *camera {
	c := &camera{
		h:         h,
		id:        id,
		s:         s,
		params:    map[picam.Parameter]behavior{},
		pending:   map[picam.Parameter]interface{}{},
		committed: map[picam.Parameter]interface{}{},
		temp:      25,
		stateFns:  map[picam.AcquisitionState]picam.AcquisitionStateUpdatedFunc{},
	}
	for p, sp := range behaviors {
		c.params[p] = sp
	}
	if s.intensified {
		for p, sp := range gateBehaviors {
			c.params[p] = sp
		}
	}
	for p, sp := range c.params {
		if sp.def != nil {
			v := sp.def(s)
			c.pending[p] = v
			c.committed[p] = v
		}
	}
	return c
}

func (c *camera) lookup(p picam.Parameter) (behavior, error) {
	sp, ok := c.params[p]
	if !ok {
		return behavior{}, picam.ParameterDoesNotExist
	}
	return sp, nil
}

// get returns the pending value of p, deriving computed parameters
func (c *camera) get(p picam.Parameter, want ...picam.ValueType) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, err := c.lookup(p)
	if err != nil {
		return nil, err
	}
	if !typeIn(p.ValueType(), want) {
		return nil, picam.ParameterHasInvalidValueType
	}
	switch {
	case sp.computed != nil:
		return sp.computed(c.s, c.pending), nil
	case p == picam.SensorTemperatureReading:
		return c.temp, nil
	case p == picam.SensorTemperatureStatus:
		return int(c.tempStatus()), nil
	}
	return c.pending[p], nil
}

// set stores v as the pending value of p.  Out of constraint values are
// accepted here and rejected by commit.
func (c *camera) set(p picam.Parameter, v interface{}, want ...picam.ValueType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, err := c.lookup(p)
	if err != nil {
		return err
	}
	if sp.readOnly {
		return picam.ParameterValueIsReadOnly
	}
	if !typeIn(p.ValueType(), want) {
		return picam.ParameterHasInvalidValueType
	}
	if p.ValueType() == picam.ValueBoolean {
		if b, _ := v.(int); b != 0 {
			v = 1
		}
	}
	c.pending[p] = v
	return nil
}

func (c *camera) setOnline(p picam.Parameter, v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, err := c.lookup(p)
	if err != nil {
		return err
	}
	if !sp.onlineable {
		return picam.ParameterIsNotOnlineable
	}
	if !sp.valid(c.s, v) {
		return picam.InvalidParameterValue
	}
	c.pending[p] = v
	c.committed[p] = v
	if c.acq != nil {
		c.acq.retime(layoutOf(c.s, c.committed))
	}
	return nil
}

func typeIn(t picam.ValueType, want []picam.ValueType) bool {
	for _, w := range want {
		if t == w {
			return true
		}
	}
	return false
}

// invalidLocked lists pending values that violate their constraints, in ID order
func (c *camera) invalidLocked() []picam.Parameter {
	var bad []picam.Parameter
	for p, sp := range c.params {
		if sp.valid == nil {
			continue
		}
		if !sp.valid(c.s, c.pending[p]) {
			bad = append(bad, p)
		}
	}
	if !kineticsRoisFit(c.pending) && !containsParam(bad, picam.RoisParameter) {
		bad = append(bad, picam.RoisParameter)
	}
	sortParams(bad)
	return bad
}

func containsParam(ps []picam.Parameter, p picam.Parameter) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}

func sortParams(ps []picam.Parameter) {
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j] < ps[j-1]; j-- {
			ps[j], ps[j-1] = ps[j-1], ps[j]
		}
	}
}

func (c *camera) committedLocked() bool {
	for p, v := range c.pending {
		if !equal(v, c.committed[p]) {
			return false
		}
	}
	return true
}

func equal(a, b interface{}) bool {
	switch x := a.(type) {
	case picam.Rois:
		y, ok := b.(picam.Rois)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case picam.Modulations:
		y, ok := b.(picam.Modulations)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

// commit is all or nothing
func (c *camera) commit() ([]picam.Parameter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return nil, picam.AcquisitionInProgress
	}
	if bad := c.invalidLocked(); len(bad) > 0 {
		return bad, nil
	}
	for p, v := range c.pending {
		c.committed[p] = v
	}
	return nil, nil
}

func (c *camera) tempStatus() picam.TemperatureStatus {
	sp, _ := c.committed[picam.SensorTemperatureSetPoint].(float64)
	if math.Abs(c.temp-sp) < 0.05 {
		return picam.TemperatureLocked
	}
	return picam.TemperatureUnlocked
}

// readTemperature moves the sensor up to 5 degrees toward the committed set point
func (c *camera) readTemperature() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	sp, _ := c.committed[picam.SensorTemperatureSetPoint].(float64)
	d := sp - c.temp
	switch {
	case d > 5:
		c.temp += 5
	case d < -5:
		c.temp -= 5
	default:
		c.temp = sp
	}
	return c.temp
}

func (c *camera) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runningLocked()
}

func (c *camera) runningLocked() bool {
	return c.acq != nil && c.acq.isRunning()
}

func (c *camera) shutdown() {
	c.mu.Lock()
	a := c.acq
	c.mu.Unlock()
	if a != nil {
		a.requestStop()
		<-a.done
	}
}
