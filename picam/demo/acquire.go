package demo

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nasa-jpl/picamlab/picam"
)

// DefaultBufferBytes is the circular buffer size used when
// SetAcquisitionBuffer was never called
const DefaultBufferBytes = 64 << 20

// MinBufferReadouts is the fewest readouts the default buffer holds
const MinBufferReadouts = 4

// PixelValue is the value the simulated sensor produces for pixel index
// pixel of the readout-th readout of an acquisition.  In kinetics mode the
// index runs on through the frames of a readout.
func PixelValue(readout int64, pixel int) uint16 {
	return uint16(1000 + (int64(pixel)*7+readout*13)%997)
}

// write fills one readout of g into dst.  Frame f of readout n carries
// frame tracking number n*frames+f+1.
func (g layout) write(dst []byte, n int64, since time.Duration) {
	px := g.frameSize / 2
	for f := 0; f < g.frames; f++ {
		frame := dst[f*g.frameStride : (f+1)*g.frameStride]
		for i := 0; i < px; i++ {
			binary.LittleEndian.PutUint16(frame[i*2:], PixelValue(n, f*px+i))
		}
		g.writeMetadata(frame[g.frameSize:], n*int64(g.frames)+int64(f)+1, since)
	}
}

func (g layout) writeMetadata(dst []byte, track int64, since time.Duration) {
	off := 0
	end := since - time.Duration(g.readoutTime*float64(time.Millisecond))
	start := end - time.Duration(g.exposure*float64(time.Millisecond))
	ticks := func(d time.Duration) uint64 {
		if d < 0 {
			return 0
		}
		return uint64(d.Seconds() * float64(g.resolution))
	}
	if g.stampStart {
		putN(dst[off:off+g.stampBytes], ticks(start))
		off += g.stampBytes
	}
	if g.stampEnd {
		putN(dst[off:off+g.stampBytes], ticks(end))
		off += g.stampBytes
	}
	if g.track {
		putN(dst[off:off+g.trackBytes], uint64(track))
	}
}

// putN writes v little endian into len(b) bytes
func putN(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// acquisition is one asynchronous acquisition.  The producer goroutine owns
// the slots past held+pending; the consumer owns the held slots until its
// next wait or callback return.
type acquisition struct {
	h        picam.Handle
	updated  picam.AcquisitionUpdatedFunc
	stateFns map[picam.AcquisitionState]picam.AcquisitionStateUpdatedFunc
	inject   func() picam.AcquisitionErrorsMask
	target   int64 // 0 runs until stopped
	lim      *rate.Limiter
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	start    time.Time

	mu        sync.Mutex
	g         layout
	ring      []byte
	depth     int
	first     int
	held      int
	pending   int
	errs      picam.AcquisitionErrorsMask
	producing bool
	finished  bool
	counters  picam.AcquisitionStateCounters
	changed   chan struct{}
}

func newLimiter(g layout) *rate.Limiter {
	lim := rate.NewLimiter(rate.Limit(g.rate()), 1)
	// the first readout takes a full period
	lim.Allow()
	return lim
}

func (a *acquisition) isRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.producing || (a.updated != nil && !a.finished)
}

func (a *acquisition) requestStop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func (a *acquisition) retime(g layout) {
	a.mu.Lock()
	a.g.exposure = g.exposure
	r := a.g.rate()
	a.mu.Unlock()
	a.lim.SetLimit(rate.Limit(r))
}

// notifyLocked wakes every waiter
func (a *acquisition) notifyLocked() {
	close(a.changed)
	a.changed = make(chan struct{})
}

func (a *acquisition) releaseLocked() {
	a.first = (a.first + a.held) % a.depth
	a.held = 0
}

func (a *acquisition) statusLocked() picam.AcquisitionStatus {
	return picam.AcquisitionStatus{
		Running:     a.producing || a.pending > 0,
		Errors:      a.errs,
		ReadoutRate: a.g.rate(),
	}
}

// takeLocked hands the contiguous pending readouts to the consumer
func (a *acquisition) takeLocked() (picam.AvailableData, picam.AcquisitionStatus, bool) {
	a.releaseLocked()
	if a.pending == 0 {
		return picam.AvailableData{}, picam.AcquisitionStatus{}, false
	}
	n := a.pending
	if a.first+n > a.depth {
		n = a.depth - a.first
	}
	stride := a.g.stride
	data := picam.AvailableData{Data: a.ring[a.first*stride : (a.first+n)*stride], ReadoutCount: int64(n)}
	a.held = n
	a.pending -= n
	st := a.statusLocked()
	a.errs = 0
	return data, st, true
}

func (a *acquisition) fireState(s picam.AcquisitionState) {
	a.mu.Lock()
	switch s {
	case picam.ReadoutStarted:
		a.counters.ReadoutStarted++
	case picam.ReadoutEnded:
		a.counters.ReadoutEnded++
	}
	counters, errs := a.counters, a.errs
	a.mu.Unlock()
	if fn := a.stateFns[s]; fn != nil {
		fn(a.h, s, counters, errs)
	}
}

func (a *acquisition) run() {
	defer close(a.done)
	defer a.requestStop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for n := int64(0); a.target == 0 || n < a.target; n++ {
		a.fireState(picam.ReadoutStarted)
		if err := a.lim.Wait(ctx); err != nil {
			break
		}
		mask := a.inject()
		a.mu.Lock()
		a.errs |= mask
		if mask.Fatal() {
			a.mu.Unlock()
			break
		}
		if a.held+a.pending >= a.depth {
			a.errs |= picam.DataLost
		} else {
			slot := (a.first + a.held + a.pending) % a.depth
			a.g.write(a.ring[slot*a.g.stride:(slot+1)*a.g.stride], n, time.Since(a.start))
			a.pending++
		}
		a.notifyLocked()
		a.mu.Unlock()
		a.fireState(picam.ReadoutEnded)
		if a.updated != nil {
			a.deliver()
		}
	}

	a.mu.Lock()
	a.producing = false
	a.notifyLocked()
	a.mu.Unlock()
	if a.updated != nil {
		for a.deliver() {
		}
		a.final()
	}
}

// deliver runs the callback over pending readouts.  It reports whether anything was delivered.
func (a *acquisition) deliver() bool {
	a.mu.Lock()
	data, st, ok := a.takeLocked()
	a.mu.Unlock()
	if !ok {
		return false
	}
	a.updated(a.h, data, st)
	a.mu.Lock()
	a.releaseLocked()
	if !st.Running {
		a.finished = true
		a.notifyLocked()
	}
	a.mu.Unlock()
	return true
}

// final sends the terminating update if the last delivery did not carry it
func (a *acquisition) final() {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	st := a.statusLocked()
	a.errs = 0
	a.mu.Unlock()
	a.updated(a.h, picam.AvailableData{}, st)
	a.mu.Lock()
	a.finished = true
	a.notifyLocked()
	a.mu.Unlock()
}

// wait blocks until readouts are available, the acquisition ends or timeout
// elapses.  A negative timeout waits forever.
func (a *acquisition) wait(timeout time.Duration) (picam.AvailableData, picam.AcquisitionStatus, error) {
	var expire <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}
	a.mu.Lock()
	for {
		if data, st, ok := a.takeLocked(); ok {
			a.mu.Unlock()
			return data, st, nil
		}
		if !a.producing {
			st := a.statusLocked()
			a.errs = 0
			a.mu.Unlock()
			return picam.AvailableData{}, st, nil
		}
		ch := a.changed
		a.mu.Unlock()
		select {
		case <-ch:
		case <-expire:
			a.mu.Lock()
			st := a.statusLocked()
			a.mu.Unlock()
			return picam.AvailableData{}, st, picam.TimeOutOccurred
		}
		a.mu.Lock()
	}
}

func (c *camera) takeInjected() picam.AcquisitionErrorsMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.inject
	c.inject = 0
	return m
}

// Acquire runs a synchronous acquisition of readouts readouts.  On timeout
// the readouts completed so far are returned with TimeOutOccurred.
func (l *Library) Acquire(h picam.Handle, readouts int64, timeout time.Duration) (picam.AvailableData, picam.AcquisitionErrorsMask, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.AvailableData{}, 0, err
	}
	if readouts < 1 {
		return picam.AvailableData{}, 0, picam.InvalidReadoutCount
	}
	c.mu.Lock()
	if c.runningLocked() {
		c.mu.Unlock()
		return picam.AvailableData{}, 0, picam.AcquisitionInProgress
	}
	if !c.committedLocked() {
		c.mu.Unlock()
		return picam.AvailableData{}, 0, picam.ParametersNotCommitted
	}
	g := layoutOf(c.s, c.committed)
	size := int(readouts) * g.stride
	if cap(c.syncBuf) < size {
		c.syncBuf = make([]byte, size)
	}
	buf := c.syncBuf[:size]
	stateFns := make(map[picam.AcquisitionState]picam.AcquisitionStateUpdatedFunc, len(c.stateFns))
	for k, v := range c.stateFns {
		stateFns[k] = v
	}
	c.mu.Unlock()

	ctx := context.Background()
	if timeout >= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	lim := newLimiter(g)
	var (
		counters picam.AcquisitionStateCounters
		mask     picam.AcquisitionErrorsMask
		start    = time.Now()
	)
	fire := func(s picam.AcquisitionState) {
		if fn := stateFns[s]; fn != nil {
			fn(h, s, counters, mask)
		}
	}
	for n := int64(0); n < readouts; n++ {
		counters.ReadoutStarted++
		fire(picam.ReadoutStarted)
		if err := lim.Wait(ctx); err != nil {
			return picam.AvailableData{Data: buf[:int(n)*g.stride], ReadoutCount: n}, mask, picam.TimeOutOccurred
		}
		m := c.takeInjected()
		mask |= m
		switch {
		case m&picam.ConnectionLost != 0:
			return picam.AvailableData{Data: buf[:int(n)*g.stride], ReadoutCount: n}, mask, picam.DeviceDisconnected
		case m&picam.CameraFaulted != 0:
			return picam.AvailableData{Data: buf[:int(n)*g.stride], ReadoutCount: n}, mask, picam.CameraFaultedError
		}
		g.write(buf[int(n)*g.stride:int(n+1)*g.stride], n, time.Since(start))
		counters.ReadoutEnded++
		fire(picam.ReadoutEnded)
	}
	return picam.AvailableData{Data: buf, ReadoutCount: readouts}, mask, nil
}

// StartAcquisition begins an asynchronous acquisition of the committed ReadoutCount
// readouts, or until stopped when ReadoutCount is 0
func (l *Library) StartAcquisition(h picam.Handle) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return picam.AcquisitionInProgress
	}
	if !c.committedLocked() {
		return picam.ParametersNotCommitted
	}
	g := layoutOf(c.s, c.committed)
	depth := 0
	if c.bufSize > 0 {
		depth = int(c.bufSize / int64(g.stride))
		if depth < 1 {
			return picam.InvalidAcquisitionBuffer
		}
	} else {
		depth = DefaultBufferBytes / g.stride
		if depth < MinBufferReadouts {
			depth = MinBufferReadouts
		}
	}
	a := &acquisition{
		h:         h,
		updated:   c.updated,
		stateFns:  make(map[picam.AcquisitionState]picam.AcquisitionStateUpdatedFunc, len(c.stateFns)),
		inject:    c.takeInjected,
		target:    c.committed[picam.ReadoutCount].(int64),
		lim:       newLimiter(g),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		start:     time.Now(),
		g:         g,
		ring:      make([]byte, depth*g.stride),
		depth:     depth,
		producing: true,
		changed:   make(chan struct{}),
	}
	for k, v := range c.stateFns {
		a.stateFns[k] = v
	}
	c.acq = a
	go a.run()
	return nil
}

// StopAcquisition asks the running acquisition to end.  It does not wait;
// the end is observed through WaitForAcquisitionUpdate or IsAcquisitionRunning.
func (l *Library) StopAcquisition(h picam.Handle) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	a := c.acq
	c.mu.Unlock()
	if a != nil {
		a.requestStop()
	}
	return nil
}

// IsAcquisitionRunning is true until the producer stops, and in callback
// mode until the final update has been delivered
func (l *Library) IsAcquisitionRunning(h picam.Handle) (bool, error) {
	c, err := l.camera(h)
	if err != nil {
		return false, err
	}
	return c.running(), nil
}

// WaitForAcquisitionUpdate blocks for the next readouts of an asynchronous acquisition
func (l *Library) WaitForAcquisitionUpdate(h picam.Handle, timeout time.Duration) (picam.AvailableData, picam.AcquisitionStatus, error) {
	c, err := l.camera(h)
	if err != nil {
		return picam.AvailableData{}, picam.AcquisitionStatus{}, err
	}
	c.mu.Lock()
	a := c.acq
	registered := c.updated != nil
	c.mu.Unlock()
	if registered {
		return picam.AvailableData{}, picam.AcquisitionStatus{}, picam.AcquisitionUpdatedHandlerRegistered
	}
	if a == nil {
		return picam.AvailableData{}, picam.AcquisitionStatus{}, picam.AcquisitionNotInProgress
	}
	return a.wait(timeout)
}

// SetAcquisitionBuffer sizes the circular buffer for the next acquisition.  0 restores the default.
func (l *Library) SetAcquisitionBuffer(h picam.Handle, size int64) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if size < 0 {
		return picam.InvalidAcquisitionBuffer
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return picam.AcquisitionInProgress
	}
	c.bufSize = size
	return nil
}

// RegisterForAcquisitionUpdated routes updates of the next acquisitions to fn
func (l *Library) RegisterForAcquisitionUpdated(h picam.Handle, fn picam.AcquisitionUpdatedFunc) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if fn == nil {
		return picam.InvalidPointer
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return picam.AcquisitionInProgress
	}
	c.updated = fn
	return nil
}

// UnregisterForAcquisitionUpdated returns the camera to polling mode
func (l *Library) UnregisterForAcquisitionUpdated(h picam.Handle) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return picam.AcquisitionInProgress
	}
	c.updated = nil
	return nil
}

// RegisterForAcquisitionStateUpdated calls fn each time s is reached
func (l *Library) RegisterForAcquisitionStateUpdated(h picam.Handle, s picam.AcquisitionState, fn picam.AcquisitionStateUpdatedFunc) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	if fn == nil {
		return picam.InvalidPointer
	}
	if s != picam.ReadoutStarted && s != picam.ReadoutEnded {
		return picam.EnumerationValueNotDefined
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return picam.AcquisitionInProgress
	}
	c.stateFns[s] = fn
	return nil
}

// UnregisterForAcquisitionStateUpdated removes the handler for s
func (l *Library) UnregisterForAcquisitionStateUpdated(h picam.Handle, s picam.AcquisitionState) error {
	c, err := l.camera(h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return picam.AcquisitionInProgress
	}
	delete(c.stateFns, s)
	return nil
}

var _ picam.Library = (*Library)(nil)
