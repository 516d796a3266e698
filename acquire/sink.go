package acquire

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
)

// Event is one acquisition update, copied off the library's thread
type Event struct {
	// Camera names the device the update came from
	Camera string

	// Seq numbers the events of one sink from 1
	Seq int64

	// View owns its memory
	View readout.View

	// Status is the status reported with the update
	Status picam.AcquisitionStatus

	// Time is when the callback ran
	Time time.Time
}

// Final is true for the update that ends an acquisition
func (e Event) Final() bool {
	return !e.Status.Running
}

// Sink turns acquisition callbacks into a stream of Events.
//
// The callback never blocks.  When the consumer falls behind, events are
// dropped and counted, except the final event of an acquisition, which evicts
// the oldest queued event if it has to.
type Sink struct {
	name    string
	ch      chan Event
	seq     int64
	dropped int64
}

// NewSink returns a sink with room for depth queued events
func NewSink(name string, depth int) *Sink {
	if depth < 1 {
		depth = 1
	}
	return &Sink{name: name, ch: make(chan Event, depth)}
}

// C is the event stream
func (s *Sink) C() <-chan Event {
	return s.ch
}

// Dropped is the number of events discarded because the consumer was behind
func (s *Sink) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// Callback is the function to register with the device.  It runs on the
// library's thread and only copies and sends.
func (s *Sink) Callback(v readout.View, st picam.AcquisitionStatus) {
	ev := Event{
		Camera: s.name,
		Seq:    atomic.AddInt64(&s.seq, 1),
		View:   v.Clone(),
		Status: st,
		Time:   time.Now(),
	}
	if ev.Final() {
		s.deliver(ev)
		return
	}
	select {
	case s.ch <- ev:
	default:
		atomic.AddInt64(&s.dropped, 1)
	}
}

// deliver sends ev, evicting queued events until it fits
func (s *Sink) deliver(ev Event) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
			atomic.AddInt64(&s.dropped, 1)
		default:
		}
	}
}

// Consume hands events to fn until the final event of an acquisition, which
// fn also sees, or until ctx is done
func (s *Sink) Consume(ctx context.Context, fn func(Event)) (Stats, error) {
	var st Stats
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			st.Elapsed = time.Since(start)
			return st, ctx.Err()
		case ev := <-s.ch:
			st.observe(ev.View.Count, ev.Status)
			if fn != nil {
				fn(ev)
			}
			if ev.Final() {
				st.Elapsed = time.Since(start)
				if ev.Status.Errors.Fatal() {
					return st, &FaultError{Camera: ev.Camera, Mask: ev.Status.Errors, Got: st.Readouts}
				}
				return st, nil
			}
		}
	}
}
