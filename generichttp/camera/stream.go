package camera

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nasa-jpl/picamlab/acquire"
	"github.com/nasa-jpl/picamlab/camera"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/readout"
)

var (
	pingInterval = 30 * time.Second
	pingTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
)

// SinkDepth is the number of updates queued between the library and the stream
var SinkDepth = 8

// ErrNotStreaming is returned by Latest before the first streamed readout
var ErrNotStreaming = errors.New("no streamed readout yet")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Update is the JSON summary of one streamed update
type Update struct {
	Camera   string    `json:"camera"`
	Seq      int64     `json:"seq"`
	Readouts int       `json:"readouts"`
	Running  bool      `json:"running"`
	Errors   string    `json:"errors"`
	Rate     float64   `json:"rate"`
	Mean     float64   `json:"mean"`
	Center   [3]uint16 `json:"center"`
	Time     time.Time `json:"time"`
}

func updateOf(ev acquire.Event) Update {
	u := Update{
		Camera:   ev.Camera,
		Seq:      ev.Seq,
		Readouts: ev.View.Count,
		Running:  ev.Status.Running,
		Errors:   ev.Status.Errors.String(),
		Rate:     ev.Status.ReadoutRate,
		Time:     ev.Time,
	}
	if k := ev.View.Count - 1; k >= 0 && ev.View.Pixels() >= 3 {
		u.Mean = ev.View.Mean(k)
		u.Center = ev.View.CenterThree(k)
	}
	return u
}

// Stream runs a continuous callback acquisition and fans its updates out
// to websocket subscribers.  It keeps the latest readout for still images.
type Stream struct {
	cam     camera.Sci
	metrics *Metrics

	mu      sync.Mutex
	done    chan struct{}
	sink    *acquire.Sink
	latest  readout.View
	stats   acquire.Stats
	err     error
	subs    map[chan Update]struct{}
	dropped int64
}

// NewStream returns an idle stream over c.  m may be nil.
func NewStream(c camera.Sci, m *Metrics) *Stream {
	return &Stream{cam: c, metrics: m, subs: make(map[chan Update]struct{})}
}

// Running is true between Start and the final update
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Start begins a continuous acquisition.  Starting a running stream is a no-op.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil
	}
	n, err := s.cam.LargeInt(picam.ReadoutCount)
	if err != nil {
		return err
	}
	if n != 0 {
		if err = s.cam.SetLargeInt(picam.ReadoutCount, 0); err != nil {
			return err
		}
	}
	if err = s.cam.Commit(); err != nil {
		return err
	}
	sink := acquire.NewSink(s.cam.String(), SinkDepth)
	if err = s.cam.RegisterCallback(sink.Callback); err != nil {
		return err
	}
	if err = s.cam.Start(); err != nil {
		s.cam.UnregisterCallback()
		return err
	}
	s.sink = sink
	s.done = make(chan struct{})
	s.err = nil
	go s.run(sink, s.done)
	log.Printf("%s: streaming", s.cam)
	return nil
}

func (s *Stream) run(sink *acquire.Sink, done chan struct{}) {
	st, err := sink.Consume(context.Background(), s.publish)
	if derr := s.cam.Drain(acquire.DefaultDrainTimeout); derr != nil && err == nil {
		err = derr
	}
	if uerr := s.cam.UnregisterCallback(); uerr != nil && err == nil {
		err = uerr
	}
	s.mu.Lock()
	s.stats = st
	s.err = err
	s.done = nil
	s.sink = nil
	s.mu.Unlock()
	close(done)
	log.Printf("%s: stream ended, %s", s.cam, st)
	if err != nil {
		log.Printf("%s: %v", s.cam, err)
	}
}

func (s *Stream) publish(ev acquire.Event) {
	s.metrics.Observe(ev.View.Count, ev.Status)
	u := updateOf(ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.View.Count > 0 {
		s.latest = ev.View
	}
	if s.sink != nil {
		d := s.sink.Dropped()
		s.metrics.Dropped(d - s.dropped)
		s.dropped = d
	}
	for ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Stop ends the acquisition and waits up to timeout for the final update
func (s *Stream) Stop(timeout time.Duration) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	if err := s.cam.Stop(); err != nil {
		return err
	}
	select {
	case <-done:
	case <-time.After(timeout):
		return picam.TimeOutOccurred
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Latest returns the last streamed readouts.  The view is owned by the caller.
func (s *Stream) Latest() (readout.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest.Count == 0 {
		return readout.View{}, ErrNotStreaming
	}
	return s.latest, nil
}

// Stats is the summary of the last stream to end
func (s *Stream) Stats() acquire.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Subscribe returns a channel of updates.  Updates are dropped while the
// channel is full.  Call the returned func to unsubscribe.
func (s *Stream) Subscribe(depth int) (<-chan Update, func()) {
	ch := make(chan Update, depth)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// Events upgrades the request to a websocket and writes one JSON Update per
// streamed update until the client goes away
func (s *Stream) Events(w http.ResponseWriter, r *http.Request) {
	wc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer wc.Close()
	ch, unsub := s.Subscribe(SinkDepth)
	defer unsub()

	// reads only serve pongs and notice the client closing
	gone := make(chan struct{})
	wc.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
	wc.SetPongHandler(func(string) error {
		return wc.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := wc.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case u := <-ch:
			wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteJSON(u); err != nil {
				return
			}
		case <-ping.C:
			wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
