package acquire

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nasa-jpl/picamlab/picam"
)

// Reporter accumulates readouts and acquisition errors per camera and logs a
// summary on every tick where something went wrong
type Reporter struct {
	// Interval is the time between summaries
	Interval time.Duration

	mu       sync.Mutex
	readouts map[string]int64
	errs     map[string]map[picam.AcquisitionErrorsMask]int
	dirty    bool
}

// NewReporter returns a reporter that summarizes every interval
func NewReporter(interval time.Duration) *Reporter {
	return &Reporter{
		Interval: interval,
		readouts: make(map[string]int64),
		errs:     make(map[string]map[picam.AcquisitionErrorsMask]int),
	}
}

// Observe records one update from camera
func (r *Reporter) Observe(camera string, count int, st picam.AcquisitionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readouts[camera] += int64(count)
	for _, b := range st.Errors.Bits() {
		m := r.errs[camera]
		if m == nil {
			m = make(map[picam.AcquisitionErrorsMask]int)
			r.errs[camera] = m
		}
		m[b]++
		r.dirty = true
	}
}

// Readouts returns the readouts seen from camera
func (r *Reporter) Readouts(camera string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readouts[camera]
}

// Errors returns how many updates from camera carried error bit b
func (r *Reporter) Errors(camera string, b picam.AcquisitionErrorsMask) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[camera][b]
}

// Summary is one line per camera, sorted by name
func (r *Reporter) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.readouts))
	for k := range r.readouts {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s: %d readouts", n, r.readouts[n])
		for _, bit := range (picam.AcquisitionErrorsMask(0xFF)).Bits() {
			if c := r.errs[n][bit]; c > 0 {
				fmt.Fprintf(&b, ", %s x%d", bit, c)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Run logs the summary every Interval while errors keep arriving, until ctx is done
func (r *Reporter) Run(ctx context.Context) {
	if r.Interval <= 0 {
		return
	}
	tick := time.NewTicker(r.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			r.mu.Lock()
			dirty := r.dirty
			r.dirty = false
			r.mu.Unlock()
			if dirty {
				log.Print(r.Summary())
			}
		}
	}
}
