package readout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/snksoft/crc"
)

var crcTable = crc.NewTable(crc.CRC32)

// Checksum is the CRC-32 of b
func Checksum(b []byte) uint32 {
	return crcTable.CRC32(crcTable.UpdateCrc(crcTable.InitCrc(), b))
}

// WriteRaw writes the Count*Stride bytes of v to w with no header
func WriteRaw(w io.Writer, v View) (int64, error) {
	n, err := w.Write(v.Bytes())
	return int64(n), err
}

// ReadRaw memory-maps a raw dump written with layout l and copies it into a View.
// The file must hold a whole number of readouts.
func ReadRaw(path string, l Layout) (View, error) {
	if err := l.Validate(); err != nil {
		return View{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return View{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return View{}, err
	}
	if st.Size()%int64(l.Stride) != 0 {
		return View{}, fmt.Errorf("readout: %s is %d bytes, not a multiple of stride %d", path, st.Size(), l.Stride)
	}
	if st.Size() == 0 {
		return View{Layout: l}, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return View{}, err
	}
	defer m.Unmap()
	data := make([]byte, len(m))
	copy(data, m)
	return View{Layout: l, Data: data, Count: len(data) / l.Stride}, nil
}

// RawFilename is the recorder dump name data<time>-<cols>x<rows>-<frames>-<bits>bit.raw.
// The time is UTC, year then day then month.
func RawFilename(t time.Time, cols, rows, frames, bits int) string {
	return fmt.Sprintf("data%s-%dx%d-%d-%dbit.raw", t.UTC().Format("20060201-150405"), cols, rows, frames, bits)
}

// ErrWriterClosed is returned by RawWriter.Write after Close
var ErrWriterClosed = errors.New("readout: raw writer closed")

// RawSummary describes everything a RawWriter wrote
type RawSummary struct {
	Readouts int64
	Bytes    int64
	CRC32    uint32
}

// RawWriter appends readouts to a file on its own goroutine so the
// acquisition loop only pays for a copy.  It is safe for one producer.
type RawWriter struct {
	w      io.Writer
	q      chan []byte
	done   chan struct{}
	once   sync.Once
	closed bool
	stats  RawSummary
	crc    uint64

	mu  sync.Mutex
	err error
}

// NewRawWriter starts a writer with room for depth queued readout batches
func NewRawWriter(w io.Writer, depth int) *RawWriter {
	if depth < 1 {
		depth = 1
	}
	rw := &RawWriter{w: w, q: make(chan []byte, depth), done: make(chan struct{}), crc: crcTable.InitCrc()}
	go rw.loop()
	return rw
}

func (rw *RawWriter) loop() {
	defer close(rw.done)
	for b := range rw.q {
		if rw.Err() != nil {
			continue
		}
		n, err := rw.w.Write(b)
		rw.stats.Bytes += int64(n)
		rw.crc = crcTable.UpdateCrc(rw.crc, b[:n])
		if err != nil {
			rw.mu.Lock()
			rw.err = err
			rw.mu.Unlock()
		}
	}
}

// Err returns the first write error
func (rw *RawWriter) Err() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.err
}

// Write copies the readouts of v and queues them.  It blocks when the queue is full.
func (rw *RawWriter) Write(v View) error {
	if err := rw.Err(); err != nil {
		return err
	}
	if rw.closed {
		return ErrWriterClosed
	}
	rw.stats.Readouts += int64(v.Count)
	rw.q <- append([]byte(nil), v.Bytes()...)
	return nil
}

// Close drains the queue and returns what was written
func (rw *RawWriter) Close() (RawSummary, error) {
	rw.once.Do(func() {
		rw.closed = true
		close(rw.q)
	})
	<-rw.done
	s := rw.stats
	s.CRC32 = crcTable.CRC32(rw.crc)
	return s, rw.Err()
}
