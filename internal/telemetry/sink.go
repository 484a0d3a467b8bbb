package telemetry

import (
	"sync/atomic"

	"github.com/sabinquant/hftbt/internal/spsc"
)

// ringCapacity must be a power of two; sized generously above the
// expected per-message log rate so overflow only happens under sustained
// sink stalls, not ordinary bursts.
const ringCapacity = 1 << 16

// Sink is the producer side of a strategy's telemetry fan-out: one
// replay thread pushes records, which land independently in the file
// consumer's ring and the DB consumer's ring. A ring full on either side
// only drops for that consumer; the other still receives the record.
type Sink struct {
	fileRing *spsc.Ring[Record]
	dbRing   *spsc.Ring[Record]
	stopped  atomic.Bool
}

// NewSink builds a sink with the default ring capacity.
func NewSink() *Sink {
	return NewSinkWithCapacity(ringCapacity)
}

// NewSinkWithCapacity builds a sink whose ring capacity comes from
// internal/config.TelemetryConfig.RingCapacity rather than the default.
// capacity must be a power of two; internal/config.LoadConfig enforces
// this before a Config ever reaches here.
func NewSinkWithCapacity(capacity int) *Sink {
	return &Sink{
		fileRing: spsc.New[Record](capacity),
		dbRing:   spsc.New[Record](capacity),
	}
}

// Push enqueues rec into both consumer rings. Never blocks: a full ring
// drops and increments that ring's own counter.
func (s *Sink) Push(rec Record) {
	s.fileRing.Push(rec)
	s.dbRing.Push(rec)
}

// Stop sets the cooperative stop flag consumers check once they have
// drained the ring to empty.
func (s *Sink) Stop() { s.stopped.Store(true) }

func (s *Sink) Stopped() bool { return s.stopped.Load() }

func (s *Sink) FileRing() *spsc.Ring[Record] { return s.fileRing }
func (s *Sink) DBRing() *spsc.Ring[Record]   { return s.dbRing }

// FileDropped and DBDropped report the at-most-once accounting the
// coordinator surfaces as metrics: enqueued == dequeued + dropped.
func (s *Sink) FileDropped() uint64 { return s.fileRing.Dropped() }
func (s *Sink) DBDropped() uint64   { return s.dbRing.Dropped() }
