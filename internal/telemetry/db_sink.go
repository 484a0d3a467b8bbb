package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sabinquant/hftbt/internal/dbclient"
)

// DBConsumer drains a Sink's DB ring, acquires a connection from the
// shared pool for the duration of the write, and sends a line-protocol
// record. A send failure discards the in-flight record; nothing is
// retried within the run.
type DBConsumer struct {
	measurement string
	instrument  string
	pool        *dbclient.Pool
	logger      *zap.Logger
	dequeued    uint64
	dropped     uint64
}

func NewDBConsumer(measurement, instrument string, pool *dbclient.Pool, logger *zap.Logger) *DBConsumer {
	return &DBConsumer{measurement: measurement, instrument: instrument, pool: pool, logger: logger}
}

func (c *DBConsumer) Run(ctx context.Context, sink *Sink) {
	ring := sink.DBRing()
	for {
		rec, ok := ring.Pop()
		if ok {
			c.send(ctx, rec)
			continue
		}
		if sink.Stopped() {
			for _, rec := range ring.Drain() {
				c.send(ctx, rec)
			}
			return
		}
		time.Sleep(time.Microsecond * 50)
	}
}

// send is the sole discard point for a record pulled off the DB ring: a
// nil pool (no DB configured), Acquire returning nil (the pool was shut
// down, or ctx was already done when no connection was free), or a failed
// write all count as a drop so enqueued always
// equals dequeued + dropped, the invariant the file consumer's ring-drop
// counter already holds (§8).
func (c *DBConsumer) send(ctx context.Context, rec Record) {
	if c.pool == nil {
		c.dropped++
		return
	}
	conn := c.pool.Acquire(ctx)
	if conn == nil {
		c.dropped++
		return
	}
	defer c.pool.Release(conn)

	line := dbclient.EncodeLine(c.measurement, c.instrument, rec.Bid, rec.Ask, rec.Position, rec.TradeCount, rec.PnL, rec.TimestampNS)
	if err := conn.Send(ctx, line); err != nil {
		c.logger.Warn("db telemetry send dropped record", zap.Error(err))
		c.dropped++
		return
	}
	c.dequeued++
}

func (c *DBConsumer) Dequeued() uint64 { return c.dequeued }

// Dropped reports records pulled off the DB ring but never persisted:
// distinct from Sink.DBDropped, which counts records the ring itself
// refused because it was full.
func (c *DBConsumer) Dropped() uint64 { return c.dropped }
