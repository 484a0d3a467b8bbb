package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/sabinquant/hftbt/internal/spsc"
)

// fileBufferSize is the process-local byte buffer the file consumer
// accumulates CSV lines into before flushing to the underlying writer
// (§4.7: ~10 MiB).
const fileBufferSize = 10 << 20

// LinePublisher receives a copy of every formatted CSV line as it is
// written, for a local live-tail dashboard. Implemented by
// internal/adminapi's TailHub; kept as an interface here so telemetry
// does not depend on the admin HTTP surface.
type LinePublisher interface {
	Publish(line string)
}

// FileConsumer drains a Sink's file ring, formats each record as a CSV
// line, and buffers it before writing to w (normally a gzip-compressed
// run log file).
type FileConsumer struct {
	ring     *spsc.Ring[Record]
	ts       *TimestampFormatter
	gz       *gzip.Writer
	buf      *bufio.Writer
	logger   *zap.Logger
	tail     LinePublisher
	dequeued uint64
}

// NewFileConsumer builds a consumer with the default write-buffer size.
func NewFileConsumer(w io.Writer, sink *Sink, logger *zap.Logger) *FileConsumer {
	return NewFileConsumerWithBufferSize(w, sink, logger, fileBufferSize)
}

// NewFileConsumerWithBufferSize builds a consumer whose write-buffer size
// comes from internal/config.TelemetryConfig.FileBufferSize rather than
// the default.
func NewFileConsumerWithBufferSize(w io.Writer, sink *Sink, logger *zap.Logger, bufferSize int) *FileConsumer {
	gz := gzip.NewWriter(w)
	return &FileConsumer{
		ring:   sink.FileRing(),
		ts:     NewTimestampFormatter(),
		gz:     gz,
		buf:    bufio.NewWriterSize(gz, bufferSize),
		logger: logger,
	}
}

// SetTail attaches an optional live-tail publisher; nil (the default)
// disables tailing with no extra cost on the write path.
func (c *FileConsumer) SetTail(tail LinePublisher) { c.tail = tail }

// Run drains the ring until sink reports stopped and the ring is empty,
// writing every CSV line it sees. It returns once fully drained so the
// caller can join it during shutdown.
func (c *FileConsumer) Run(sink *Sink) error {
	for {
		rec, ok := c.ring.Pop()
		if ok {
			c.writeRecord(rec)
			continue
		}
		if sink.Stopped() {
			for _, rec := range c.ring.Drain() {
				c.writeRecord(rec)
			}
			return c.Close()
		}
		time.Sleep(time.Microsecond * 50)
	}
}

func (c *FileConsumer) writeRecord(rec Record) {
	line := fmt.Sprintf("%s,%d,%d,%d,%d,%.4f\n",
		c.ts.Format(rec.TimestampNS), rec.Bid, rec.Ask, rec.Position, rec.TradeCount, rec.PnL)
	if _, err := c.buf.WriteString(line); err != nil {
		c.logger.Error("file telemetry write failed", zap.Error(err))
		return
	}
	c.dequeued++
	if c.tail != nil {
		c.tail.Publish(line)
	}
}

func (c *FileConsumer) Dequeued() uint64 { return c.dequeued }

func (c *FileConsumer) Close() error {
	if err := c.buf.Flush(); err != nil {
		return err
	}
	return c.gz.Close()
}
