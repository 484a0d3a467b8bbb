// Package replay owns the single-threaded per-instrument message loop:
// feeding a book, calling into a strategy on top-of-book changes, and
// running the close-positions/reset sequence at the end of a run or day.
package replay

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sabinquant/hftbt/internal/book"
	"github.com/sabinquant/hftbt/internal/strategy"
)

// Driver replays one instrument's message vector against its own book
// and, optionally, a strategy. It never shares book state with any other
// goroutine: all mutation happens on whichever goroutine calls Run.
type Driver struct {
	Instrument string
	Book       *book.Orderbook
	Strategy   strategy.Strategy
	Logger     *zap.Logger

	stop atomic.Bool
}

func NewDriver(instrument string, ob *book.Orderbook, strat strategy.Strategy, logger *zap.Logger) *Driver {
	return &Driver{Instrument: instrument, Book: ob, Strategy: strat, Logger: logger}
}

// Stop requests cooperative cancellation; checked once per message.
func (d *Driver) Stop() { d.stop.Store(true) }

// Run replays messages in order, calling the strategy on any message
// that changes the top of book. On exit — stop flag observed or the
// vector exhausted — it calls ClosePositions then Reset if a strategy is
// configured.
func (d *Driver) Run(messages []book.Message) RunStats {
	return d.run(messages, true)
}

// runDay is Run with the final strategy.Reset made optional, used by
// MultiDayDriver, which skips that Reset for a strategy that opted into
// carrying state across day boundaries. The book is still reset every day regardless: book
// state is never meaningful across a reset boundary.
func (d *Driver) runDay(messages []book.Message, resetStrategy bool) RunStats {
	return d.run(messages, resetStrategy)
}

func (d *Driver) run(messages []book.Message, resetStrategy bool) RunStats {
	var stats RunStats
	var lastBid, lastAsk int32
	haveLast := false

	for _, msg := range messages {
		if d.stop.Load() {
			break
		}

		if err := d.Book.ProcessMessage(msg); err != nil {
			// Cancel-on-miss and similar book-state violations are
			// logged and dropped, never fatal (§7).
			d.Logger.Warn("book message dropped",
				zap.String("instrument", d.Instrument),
				zap.String("action", msg.Action.String()),
				zap.Error(err))
			stats.Dropped++
			continue
		}
		stats.Processed++

		if d.Strategy == nil {
			continue
		}

		bid, _ := d.Book.BestBidPrice()
		ask, _ := d.Book.BestAskPrice()
		topChanged := !haveLast || bid != lastBid || ask != lastAsk
		lastBid, lastAsk, haveLast = bid, ask, true

		if topChanged {
			d.Strategy.OnBookUpdate(d.Book)
			d.Strategy.LogStats(d.Book, msg.TimestampNS)
		}
	}

	if d.Strategy != nil {
		lastTS := uint64(0)
		if len(messages) > 0 {
			lastTS = messages[len(messages)-1].TimestampNS
		}
		d.Strategy.ClosePositions(d.Book, lastTS)
		stats.FinalPosition = d.Strategy.Position()
		stats.FinalPnL = d.Strategy.PnL()
		if resetStrategy {
			d.Strategy.Reset()
		}
	}
	d.Book.Reset()

	return stats
}

// RunStats summarizes one Run call for the coordinator and run ledger.
type RunStats struct {
	Processed     int
	Dropped       int
	FinalPosition int32
	FinalPnL      float64
}
