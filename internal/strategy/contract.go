// Package strategy defines the pluggable trading-logic contract the
// replay driver calls into, and the two concrete variants shipped with
// the backtester: an imbalance mean-reversion strategy and a
// linear-model-driven strategy fit from training messages.
package strategy

import "github.com/sabinquant/hftbt/internal/book"

// Strategy is the capability set the replay driver dispatches into. All
// variants are driven uniformly; execute_trade must not mutate book
// state, only the strategy's own position/PnL bookkeeping.
type Strategy interface {
	// Name identifies the strategy for logging and file naming.
	Name() string

	// RequiresFitting reports whether FitModel must run against training
	// messages before the replay starts.
	RequiresFitting() bool

	// OnBookUpdate is called after a message changes the top of book.
	OnBookUpdate(ob *book.Orderbook)

	// ExecuteTrade records a fill at price for size on the given side.
	ExecuteTrade(side book.Side, price int32, size int32)

	// LogStats emits one telemetry record for the current state.
	LogStats(ob *book.Orderbook, timestampNS uint64)

	// FitModel trains the strategy from a vector of training messages.
	FitModel(ob *book.Orderbook, trainMessages []book.Message)

	// ClosePositions drives position to zero by simulating fills at the
	// opposite best, used at end-of-run before Reset.
	ClosePositions(ob *book.Orderbook, timestampNS uint64)

	// Reset clears per-run state. Implementations that want to preserve
	// fitted parameters across days must not clear them here.
	Reset()

	// Position and PnL expose the current state for the coordinator and
	// the run ledger.
	Position() int32
	PnL() float64
}
