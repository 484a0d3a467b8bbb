package strategy

import (
	"github.com/sabinquant/hftbt/internal/book"
	"github.com/sabinquant/hftbt/internal/telemetry"
)

// ImbalanceStrategy trades mean-reversion on order-book imbalance: it
// buys when the book is bid-heavy and trading below VWAP, and sells when
// ask-heavy and trading above VWAP, capped at one unit of position either
// way.
type ImbalanceStrategy struct {
	State
	depth int
}

func NewImbalanceStrategy(instrument string, sink *telemetry.Sink, depth int) *ImbalanceStrategy {
	return &ImbalanceStrategy{
		State: NewState(instrument, sink),
		depth: depth,
	}
}

func (s *ImbalanceStrategy) Name() string         { return "imbalance_strat" }
func (s *ImbalanceStrategy) RequiresFitting() bool { return false }

func (s *ImbalanceStrategy) OnBookUpdate(ob *book.Orderbook) {
	ob.CalculateVols(s.depth)
	imbalance := ob.CalculateImbalance()

	mid, okMid := ob.MidPrice()
	if !okMid {
		return
	}
	vwap := 0.0
	if ob.VWAPDen() > 0 {
		vwap = ob.VWAPNum() / ob.VWAPDen()
	}

	switch {
	case imbalance > 0 && mid < vwap && s.Position() < s.MaxPos:
		ask, ok := ob.BestAskPrice()
		if !ok {
			return
		}
		s.ExecuteTrade(book.Bid, ask, 1)
	case imbalance < 0 && mid > vwap && s.Position() > -s.MaxPos:
		bid, ok := ob.BestBidPrice()
		if !ok {
			return
		}
		s.ExecuteTrade(book.Ask, bid, 1)
	default:
		return
	}

	s.updateTheoValues(ob)
	s.calculatePnL()
}

func (s *ImbalanceStrategy) FitModel(ob *book.Orderbook, trainMessages []book.Message) {
	// no training phase: imbalance thresholds are fixed constants
}

func (s *ImbalanceStrategy) ClosePositions(ob *book.Orderbook, timestampNS uint64) {
	s.State.ClosePositions(ob, timestampNS, s.ExecuteTrade)
}
