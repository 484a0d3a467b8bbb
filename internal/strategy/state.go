package strategy

import (
	"github.com/sabinquant/hftbt/internal/book"
	"github.com/sabinquant/hftbt/internal/telemetry"
)

// Defaults mirror the C++ origin's per-strategy constants; both concrete
// strategies embed State and inherit them.
const (
	defaultMaxPosition = 1
	pointValue          = 2
	feesPerSide         = 1
)

// State holds the position/PnL bookkeeping and telemetry wiring shared by
// every concrete strategy. Embedding it gives a strategy Position, PnL,
// ExecuteTrade, LogStats and Reset; a strategy supplies Name,
// RequiresFitting, OnBookUpdate, FitModel, and a ClosePositions that
// passes its ExecuteTrade to State.ClosePositions.
type State struct {
	Instrument string
	MaxPos     int32

	position int32
	buyQty   int32
	sellQty  int32

	realBuyPx  int64
	realSellPx int64
	theoBuyPx  int64
	theoSellPx int64

	fees float64
	pnl  float64

	tradeCount int32
	sink       *telemetry.Sink
}

func NewState(instrument string, sink *telemetry.Sink) State {
	return State{
		Instrument: instrument,
		MaxPos:     defaultMaxPosition,
		sink:       sink,
	}
}

func (s *State) Position() int32 { return s.position }
func (s *State) PnL() float64    { return s.pnl }

// ExecuteTrade mutates position/PnL bookkeeping only; it is expected to
// never touch book state.
func (s *State) ExecuteTrade(side book.Side, price int32, size int32) {
	if side == book.Bid {
		s.position += size
		s.buyQty += size
		s.realBuyPx += int64(price) * int64(size)
	} else {
		s.position -= size
		s.sellQty += size
		s.realSellPx += int64(price) * int64(size)
	}
	s.tradeCount++
	s.fees += feesPerSide
}

// updateTheoValues and calculatePnL implement the mark-to-market formula
// from §4.5: theo_sell = best_bid*|pos| when long, theo_buy =
// best_ask*|pos| when short, zero both when flat.
func (s *State) updateTheoValues(ob *book.Orderbook) {
	switch {
	case s.position == 0:
		s.theoBuyPx, s.theoSellPx = 0, 0
	case s.position > 0:
		bid, _ := ob.BestBidPrice()
		s.theoSellPx = int64(bid) * int64(s.position)
		s.theoBuyPx = 0
	default:
		ask, _ := ob.BestAskPrice()
		s.theoBuyPx = int64(ask) * int64(-s.position)
		s.theoSellPx = 0
	}
}

func (s *State) calculatePnL() {
	s.pnl = float64(pointValue)*float64(s.realSellPx+s.theoSellPx-s.realBuyPx-s.theoBuyPx) - s.fees
}

// LogStats pushes one telemetry record for the current book/strategy
// state into the sink's producer side.
func (s *State) LogStats(ob *book.Orderbook, timestampNS uint64) {
	bid, _ := ob.BestBidPrice()
	ask, _ := ob.BestAskPrice()
	s.sink.Push(telemetry.Record{
		Instrument:  s.Instrument,
		TimestampNS: timestampNS,
		Bid:         bid,
		Ask:         ask,
		Position:    s.position,
		TradeCount:  s.tradeCount,
		PnL:         s.pnl,
	})
}

// ClosePositions simulates fills at the opposite best until position is
// flat, logging and recomputing PnL after each simulated fill.
func (s *State) ClosePositions(ob *book.Orderbook, timestampNS uint64, execute func(side book.Side, price int32, size int32)) {
	if s.position == 0 {
		return
	}
	for s.position > 0 {
		price, ok := ob.BestBidPrice()
		if !ok {
			break
		}
		execute(book.Ask, price, 1)
		s.updateTheoValues(ob)
		s.calculatePnL()
		s.LogStats(ob, timestampNS)
	}
	for s.position < 0 {
		price, ok := ob.BestAskPrice()
		if !ok {
			break
		}
		execute(book.Bid, price, 1)
		s.updateTheoValues(ob)
		s.calculatePnL()
		s.LogStats(ob, timestampNS)
	}
}

func (s *State) Reset() {
	s.position = 0
	s.buyQty = 0
	s.sellQty = 0
	s.realBuyPx = 0
	s.realSellPx = 0
	s.theoBuyPx = 0
	s.theoSellPx = 0
	s.fees = 0
	s.pnl = 0
	s.tradeCount = 0
}
