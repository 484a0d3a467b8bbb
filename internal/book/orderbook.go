package book

import (
	"math"

	"github.com/sabinquant/hftbt/internal/config"
)

// voiHistoryCapacity and midPriceCapacity size the two circular buffers
// the rolling analytics keep. The original implementation keeps an index
// that is declared but never advanced, so every push overwrites slot
// zero; that is treated as a defect here and replaced with a real
// wrap-on-push circular buffer (see design notes).
const (
	voiHistoryCapacity = 4096
	midPriceCapacity   = 4096
)

// Orderbook is the L3 limit order book for one instrument: both sides,
// both lookup tables, both object pools, and the rolling analytics the
// strategies read.
type Orderbook struct {
	bids *BookSide
	asks *BookSide

	orders *OrderLookup
	limits *LimitLookup

	orderPool *OrderPool
	limitPool *LimitPool

	vwapNum float64
	vwapDen float64

	bidVol int64
	askVol int64
	skew   float64

	lastBestBid    int32
	lastBestAsk    int32
	lastBidVolume  int32
	lastAskVolume  int32
	haveLastQuotes bool

	midPrices    [midPriceCapacity]float64
	midPriceLen  int
	midPriceHead int

	voiHistory    [voiHistoryCapacity]float64
	voiHistoryLen int
	voiHead       int
}

// NewOrderbook builds a book using the default pool page sizes and hash
// load factor (§4.1, §4.2).
func NewOrderbook() *Orderbook {
	return &Orderbook{
		bids:      NewBookSide(Bid),
		asks:      NewBookSide(Ask),
		orders:    NewOrderLookup(),
		limits:    NewLimitLookup(),
		orderPool: NewOrderPool(),
		limitPool: NewLimitPool(),
	}
}

// NewOrderbookWithConfig builds a book whose object pools and lookup
// tables are sized from internal/config.ReplayConfig instead of the
// package defaults.
func NewOrderbookWithConfig(cfg config.ReplayConfig) *Orderbook {
	return &Orderbook{
		bids:      NewBookSide(Bid),
		asks:      NewBookSide(Ask),
		orders:    NewOrderLookupWithLoadFactor(cfg.HashLoadFactor),
		limits:    NewLimitLookupWithLoadFactor(cfg.HashLoadFactor),
		orderPool: NewOrderPoolWithPageSize(int(cfg.OrderPoolPageSize)),
		limitPool: NewLimitPoolWithPageSize(int(cfg.LimitPoolPageSize)),
	}
}

func (b *Orderbook) sideOf(side Side) *BookSide {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

// getOrInsertLevel returns the level for (price, side), creating and
// wiring it into the sorted side and the limit lookup if absent.
func (b *Orderbook) getOrInsertLevel(price int32, side Side) *Limit {
	if lim, ok := b.limits.Find(price, side); ok {
		return lim
	}
	lim := b.limitPool.Acquire(price, side)
	b.sideOf(side).Insert(lim)
	b.limits.Insert(price, side, lim)
	return lim
}

// destroyLevel erases an emptied level from the sorted side and the
// lookup, in that order, before returning it to the pool — so no lookup
// can observe a pooled level.
func (b *Orderbook) destroyLevel(lim *Limit) {
	b.sideOf(lim.Side).Remove(lim.Price)
	b.limits.Erase(lim.Price, lim.Side)
	b.limitPool.Release(lim)
}

// ProcessMessage dispatches one normalized message into the book per the
// Add/Cancel/Modify/Trade state machine.
func (b *Orderbook) ProcessMessage(msg Message) error {
	switch msg.Action {
	case Add:
		b.add(msg.OrderID, msg.Price, msg.Size, msg.Side, msg.TimestampNS)
	case Cancel:
		return b.cancel(msg.OrderID)
	case Modify:
		b.modify(msg.OrderID, msg.Price, msg.Size, msg.Side, msg.TimestampNS)
	case Trade:
		b.CalculateVWAP(msg.Price, msg.Size)
	}
	return nil
}

func (b *Orderbook) add(id uint64, price int32, size uint32, side Side, ts uint64) {
	lim := b.getOrInsertLevel(price, side)
	o := b.orderPool.Acquire()
	o.ID = id
	o.Price = price
	o.Size = size
	o.Side = side
	o.TimestampNS = ts
	lim.AddOrder(o)
	b.orders.Insert(id, o)
}

func (b *Orderbook) cancel(id uint64) error {
	o, ok := b.orders.Find(id)
	if !ok {
		return ErrOrderNotFound(id)
	}
	lim := o.Parent
	lim.RemoveOrder(o)
	if lim.IsEmpty() {
		b.destroyLevel(lim)
	}
	b.orders.Erase(id)
	b.orderPool.Release(o)
	return nil
}

// modify implements the Add/Cancel+Add/in-place state machine and the
// time-priority tie-break: a same-price size decrease keeps the order's
// queue position, a same-price size increase or any price change sends it
// to the back of its (possibly new) level.
func (b *Orderbook) modify(id uint64, newPrice int32, newSize uint32, side Side, ts uint64) {
	o, ok := b.orders.Find(id)
	if !ok {
		b.add(id, newPrice, newSize, side, ts)
		return
	}

	if o.Price != newPrice {
		_ = b.cancel(id)
		b.add(id, newPrice, newSize, side, ts)
		return
	}

	lim := o.Parent
	if newSize > o.Size {
		lim.RemoveOrder(o)
		o.Size = newSize
		o.TimestampNS = ts
		lim.AddOrder(o)
		return
	}

	lim.Volume -= int32(o.Size) - int32(newSize)
	o.Size = newSize
	o.TimestampNS = ts
}

// BestBidPrice, BestAskPrice, BestBidVolume, BestAskVolume, MidPrice,
// LevelAt, and Count make up the O(1) read interface (O(depth) for
// LevelAt).

func (b *Orderbook) BestBidPrice() (int32, bool) {
	lim, ok := b.bids.Best()
	if !ok {
		return 0, false
	}
	return lim.Price, true
}

func (b *Orderbook) BestAskPrice() (int32, bool) {
	lim, ok := b.asks.Best()
	if !ok {
		return 0, false
	}
	return lim.Price, true
}

func (b *Orderbook) BestBidVolume() (int32, bool) {
	lim, ok := b.bids.Best()
	if !ok {
		return 0, false
	}
	return lim.Volume, true
}

func (b *Orderbook) BestAskVolume() (int32, bool) {
	lim, ok := b.asks.Best()
	if !ok {
		return 0, false
	}
	return lim.Volume, true
}

func (b *Orderbook) MidPrice() (float64, bool) {
	bid, okb := b.BestBidPrice()
	ask, oka := b.BestAskPrice()
	if !okb || !oka {
		return 0, false
	}
	return (float64(bid) + float64(ask)) / 2, true
}

// LevelAt returns the level `depth` away from best on the given side (0 is
// best). O(depth).
func (b *Orderbook) LevelAt(side Side, depth int) (*Limit, bool) {
	levels := b.sideOf(side).Depth(depth + 1)
	if len(levels) <= depth {
		return nil, false
	}
	return levels[depth], true
}

func (b *Orderbook) Count() int {
	return b.bids.Len() + b.asks.Len()
}

// CalculateVols sums volume over up to the top n levels per side and
// caches the result for CalculateImbalance and CalculateSkew.
func (b *Orderbook) CalculateVols(n int) (bidVol, askVol int64) {
	for _, lim := range b.bids.Depth(n) {
		bidVol += int64(lim.Volume)
	}
	for _, lim := range b.asks.Depth(n) {
		askVol += int64(lim.Volume)
	}
	b.bidVol, b.askVol = bidVol, askVol
	return bidVol, askVol
}

func (b *Orderbook) CalculateImbalance() float64 {
	den := b.bidVol + b.askVol
	if den == 0 {
		return 0
	}
	return float64(b.bidVol-b.askVol) / float64(den)
}

func (b *Orderbook) CalculateSkew() float64 {
	if b.bidVol > 0 && b.askVol > 0 {
		b.skew = math.Log10(float64(b.bidVol)) - math.Log10(float64(b.askVol))
	}
	return b.skew
}

// CalculateVOI computes the Cont/Kukanov volume-order-imbalance
// contribution from the current best quotes versus the previous call's,
// appends it to the circular history, and advances the previous-quote
// state.
func (b *Orderbook) CalculateVOI() float64 {
	bidPrice, okBid := b.BestBidPrice()
	askPrice, okAsk := b.BestAskPrice()
	bidVol, _ := b.BestBidVolume()
	askVol, _ := b.BestAskVolume()

	if !b.haveLastQuotes {
		b.lastBestBid, b.lastBestAsk = bidPrice, askPrice
		b.lastBidVolume, b.lastAskVolume = bidVol, askVol
		b.haveLastQuotes = okBid && okAsk
		return 0
	}

	var bidContrib, askContrib float64
	if okBid {
		deltaB := bidPrice - b.lastBestBid
		switch {
		case deltaB > 0:
			bidContrib = float64(bidVol)
		case deltaB == 0:
			bidContrib = float64(bidVol - b.lastBidVolume)
		}
	}
	if okAsk {
		deltaA := askPrice - b.lastBestAsk
		switch {
		case deltaA < 0:
			askContrib = float64(askVol)
		case deltaA == 0:
			askContrib = float64(askVol - b.lastAskVolume)
		}
	}

	voi := bidContrib - askContrib
	b.pushVOI(voi)

	b.lastBestBid, b.lastBestAsk = bidPrice, askPrice
	b.lastBidVolume, b.lastAskVolume = bidVol, askVol
	return voi
}

func (b *Orderbook) pushVOI(v float64) {
	b.voiHistory[b.voiHead] = v
	b.voiHead = (b.voiHead + 1) % voiHistoryCapacity
	if b.voiHistoryLen < voiHistoryCapacity {
		b.voiHistoryLen++
	}
}

// VOIHistory returns the buffered VOI samples oldest-first.
func (b *Orderbook) VOIHistory() []float64 {
	return drainCircular(b.voiHistory[:], b.voiHead, b.voiHistoryLen)
}

func (b *Orderbook) pushMidPrice(v float64) {
	b.midPrices[b.midPriceHead] = v
	b.midPriceHead = (b.midPriceHead + 1) % midPriceCapacity
	if b.midPriceLen < midPriceCapacity {
		b.midPriceLen++
	}
}

// MidPriceHistory returns the buffered mid-price samples oldest-first,
// pushing the current mid price first if the book is two-sided.
func (b *Orderbook) MidPriceHistory() []float64 {
	if mid, ok := b.MidPrice(); ok {
		b.pushMidPrice(mid)
	}
	return drainCircular(b.midPrices[:], b.midPriceHead, b.midPriceLen)
}

func drainCircular(buf []float64, head, length int) []float64 {
	out := make([]float64, length)
	start := (head - length + len(buf)) % len(buf)
	for i := 0; i < length; i++ {
		out[i] = buf[(start+i)%len(buf)]
	}
	return out
}

// OrderPoolHighWater and LimitPoolHighWater expose the pool discipline
// invariant from §8: live acquires minus releases never exceeds the
// pool's current high-water mark. Read by the coordinator for metrics
// and the run ledger.
func (b *Orderbook) OrderPoolHighWater() int { return b.orderPool.HighWater() }
func (b *Orderbook) LimitPoolHighWater() int { return b.limitPool.HighWater() }

func (b *Orderbook) VWAPNum() float64 { return b.vwapNum }
func (b *Orderbook) VWAPDen() float64 { return b.vwapDen }

// CalculateVWAP accumulates one trade into the running volume-weighted
// average price.
func (b *Orderbook) CalculateVWAP(price int32, size uint32) float64 {
	b.vwapNum += float64(price) * float64(size)
	b.vwapDen += float64(size)
	if b.vwapDen == 0 {
		return 0
	}
	return b.vwapNum / b.vwapDen
}

// Reset returns every live order and level to their pools, clears both
// sides and both lookups, and zeroes the rolling analytics, while
// preserving pool capacity for the next run.
func (b *Orderbook) Reset() {
	b.bids.Clear()
	b.asks.Clear()
	b.orders.Clear()
	b.limits.Clear()
	b.orderPool.Reset()
	b.limitPool.Reset()

	b.vwapNum, b.vwapDen = 0, 0
	b.bidVol, b.askVol = 0, 0
	b.skew = 0
	b.lastBestBid, b.lastBestAsk = 0, 0
	b.lastBidVolume, b.lastAskVolume = 0, 0
	b.haveLastQuotes = false
	b.midPriceLen, b.midPriceHead = 0, 0
	b.voiHistoryLen, b.voiHead = 0, 0
}
