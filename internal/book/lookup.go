package book

// OrderLookup resolves an order_id to the live *Order, so Cancel/Modify
// messages can find their target without scanning any level's FIFO.
type OrderLookup struct {
	table *RobinHood[*Order]
}

func NewOrderLookup() *OrderLookup {
	return &OrderLookup{table: NewRobinHood[*Order](initialCapacity)}
}

// NewOrderLookupWithLoadFactor builds a lookup table whose resize threshold
// comes from internal/config.ReplayConfig.HashLoadFactor.
func NewOrderLookupWithLoadFactor(loadFactorMax float64) *OrderLookup {
	return &OrderLookup{table: NewRobinHoodWithLoadFactor[*Order](initialCapacity, loadFactorMax)}
}

func (l *OrderLookup) Insert(id uint64, o *Order) { l.table.Insert(id, o) }

func (l *OrderLookup) Find(id uint64) (*Order, bool) {
	v, ok := l.table.Find(id)
	if !ok {
		return nil, false
	}
	return *v, true
}

func (l *OrderLookup) Erase(id uint64) bool { return l.table.Erase(id) }
func (l *OrderLookup) Len() int             { return l.table.Len() }
func (l *OrderLookup) Clear()               { l.table.Clear() }

// LimitLookup resolves a (price, side) pair to its *Limit, keyed on a
// packed uint64 so the same Robin Hood implementation serves both tables.
type LimitLookup struct {
	table *RobinHood[*Limit]
}

func NewLimitLookup() *LimitLookup {
	return &LimitLookup{table: NewRobinHood[*Limit](initialCapacity)}
}

// NewLimitLookupWithLoadFactor builds a lookup table whose resize threshold
// comes from internal/config.ReplayConfig.HashLoadFactor.
func NewLimitLookupWithLoadFactor(loadFactorMax float64) *LimitLookup {
	return &LimitLookup{table: NewRobinHoodWithLoadFactor[*Limit](initialCapacity, loadFactorMax)}
}

// packLimitKey packs a price/side pair into one uint64: the side occupies
// bit 32 (set for bids), and the price's two's-complement bit pattern
// fills the low 32 bits.
func packLimitKey(price int32, side Side) uint64 {
	key := uint64(uint32(price)) & 0xFFFFFFFF
	if side == Bid {
		key |= 1 << 32
	}
	return key
}

func (l *LimitLookup) Insert(price int32, side Side, lim *Limit) {
	l.table.Insert(packLimitKey(price, side), lim)
}

func (l *LimitLookup) Find(price int32, side Side) (*Limit, bool) {
	v, ok := l.table.Find(packLimitKey(price, side))
	if !ok {
		return nil, false
	}
	return *v, true
}

func (l *LimitLookup) Erase(price int32, side Side) bool {
	return l.table.Erase(packLimitKey(price, side))
}

func (l *LimitLookup) Len() int { return l.table.Len() }
func (l *LimitLookup) Clear()   { l.table.Clear() }
