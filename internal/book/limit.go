package book

// Limit is one price level on one side of the book: the FIFO of resting
// orders at that price and their aggregate volume. The trailing padding
// field rounds the struct to a single 64-byte cache line so that a page of
// Limits (see LimitPool) spaces hot-path reads one per line, mirroring the
// `alignas(64)` layout of the C++ origin. Go gives no hard alignment
// guarantee beyond natural alignment, so this is a best-effort hint, not a
// contract — it still prevents two live Limits from sharing a line in the
// common case where pages are laid out contiguously.
type Limit struct {
	Price  int32
	Volume int32
	Side   Side

	Head *Order
	Tail *Order

	_ [32]byte // pad struct to 64 bytes
}

func (l *Limit) IsEmpty() bool {
	return l.Head == nil
}

// AddOrder appends o to the tail of the level's FIFO. Callers are
// responsible for having already set o.Price/Size/Side/TimestampNS.
func (l *Limit) AddOrder(o *Order) {
	o.prev = l.Tail
	o.next = nil
	if l.Tail != nil {
		l.Tail.next = o
	} else {
		l.Head = o
	}
	l.Tail = o
	o.Parent = l
	l.Volume += int32(o.Size)
}

// RemoveOrder unlinks target from the level's FIFO. It does not touch the
// order pool or the level's lifecycle; callers decide whether an empty
// level should be destroyed.
func (l *Limit) RemoveOrder(target *Order) {
	if target.prev != nil {
		target.prev.next = target.next
	} else {
		l.Head = target.next
	}
	if target.next != nil {
		target.next.prev = target.prev
	} else {
		l.Tail = target.prev
	}
	l.Volume -= int32(target.Size)
	target.prev = nil
	target.next = nil
	target.Parent = nil
}

func (l *Limit) reset() {
	*l = Limit{}
}
