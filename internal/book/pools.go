package book

import "unsafe"

// orderPageSize and limitPageSize are the amortized, page-sized growth
// units for the two object pools (§4.1). Each page is a fixed-length slice
// allocated once; because a page's own backing array is never resized,
// pointers into it stay valid for the pool's lifetime even though the
// outer slice-of-pages grows.
const (
	orderPageSize = 4096
	limitPageSize = 1024
)

// OrderPool hands out *Order records with LIFO reuse and zero allocation
// once warmed up. acquire/release never invalidate a previously issued
// pointer: growth only appends a new page, it never reallocates an
// existing one.
type OrderPool struct {
	pages     [][]Order
	pageSize  int
	cursor    int // offset into the last page not yet handed out
	free      *Order
	live      int
	highWater int
}

// NewOrderPool builds a pool with the default page size (§4.1).
func NewOrderPool() *OrderPool {
	return NewOrderPoolWithPageSize(orderPageSize)
}

// NewOrderPoolWithPageSize builds a pool whose page size comes from
// internal/config.ReplayConfig.OrderPoolPageSize rather than the default.
func NewOrderPoolWithPageSize(pageSize int) *OrderPool {
	return &OrderPool{pageSize: pageSize}
}

func (p *OrderPool) growPage() {
	p.pages = append(p.pages, make([]Order, p.pageSize))
	p.cursor = 0
}

// Acquire returns a zeroed order ready for the caller to populate.
func (p *OrderPool) Acquire() *Order {
	var o *Order
	if p.free != nil {
		o = p.free
		p.free = o.next
		o.next = nil
	} else {
		if len(p.pages) == 0 || p.cursor == p.pageSize {
			p.growPage()
		}
		page := p.pages[len(p.pages)-1]
		o = &page[p.cursor]
		p.cursor++
	}
	p.live++
	if p.live > p.highWater {
		p.highWater = p.live
	}
	return o
}

// Release returns order to the pool. The record is zeroed immediately so
// that the next Acquire always observes a clean slate, and pushed onto the
// free list so the most recently released record is reused first.
func (p *OrderPool) Release(o *Order) {
	o.reset()
	o.next = p.free
	p.free = o
	p.live--
}

func (p *OrderPool) Live() int      { return p.live }
func (p *OrderPool) HighWater() int { return p.highWater }

// Reset drains every live record back to the pool without shrinking any
// already-allocated page, so steady-state capacity survives a book reset.
func (p *OrderPool) Reset() {
	p.free = nil
	for _, page := range p.pages {
		for i := range page {
			page[i].reset()
		}
	}
	p.cursor = 0
	// relink every slot in every page into the free list, LIFO by page
	// order so the first page drains first on the next run.
	for pi := len(p.pages) - 1; pi >= 0; pi-- {
		page := p.pages[pi]
		for i := len(page) - 1; i >= 0; i-- {
			page[i].next = p.free
			p.free = &page[i]
		}
	}
	p.cursor = p.pageSize
	p.live = 0
}

// limitNode pairs a Limit with the intrusive free-list link used while the
// node sits on LimitPool's free list. It is never exposed outside the pool.
type limitNode struct {
	limit Limit
	next  *limitNode
}

// LimitPool hands out *Limit records the same way OrderPool hands out
// orders: page-based growth, LIFO reuse, stable addresses.
type LimitPool struct {
	pages     [][]limitNode
	pageSize  int
	cursor    int
	free      *limitNode
	live      int
	highWater int
}

// NewLimitPool builds a pool with the default page size (§4.1).
func NewLimitPool() *LimitPool {
	return NewLimitPoolWithPageSize(limitPageSize)
}

// NewLimitPoolWithPageSize builds a pool whose page size comes from
// internal/config.ReplayConfig.LimitPoolPageSize rather than the default.
func NewLimitPoolWithPageSize(pageSize int) *LimitPool {
	return &LimitPool{pageSize: pageSize}
}

func (p *LimitPool) growPage() {
	p.pages = append(p.pages, make([]limitNode, p.pageSize))
	p.cursor = 0
}

// Acquire returns a Limit initialized for (price, side) with zero volume
// and an empty FIFO.
func (p *LimitPool) Acquire(price int32, side Side) *Limit {
	var n *limitNode
	if p.free != nil {
		n = p.free
		p.free = n.next
		n.next = nil
	} else {
		if len(p.pages) == 0 || p.cursor == p.pageSize {
			p.growPage()
		}
		page := p.pages[len(p.pages)-1]
		n = &page[p.cursor]
		p.cursor++
	}
	n.limit.reset()
	n.limit.Price = price
	n.limit.Side = side
	p.live++
	if p.live > p.highWater {
		p.highWater = p.live
	}
	return &n.limit
}

// Release returns l to the pool. l must have come from this pool's Acquire.
func (p *LimitPool) Release(l *Limit) {
	n := limitNodeOf(l)
	n.limit.reset()
	n.next = p.free
	p.free = n
	p.live--
}

// limitNodeOf recovers the owning limitNode from a *Limit. It relies on
// Limit being limitNode's first field, the same trick container/list-style
// intrusive structures use to go from an embedded value back to its node.
func limitNodeOf(l *Limit) *limitNode {
	return (*limitNode)(unsafe.Pointer(l))
}

func (p *LimitPool) Live() int      { return p.live }
func (p *LimitPool) HighWater() int { return p.highWater }

func (p *LimitPool) Reset() {
	p.free = nil
	for pi := len(p.pages) - 1; pi >= 0; pi-- {
		page := p.pages[pi]
		for i := len(page) - 1; i >= 0; i-- {
			page[i].limit.reset()
			page[i].next = p.free
			p.free = &page[i]
		}
	}
	p.cursor = p.pageSize
	p.live = 0
}
