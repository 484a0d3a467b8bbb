package book

import "sort"

// BookSide holds the live price levels on one side of the book, always
// sorted ascending by price. For the bid side the best price is the last
// element; for the ask side it is the first. This mirrors the layout the
// matching engine keeps internally: a vector kept sorted on insert so the
// best quote is a O(1) read from either end rather than a scan.
type BookSide struct {
	side   Side
	levels []*Limit
}

func NewBookSide(side Side) *BookSide {
	return &BookSide{side: side}
}

func (s *BookSide) Len() int { return len(s.levels) }

// find returns the index of price in the sorted slice and whether it was
// found; on a miss the index is where it should be inserted to keep the
// slice sorted.
func (s *BookSide) find(price int32) (int, bool) {
	i := sort.Search(len(s.levels), func(i int) bool {
		return s.levels[i].Price >= price
	})
	if i < len(s.levels) && s.levels[i].Price == price {
		return i, true
	}
	return i, false
}

func (s *BookSide) Get(price int32) (*Limit, bool) {
	i, ok := s.find(price)
	if !ok {
		return nil, false
	}
	return s.levels[i], true
}

// Insert adds lim at its sorted position. Callers must not insert a price
// that already exists.
func (s *BookSide) Insert(lim *Limit) {
	i, _ := s.find(lim.Price)
	s.levels = append(s.levels, nil)
	copy(s.levels[i+1:], s.levels[i:])
	s.levels[i] = lim
}

// Remove deletes the level at price, if present.
func (s *BookSide) Remove(price int32) (*Limit, bool) {
	i, ok := s.find(price)
	if !ok {
		return nil, false
	}
	lim := s.levels[i]
	copy(s.levels[i:], s.levels[i+1:])
	s.levels[len(s.levels)-1] = nil
	s.levels = s.levels[:len(s.levels)-1]
	return lim, true
}

// Best returns the inside level for this side: the highest bid or the
// lowest ask.
func (s *BookSide) Best() (*Limit, bool) {
	if len(s.levels) == 0 {
		return nil, false
	}
	if s.side == Bid {
		return s.levels[len(s.levels)-1], true
	}
	return s.levels[0], true
}

// Depth returns up to n levels ordered from best to worst, for L2 reads.
func (s *BookSide) Depth(n int) []*Limit {
	if n > len(s.levels) {
		n = len(s.levels)
	}
	out := make([]*Limit, n)
	if s.side == Bid {
		for i := 0; i < n; i++ {
			out[i] = s.levels[len(s.levels)-1-i]
		}
		return out
	}
	copy(out, s.levels[:n])
	return out
}

// All returns the full level slice in ascending-price order. Callers must
// not mutate the returned slice.
func (s *BookSide) All() []*Limit {
	return s.levels
}

func (s *BookSide) Clear() {
	s.levels = s.levels[:0]
}
