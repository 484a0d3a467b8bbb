package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookSideInsertKeepsAscendingOrder(t *testing.T) {
	side := NewBookSide(Bid)
	side.Insert(&Limit{Price: 300, Side: Bid})
	side.Insert(&Limit{Price: 100, Side: Bid})
	side.Insert(&Limit{Price: 200, Side: Bid})

	prices := make([]int32, 0, 3)
	for _, l := range side.All() {
		prices = append(prices, l.Price)
	}
	assert.Equal(t, []int32{100, 200, 300}, prices)
}

func TestBookSideBestBidIsHighest(t *testing.T) {
	side := NewBookSide(Bid)
	side.Insert(&Limit{Price: 100, Side: Bid})
	side.Insert(&Limit{Price: 105, Side: Bid})

	best, ok := side.Best()
	require.True(t, ok)
	assert.Equal(t, int32(105), best.Price)
}

func TestBookSideBestAskIsLowest(t *testing.T) {
	side := NewBookSide(Ask)
	side.Insert(&Limit{Price: 110, Side: Ask})
	side.Insert(&Limit{Price: 105, Side: Ask})

	best, ok := side.Best()
	require.True(t, ok)
	assert.Equal(t, int32(105), best.Price)
}

func TestBookSideRemove(t *testing.T) {
	side := NewBookSide(Bid)
	side.Insert(&Limit{Price: 100, Side: Bid})
	side.Insert(&Limit{Price: 200, Side: Bid})

	removed, ok := side.Remove(100)
	require.True(t, ok)
	assert.Equal(t, int32(100), removed.Price)
	assert.Equal(t, 1, side.Len())

	_, ok = side.Remove(100)
	assert.False(t, ok)
}

func TestBookSideDepthOrdersFromBest(t *testing.T) {
	side := NewBookSide(Bid)
	side.Insert(&Limit{Price: 100, Side: Bid})
	side.Insert(&Limit{Price: 105, Side: Bid})
	side.Insert(&Limit{Price: 102, Side: Bid})

	depth := side.Depth(2)
	require.Len(t, depth, 2)
	assert.Equal(t, int32(105), depth[0].Price)
	assert.Equal(t, int32(102), depth[1].Price)
}
