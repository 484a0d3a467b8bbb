package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPoolAcquireReleaseStableAddress(t *testing.T) {
	pool := NewOrderPool()

	o1 := pool.Acquire()
	o1.ID = 42
	addr1 := o1

	pool.Release(o1)
	require.Equal(t, 0, pool.Live())

	o2 := pool.Acquire()
	assert.Same(t, addr1, o2, "released order should be reused LIFO")
	assert.Equal(t, uint64(0), o2.ID, "reused order must be zeroed")
}

func TestOrderPoolGrowsAcrossPages(t *testing.T) {
	pool := NewOrderPool()
	orders := make([]*Order, orderPageSize+10)
	for i := range orders {
		orders[i] = pool.Acquire()
		orders[i].ID = uint64(i)
	}
	assert.Equal(t, orderPageSize+10, pool.Live())
	assert.Equal(t, orderPageSize+10, pool.HighWater())
	assert.Len(t, pool.pages, 2)

	// addresses handed out before the second page grew must still be valid
	assert.Equal(t, uint64(0), orders[0].ID)
	assert.Equal(t, uint64(orderPageSize), orders[orderPageSize].ID)
}

func TestOrderPoolReset(t *testing.T) {
	pool := NewOrderPool()
	for i := 0; i < 100; i++ {
		pool.Acquire()
	}
	pool.Reset()
	assert.Equal(t, 0, pool.Live())

	o := pool.Acquire()
	assert.Equal(t, uint64(0), o.ID)
}

func TestLimitPoolAcquireInitializesFields(t *testing.T) {
	pool := NewLimitPool()
	lim := pool.Acquire(10050, Bid)
	assert.Equal(t, int32(10050), lim.Price)
	assert.Equal(t, Bid, lim.Side)
	assert.True(t, lim.IsEmpty())
}

func TestLimitPoolReleaseReusesRecord(t *testing.T) {
	pool := NewLimitPool()
	lim := pool.Acquire(100, Ask)
	pool.Release(lim)
	require.Equal(t, 0, pool.Live())

	lim2 := pool.Acquire(200, Bid)
	assert.Same(t, lim, lim2)
	assert.Equal(t, int32(200), lim2.Price)
}
