package book

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobinHoodInsertFind(t *testing.T) {
	m := NewRobinHood[string](16)
	m.Insert(1, "one")
	m.Insert(2, "two")

	v, ok := m.Find(1)
	require.True(t, ok)
	assert.Equal(t, "one", *v)

	v, ok = m.Find(2)
	require.True(t, ok)
	assert.Equal(t, "two", *v)

	_, ok = m.Find(3)
	assert.False(t, ok)
}

func TestRobinHoodOverwriteExisting(t *testing.T) {
	m := NewRobinHood[int](16)
	m.Insert(5, 100)
	m.Insert(5, 200)
	assert.Equal(t, 1, m.Len())

	v, ok := m.Find(5)
	require.True(t, ok)
	assert.Equal(t, 200, *v)
}

func TestRobinHoodEraseThenMiss(t *testing.T) {
	m := NewRobinHood[int](16)
	m.Insert(1, 1)
	m.Insert(2, 2)
	m.Insert(3, 3)

	ok := m.Erase(2)
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())

	_, ok = m.Find(2)
	assert.False(t, ok)

	_, ok = m.Find(1)
	assert.True(t, ok)
	_, ok = m.Find(3)
	assert.True(t, ok)
}

func TestRobinHoodEraseMissingKey(t *testing.T) {
	m := NewRobinHood[int](16)
	m.Insert(1, 1)
	assert.False(t, m.Erase(99))
}

func TestRobinHoodGrowsAndKeepsAllEntries(t *testing.T) {
	m := NewRobinHood[int](16)
	const n = 5000
	for i := 0; i < n; i++ {
		m.Insert(uint64(i), i*10)
	}
	assert.Equal(t, n, m.Len())
	assert.GreaterOrEqual(t, m.Capacity(), n)

	for i := 0; i < n; i++ {
		v, ok := m.Find(uint64(i))
		require.True(t, ok, "missing key %d", i)
		assert.Equal(t, i*10, *v)
	}
}

func TestRobinHoodClear(t *testing.T) {
	m := NewRobinHood[int](16)
	for i := 0; i < 10; i++ {
		m.Insert(uint64(i), i)
	}
	m.Clear()
	assert.Equal(t, 0, m.Len())
	_, ok := m.Find(0)
	assert.False(t, ok)
}

func TestLimitLookupPackedKeysDoNotCollideAcrossSides(t *testing.T) {
	lookup := NewLimitLookup()
	bidLevel := &Limit{Price: 100, Side: Bid}
	askLevel := &Limit{Price: 100, Side: Ask}

	lookup.Insert(100, Bid, bidLevel)
	lookup.Insert(100, Ask, askLevel)

	found, ok := lookup.Find(100, Bid)
	require.True(t, ok)
	assert.Same(t, bidLevel, found)

	found, ok = lookup.Find(100, Ask)
	require.True(t, ok)
	assert.Same(t, askLevel, found)
}

func TestOrderLookupInsertFindErase(t *testing.T) {
	lookup := NewOrderLookup()
	o := &Order{ID: 7}
	lookup.Insert(7, o)

	found, ok := lookup.Find(7)
	require.True(t, ok)
	assert.Same(t, o, found)

	assert.True(t, lookup.Erase(7))
	_, ok = lookup.Find(7)
	assert.False(t, ok)
}

func ExampleRobinHood_resizeStability() {
	m := NewRobinHood[int](4)
	for i := 0; i < 200; i++ {
		m.Insert(uint64(i), i)
	}
	fmt.Println(m.Len())
	// Output: 200
}
