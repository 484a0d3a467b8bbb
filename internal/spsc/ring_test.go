package spsc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingPushPopOrder(t *testing.T) {
	r := New[int](8)
	for i := 0; i < 5; i++ {
		require.True(t, r.Push(i))
	}
	for i := 0; i < 5; i++ {
		v, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRingFullDropsAndCounts(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 3; i++ {
		require.True(t, r.Push(i))
	}
	assert.False(t, r.Push(99), "ring holds capacity-1 usable slots")
	assert.Equal(t, uint64(1), r.Dropped())
}

func TestRingDrainReturnsAllInOrder(t *testing.T) {
	r := New[int](8)
	for i := 0; i < 4; i++ {
		r.Push(i)
	}
	out := r.Drain()
	assert.Equal(t, []int{0, 1, 2, 3}, out)
	assert.True(t, r.Empty())
}

func TestRingConcurrentProducerConsumer(t *testing.T) {
	r := New[int](1024)
	const n = 20000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.Push(i) {
			}
		}
	}()

	received := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			if v, ok := r.Pop(); ok {
				received = append(received, v)
			}
		}
	}()

	wg.Wait()
	require.Len(t, received, n)
	for i, v := range received {
		assert.Equal(t, i, v)
	}
}
