package dbclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	pool := NewPool("127.0.0.1:0", 2, time.Second, time.Second, zaptest.NewLogger(t))
	defer pool.Shutdown()

	c1 := pool.Acquire(context.Background())
	require.NotNil(t, c1)
	c2 := pool.Acquire(context.Background())
	require.NotNil(t, c2)
	assert.NotEqual(t, c1.ID, c2.ID)

	pool.Release(c1)
	c3 := pool.Acquire(context.Background())
	require.NotNil(t, c3)
	assert.Equal(t, c1.ID, c3.ID)
}

func TestPoolAcquireBlocksUntilReleaseOrShutdown(t *testing.T) {
	pool := NewPool("127.0.0.1:0", 1, time.Second, time.Second, zaptest.NewLogger(t))
	c := pool.Acquire(context.Background())
	require.NotNil(t, c)

	done := make(chan *Connection, 1)
	go func() {
		done <- pool.Acquire(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("acquire should block while the only connection is held")
	case <-time.After(50 * time.Millisecond):
	}

	pool.Shutdown()
	select {
	case got := <-done:
		assert.Nil(t, got, "acquire should return nil once the pool is shut down")
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after shutdown")
	}
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "degraded", StateDegraded.String())
}
