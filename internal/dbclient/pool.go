package dbclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pool is a fixed-capacity set of reconnecting connections. Acquire
// blocks until one is free or the pool is shut down, in which case it
// returns nil. Release returns a connection to the free list and wakes
// one waiter. The connection pool is the only resource the backtester
// shares across worker goroutines; everything else is thread-local.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	free    []*Connection
	all     []*Connection
	closed  bool
	logger  *zap.Logger
}

// NewPool dials no sockets up front: every Connection starts
// Disconnected and dials lazily on its first Send. connectTimeout and
// sendTimeout come from internal/config.DBClientConfig and bound every
// connection's dial and write deadline.
func NewPool(addr string, capacity int, connectTimeout, sendTimeout time.Duration, logger *zap.Logger) *Pool {
	p := &Pool{
		free:   make([]*Connection, 0, capacity),
		all:    make([]*Connection, 0, capacity),
		logger: logger,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < capacity; i++ {
		c := newConnection(addr, logger, connectTimeout, sendTimeout)
		p.free = append(p.free, c)
		p.all = append(p.all, c)
	}
	return p
}

// Acquire blocks until a connection is free. It returns nil if the pool
// has been shut down while waiting.
func (p *Pool) Acquire(ctx context.Context) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.free) == 0 && !p.closed {
		if ctx.Err() != nil {
			return nil
		}
		p.cond.Wait()
	}
	if p.closed {
		return nil
	}
	n := len(p.free) - 1
	c := p.free[n]
	p.free = p.free[:n]
	return c
}

// Release returns c to the free list and wakes one waiter.
func (p *Pool) Release(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, c)
	p.cond.Signal()
}

// Shutdown closes every connection and wakes all blocked acquirers.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, c := range p.all {
		if err := c.Close(); err != nil {
			p.logger.Warn("error closing pooled connection", zap.String("connection_id", c.ID), zap.Error(err))
		}
	}
	p.cond.Broadcast()
}

func (p *Pool) Capacity() int {
	return len(p.all)
}

// Snapshot reports the current state of every connection the pool owns,
// keyed by connection ID. Used by the coordinator to publish the
// connection-state gauge without adding a
// metrics dependency to the hot send path.
func (p *Pool) Snapshot() map[string]ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]ConnectionState, len(p.all))
	for _, c := range p.all {
		out[c.ID] = c.State()
	}
	return out
}
