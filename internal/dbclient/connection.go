// Package dbclient implements the fixed-capacity pool of reconnecting TCP
// clients that telemetry DB consumers pull from, and the line-protocol
// encoder they write with.
package dbclient

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sabinquant/hftbt/internal/apperrors"
)

// ConnectionState mirrors the lifecycle a pooled socket moves through:
// Disconnected -> Connecting -> Active -> Degraded (a send failed; the
// next send attempts reconnect) -> Closed.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateActive
	StateDegraded
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one pooled TCP socket to the line-protocol sink. Sends
// go through the circuit breaker. A write error demotes the connection to
// Degraded so the next send attempts a fresh dial instead of writing to a
// dead socket; while the breaker is open, sends fail fast and the
// connection state is left unchanged.
type Connection struct {
	ID             string
	addr           string
	logger         *zap.Logger
	breaker        *gobreaker.CircuitBreaker
	limiter        *rate.Limiter
	connectTimeout time.Duration
	sendTimeout    time.Duration

	mu    sync.Mutex
	conn  net.Conn
	state ConnectionState
}

// newConnection builds an idle connection. connectTimeout bounds the
// dial in ensureConnected; sendTimeout bounds the write deadline in
// Send — both come from internal/config.DBClientConfig via the pool.
func newConnection(addr string, logger *zap.Logger, connectTimeout, sendTimeout time.Duration) *Connection {
	c := &Connection{
		ID:             uuid.NewString(),
		addr:           addr,
		logger:         logger,
		state:          StateDisconnected,
		limiter:        rate.NewLimiter(rate.Every(time.Second), 1),
		connectTimeout: connectTimeout,
		sendTimeout:    sendTimeout,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dbclient-" + c.ID,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return c
}

func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ensureConnected reconnects if the socket is absent, throttled by
// limiter so a dead remote doesn't get hammered with dial attempts.
func (c *Connection) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateActive {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	c.state = StateConnecting
	dialer := net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.state = StateDisconnected
		return err
	}
	c.conn = conn
	c.state = StateActive
	return nil
}

// Send writes line-protocol bytes, reconnecting first if the connection
// is not Active, and demoting to Degraded on a write failure (a failed
// dial leaves it Disconnected). No data is
// persisted across a failed connection: the caller's record is discarded
// once Send returns an error.
func (c *Connection) Send(ctx context.Context, data []byte) error {
	_, err := c.breaker.Execute(func() (any, error) {
		if err := c.ensureConnected(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		conn.SetWriteDeadline(time.Now().Add(c.sendTimeout))
		if _, err := conn.Write(data); err != nil {
			c.markDegraded()
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		c.logger.Warn("dbclient send failed",
			zap.String("connection_id", c.ID),
			zap.Error(apperrors.Wrap(err, apperrors.ErrConnectionDegraded, "send failed").WithDetail("connection_id", c.ID)))
	}
	return err
}

func (c *Connection) markDegraded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDegraded
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
