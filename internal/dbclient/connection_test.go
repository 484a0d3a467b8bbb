package dbclient

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConnectionSendSucceedsAgainstLiveListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
	}()

	c := newConnection(ln.Addr().String(), zaptest.NewLogger(t), time.Second, time.Second)
	err = c.Send(context.Background(), []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, StateActive, c.State())

	select {
	case line := <-received:
		assert.Equal(t, "hello\n", line)
	case <-time.After(time.Second):
		t.Fatal("listener never received the line")
	}
}

func TestConnectionSendFailureLeavesConnectionInactive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // nothing listening now

	c := newConnection(addr, zaptest.NewLogger(t), 100*time.Millisecond, 100*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = c.Send(ctx, []byte("x\n"))
	assert.Error(t, err)
	assert.NotEqual(t, StateActive, c.State())
}
