package websocket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/shared/testutil"
)

// fakeConn records writes and blocks reads until closed
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	types  []int
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.types = append(c.types, messageType)
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, &websocket.CloseError{Code: websocket.CloseGoingAway}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetReadLimit(int64) {}
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) messageTypes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.types...)
}

func TestClient_WriteLoopSendsPings(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.SetKeepalive(20*time.Millisecond, 100*time.Millisecond)

	conn := newFakeConn()
	client := NewClient(hub, conn, "127.0.0.1:1234", "trace-1", logger)
	go client.writeLoop()

	client.send <- []byte(`{"type":"roster:updated"}`)
	require.Eventually(t, func() bool {
		types := conn.messageTypes()
		return len(types) >= 2 && types[0] == websocket.TextMessage && types[len(types)-1] == websocket.PingMessage
	}, time.Second, 5*time.Millisecond)

	close(client.send)
	require.Eventually(t, func() bool {
		types := conn.messageTypes()
		return types[len(types)-1] == websocket.CloseMessage
	}, time.Second, 5*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	defer hub.Stop()

	// no write pump: the send buffer fills up
	client := NewClient(hub, newFakeConn(), "127.0.0.1:1", "", logger)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 3*sendBuffer; i++ {
		hub.BroadcastJSON([]byte(`{}`))
	}

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, logs.ContainsAttr("reason", "send buffer full"))
}

func TestHub_SetKeepalive(t *testing.T) {
	hub := NewHub(nil, nil)
	hub.SetKeepalive(0, 30*time.Second)
	assert.Equal(t, 30*time.Second, hub.pongWait)
	assert.Equal(t, 27*time.Second, hub.pingPeriod)

	hub.SetKeepalive(40*time.Second, 30*time.Second)
	assert.Equal(t, 27*time.Second, hub.pingPeriod)

	hub.SetKeepalive(10*time.Second, 0)
	assert.Equal(t, 10*time.Second, hub.pingPeriod)
}

func TestClient_ServeUnregistersOnDisconnect(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	defer hub.Stop()

	conn := newFakeConn()
	client := NewClient(hub, conn, "127.0.0.1:2", "", logger)
	hub.Register(client)
	go client.Serve()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// the connect greeting goes out through the write loop
	require.Eventually(t, func() bool {
		types := conn.messageTypes()
		return len(types) > 0 && types[0] == websocket.TextMessage
	}, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
