package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rollbook/internal/infrastructure"
)

const (
	writeWait = 10 * time.Second

	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = (defaultPongWait * 9) / 10

	// dashboards never send anything but control frames and heartbeats
	maxMessageSize = 512

	sendBuffer = 64
)

// Connection is the subset of *websocket.Conn a client drives.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
}

// Client is one dashboard connection. The hub owns send: only the hub
// closes it, which tells the write loop to say goodbye.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	// ctx carries the upgrade request's trace ID into every log line.
	ctx    context.Context
	logger *slog.Logger
}

func NewClient(hub *Hub, conn Connection, remoteAddr, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	ctx := context.Background()
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		ctx:         ctx,
		logger:      logger.With(slog.String("component", "websocket.client"), slog.String("client_id", id)),
	}
}

func (c *Client) ID() string { return c.id }

// Serve runs the connection until either side hangs up. It blocks on the
// read side; writes happen on a second goroutine.
func (c *Client) Serve() {
	go c.writeLoop()
	c.readLoop()
}

// readLoop keeps the read deadline moving and detects disconnects. Payloads
// are discarded.
func (c *Client) readLoop() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	wait := c.hub.pongWait
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(wait)) }

	c.conn.SetReadLimit(maxMessageSize)
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			extend()
			continue
		}
		switch {
		case errors.Is(err, websocket.ErrReadLimit):
			c.logger.WarnContext(c.ctx, "client message over size limit, disconnecting",
				slog.Int("limit", maxMessageSize))
		case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure):
			c.logger.WarnContext(c.ctx, "websocket closed unexpectedly", slog.String("error", err.Error()))
		}
		return
	}
}

// writeLoop drains send and pings the peer every ping period. A closed send
// channel ends the connection with a normal close frame.
func (c *Client) writeLoop() {
	ping := time.NewTicker(c.hub.pingPeriod)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, open := <-c.send:
			if !open {
				c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ping.C:
			kind = websocket.PingMessage
		}

		if err := c.write(kind, data); err != nil {
			c.logger.DebugContext(c.ctx, "websocket write failed",
				slog.Int("frame", kind),
				slog.String("error", err.Error()))
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}
