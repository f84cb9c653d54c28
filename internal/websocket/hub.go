// Package websocket pushes live roster and leave updates to dashboard
// clients over gorilla/websocket.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rollbook/internal/infrastructure"
	"rollbook/pkg/contracts/events"
)

const broadcastBuffer = 64

// Hub maintains the set of active clients and broadcasts messages to them.
// Only the Run goroutine adds or removes clients.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	quit     chan struct{}
	done     chan struct{}
	stateMu  sync.Mutex
	running  bool
	stopOnce sync.Once

	pingPeriod time.Duration
	pongWait   time.Duration

	logger  *slog.Logger
	metrics *infrastructure.AttendanceMetrics

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
}

// NewHub creates a new Hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.AttendanceMetrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		pingPeriod: defaultPingPeriod,
		pongWait:   defaultPongWait,
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// SetKeepalive overrides the ping period and pong wait. Call before Start.
func (h *Hub) SetKeepalive(pingPeriod, pongWait time.Duration) {
	if pongWait > 0 {
		h.pongWait = pongWait
	}
	if pingPeriod > 0 && pingPeriod < h.pongWait {
		h.pingPeriod = pingPeriod
	} else {
		h.pingPeriod = (h.pongWait * 9) / 10
	}
}

// Start runs the hub loop in its own goroutine. It is idempotent.
func (h *Hub) Start() {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.Run()
}

// Run is the hub's main loop
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.closeAll()
			h.logger.Info("Hub shut down",
				slog.Int64("total_connections", h.totalConnections.Load()),
				slog.Int64("messages_sent", h.messagesSent.Load()))
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "closed")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.totalConnections.Add(1)

	ctx := client.ctx
	h.metrics.RecordWebSocketClients(ctx, 1)
	h.logger.InfoContext(ctx, "Client registered",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("total_clients", count))

	msg := events.NewMessage(events.MessageTypeConnect, map[string]string{
		"client_id": client.id,
		"message":   "Connected to Rollbook live updates",
	})
	msg.TraceID = client.traceID
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(ctx, "Failed to send connect message, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.ctx
	h.metrics.RecordWebSocketClients(ctx, -1)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", count))
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	failed := 0
	for _, client := range clients {
		select {
		case client.send <- message:
			h.messagesSent.Add(1)
		default:
			failed++
			h.removeClient(client, "send buffer full")
		}
	}

	h.logger.Debug("Broadcast message",
		slog.Int("clients", len(clients)),
		slog.Int("failed", failed),
		slog.Int("size", len(message)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		h.metrics.RecordWebSocketClients(context.Background(), -1)
	}
}

// BroadcastMessage queues a message for every connected client. Messages
// are dropped when the hub is not running or its queue is full.
func (h *Hub) BroadcastMessage(msg events.WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode broadcast message",
			slog.String("type", string(msg.Type)),
			slog.String("error", err.Error()))
		return
	}
	h.BroadcastJSON(data)
}

// BroadcastJSON queues a pre-encoded message.
func (h *Hub) BroadcastJSON(data []byte) {
	if !h.isRunning() {
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.quit:
	default:
		h.messagesDropped.Add(1)
		h.logger.Warn("Broadcast queue full, dropping message", slog.Int("size", len(data)))
	}
}

// Register adds a client to the hub. The connection is closed if the hub
// has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.conn.Close()
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop disconnects every client and waits for the hub loop to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})

	h.stateMu.Lock()
	wasRunning := h.running
	h.running = false
	h.stateMu.Unlock()

	if wasRunning {
		<-h.done
	}
}

func (h *Hub) isRunning() bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.running
}

// Stats returns hub counters
func (h *Hub) Stats() map[string]int64 {
	return map[string]int64{
		"active_connections": int64(h.ClientCount()),
		"total_connections":  h.totalConnections.Load(),
		"messages_sent":      h.messagesSent.Load(),
		"messages_dropped":   h.messagesDropped.Load(),
	}
}
