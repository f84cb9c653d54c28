package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/config"
	"rollbook/internal/shared/testutil"
	"rollbook/pkg/contracts/events"
)

func startTestServer(t *testing.T, allowed []string) (*Hub, *httptest.Server, *testutil.LogSink) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	t.Cleanup(hub.Stop)

	upgrader := NewUpgrader(config.Default().WebSocket, allowed, logger)
	server := httptest.NewServer(hub.ServeWS(upgrader))
	t.Cleanup(server.Close)
	return hub, server, logs
}

func dial(t *testing.T, server *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) events.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg events.WebSocketMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_ConnectAndBroadcast(t *testing.T) {
	hub, server, _ := startTestServer(t, nil)

	conn := dial(t, server, nil)
	connect := readMessage(t, conn)
	assert.Equal(t, events.MessageTypeConnect, connect.Type)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastMessage(events.NewMessage(events.MessageTypeRosterUpdated, events.RosterUpdated{
		Source:   "upload",
		Students: 3,
		Dates:    4,
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, events.MessageTypeRosterUpdated, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "upload", data["source"])
	assert.Equal(t, float64(3), data["students"])
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, server, logs := startTestServer(t, nil)

	conn := dial(t, server, nil)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return logs.ContainsMessage("Client unregistered") }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), hub.Stats()["total_connections"])
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, server, _ := startTestServer(t, nil)

	conn := dial(t, server, nil)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)

	// broadcasting after stop is a no-op
	hub.BroadcastMessage(events.NewMessage(events.MessageTypeRosterUpdated, nil))
	hub.Stop()
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		ok      bool
	}{
		{name: "no origin header", allowed: []string{"http://localhost:8080"}, origin: "", ok: true},
		{name: "allowed origin", allowed: []string{"http://localhost:8080"}, origin: "http://LOCALHOST:8080", ok: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://school.example", ok: true},
		{name: "foreign origin", allowed: []string{"http://localhost:8080"}, origin: "https://evil.example", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			upgrader := NewUpgrader(config.Default().WebSocket, tt.allowed, logger)

			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.ok, upgrader.CheckOrigin(r))
		})
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, server, _ := startTestServer(t, []string{"http://localhost:8080"})

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServeWS_StoppedHub(t *testing.T) {
	hub, server, _ := startTestServer(t, nil)
	hub.Stop()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
