package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"rollbook/internal/config"
	"rollbook/internal/infrastructure"
)

// originPolicy decides which browser origins may open the live feed.
// Non-browser clients send no Origin and are always let through.
type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.any = true
		}
		p.allowed[strings.ToLower(o)] = struct{}{}
	}
	return p
}

func (p originPolicy) permits(origin string) bool {
	if origin == "" || p.any {
		return true
	}
	_, ok := p.allowed[strings.ToLower(origin)]
	return ok
}

// NewUpgrader builds the /ws upgrader. Rejected handshakes are logged and
// answered with a plain status text body.
func NewUpgrader(cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *websocket.Upgrader {
	policy := newOriginPolicy(allowedOrigins)
	return &websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if policy.permits(origin) {
				return true
			}
			logger.WarnContext(r.Context(), "websocket origin rejected", slog.String("origin", origin))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			logger.WarnContext(r.Context(), "websocket handshake failed",
				slog.Int("status", status),
				slog.String("reason", reason.Error()))
			http.Error(w, http.StatusText(status), status)
		},
	}
}

// ServeWS upgrades dashboard connections and hands them to the hub.
func (h *Hub) ServeWS(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.isRunning() {
			http.Error(w, "live updates unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return // Upgrader.Error already responded
		}

		c := NewClient(h, conn, r.RemoteAddr, infrastructure.GetTraceID(r.Context()), h.logger)
		h.Register(c)
		go c.Serve()
	}
}
