package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Abhishekverma657/AroundU-backend/internal/config"
	"github.com/Abhishekverma657/AroundU-backend/internal/delivery/ws"
	"github.com/Abhishekverma657/AroundU-backend/internal/logging"
	"github.com/Abhishekverma657/AroundU-backend/internal/registry"
)

// Handler owns the HTTP surface: websocket upgrade and health check
type Handler struct {
	orch     *ws.Orchestrator
	reg      *registry.Registry
	cfg      *config.Config
	log      logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the HTTP handler with an origin-checked upgrader
func NewHandler(orch *ws.Orchestrator, reg *registry.Registry, cfg *config.Config, log logging.Logger) *Handler {
	h := &Handler{
		orch: orch,
		reg:  reg,
		cfg:  cfg,
		log:  log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.isOriginAllowed(r.Header.Get("Origin"))
		},
	}
	return h
}

// isOriginAllowed checks if the origin is in the allowed list.
// Empty origin is allowed (same-origin and non-browser clients).
func (h *Handler) isOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the connection and starts its session
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	client := ws.NewClient(h.orch, conn, uuid.New().String())
	if err := h.orch.HandleConnect(client); err != nil {
		h.log.Error("session setup failed", "error", err.Error())
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// HandleHealth reports liveness plus participant and room counts
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	participants, rooms := h.reg.Counts()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       "ok",
		"participants": participants,
		"rooms":        rooms,
	})
}
