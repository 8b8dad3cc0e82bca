package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/events"
)

const (
	SyncPath  = events.SyncPath
	StatsPath = "/ws/stats"
	LastPath  = events.LastPath
)

// WebSocketHandler serves the sync websocket and the latest-message API
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleSyncConnection upgrades a context's connection to the relay
func (h *WebSocketHandler) HandleSyncConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		// The upgrader has already replied to the client.
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade websocket connection")
	}
}

// HandleLast serves GET and DELETE on the latest relayed message
func (h *WebSocketHandler) HandleLast(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		last := h.connectionManager.Last()
		if last == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(last); err != nil {
			log.Error().Err(err).Msg("failed to write last sync event")
		}
	case http.MethodDelete:
		h.connectionManager.ClearLast()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers websocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(SyncPath, h.HandleSyncConnection)
	mux.HandleFunc(StatsPath, h.HandleConnectionStats)
	mux.HandleFunc(LastPath, h.HandleLast)
}
