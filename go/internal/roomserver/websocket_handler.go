package roomserver

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for room connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	app               *App
}

func NewWebSocketHandler(cm *ConnectionManager, app *App) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		app:               app,
	}
}

// HandleRoomConnection handles GET /ws/{room_id}?username=
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	username := r.URL.Query().Get("username")
	if roomID == "" || username == "" {
		http.Error(w, "room_id and username are required", http.StatusBadRequest)
		return
	}

	if _, err := h.app.GetRoom(r.Context(), roomID); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to load room")
		http.Error(w, "failed to load room", http.StatusInternalServerError)
		return
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, roomID, username)
	if err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("username", username).
			Msg("failed to open room connection")
		return
	}

	h.app.Joined(r.Context(), roomID, conn.UserID, conn.Username)
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{room_id}", h.HandleRoomConnection)
	mux.HandleFunc("GET /stats", h.HandleConnectionStats)
}
