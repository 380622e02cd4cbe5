package roomserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RoomHandler handles the REST room endpoints
type RoomHandler struct {
	app *App
}

func NewRoomHandler(app *App) *RoomHandler {
	return &RoomHandler{app: app}
}

// HandleGetRoom handles GET /room/{room_id}
func (h *RoomHandler) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	room, err := h.app.GetRoom(r.Context(), roomID)
	if errors.Is(err, ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to get room")
		http.Error(w, "failed to get room", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// HandleCreateRoom handles POST /room
func (h *RoomHandler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.app.CreateRoom(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to create room")
		http.Error(w, "failed to create room", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

// RegisterRoutes registers the REST routes with an HTTP mux
func (h *RoomHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /room/{room_id}", h.HandleGetRoom)
	mux.HandleFunc("POST /room", h.HandleCreateRoom)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
