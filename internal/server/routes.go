package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const (
	historyDefaultLimit = 150
	historyMaxLimit     = 1000
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.corsMiddleware)

	r.HandleFunc("/health", s.HealthHandler)
	r.HandleFunc("/api/rooms", s.RoomDirectoryHandler)
	r.HandleFunc("/api/rooms/{code}/history", s.RoomHistoryHandler)
	r.HandleFunc("/api/profile", s.ProfileHandler)
	r.HandleFunc("/api/profile/history", s.ProfileHistoryHandler)

	r.HandleFunc("/ws", s.coord.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"rooms":         s.coord.RoomCount(),
		"connections":   s.coord.Connections().Count(),
		"profiles":      s.coord.Profiles().Count(),
		"eventSequence": s.coord.History().Sequence(),
	})
}

// RoomDirectoryHandler lists every live room with its joinability, so a lobby
// browser can offer rooms without guessing codes.
func (s *Server) RoomDirectoryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": s.coord.RoomDirectory(),
	})
}

// RoomHistoryHandler pages backward through one room's event journal.
// Query params: before (sequence cursor, 0 = newest), limit (1..1000).
func (s *Server) RoomHistoryHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	before, limit := pagination(r)
	res := s.coord.History().QueryRoom(code, before, limit)
	writeJSON(w, http.StatusOK, res)
}

// ProfileHandler resolves a profile token to the profile record plus the rooms
// where it currently holds a seat.
func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("profileToken")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profileToken is required"})
		return
	}
	prof, ok := s.coord.Profiles().Lookup(token)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown profile token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":     prof,
		"activeRooms": s.coord.ActiveRoomsFor(prof.ProfileID),
	})
}

// ProfileHistoryHandler pages backward through every event that referenced
// the profile, across all its rooms.
func (s *Server) ProfileHistoryHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("profileToken")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profileToken is required"})
		return
	}
	prof, ok := s.coord.Profiles().Lookup(token)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown profile token"})
		return
	}
	before, limit := pagination(r)
	res := s.coord.History().QueryProfile(prof.ProfileID, before, limit)
	writeJSON(w, http.StatusOK, res)
}

// pagination reads the before/limit query params, clamping limit into
// [1, historyMaxLimit] with a default of historyDefaultLimit.
func pagination(r *http.Request) (uint64, int) {
	var before uint64
	if raw := r.URL.Query().Get("before"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			before = v
		}
	}
	limit := historyDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}
	return before, limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response encode failed")
	}
}
