package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/vladimirruppel/roomchat/internal/metrics"
	"github.com/vladimirruppel/roomchat/internal/protocol"
)

const maxBodyBytes = 8 * 1024

func (s *Server) apiRoutes(r chi.Router) {
	r.Use(s.requestLogger)
	r.Use(recordMetrics)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Get("/rooms", s.handleListRooms)
	r.Post("/rooms/create", s.handleCreateRoom)
	r.Post("/rooms/{id}/join", s.handleJoinRoom)
	r.Get("/rooms/{id}/users", s.handleRoomUsers)
}

type apiError struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorCode *int   `json:"error_code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Status: "error", Message: message})
}

func decodeBody(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	return errors.Wrap(json.NewDecoder(r.Body).Decode(v), "decode body")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeBody(r, &in); err != nil || strings.TrimSpace(in.Username) == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	u, err := s.auth.Register(in.Username, in.Password, in.Role)
	if err != nil {
		s.log.Info().Err(err).Str("username", in.Username).Msg("registration failed")
		writeError(w, http.StatusBadRequest, "Registration failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"user_id":  u.ID,
		"username": u.Username,
		"role":     u.Role,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &in); err != nil || in.Username == "" {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	u, token, err := s.auth.Authenticate(in.Username, in.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"user_id":  u.ID,
		"username": u.Username,
		"role":     u.Role,
		"token":    token,
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"rooms":  s.rooms.List(),
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RoomName  string `json:"room_name"`
		UserID    int64  `json:"user_id"`
		CreatedBy int64  `json:"created_by"`
	}
	err := decodeBody(r, &in)
	if in.UserID == 0 {
		in.UserID = in.CreatedBy
	}
	if err != nil || strings.TrimSpace(in.RoomName) == "" || in.UserID == 0 {
		writeError(w, http.StatusBadRequest, "Invalid request - missing room_name or user_id/created_by")
		return
	}

	room, err := s.rooms.Create(in.RoomName, in.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info().Int64("room_id", room.RoomID).Str("room_name", room.RoomName).Msg("room created")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"room_id":   room.RoomID,
		"room_name": room.RoomName,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid room ID")
		return
	}
	var in struct {
		UserID int64 `json:"user_id"`
	}
	if err := decodeBody(r, &in); err != nil || in.UserID == 0 {
		writeError(w, http.StatusBadRequest, "Missing user_id")
		return
	}

	if err := s.rooms.Join(roomID, in.UserID); err != nil {
		var je *JoinError
		if !errors.As(err, &je) {
			writeError(w, http.StatusInternalServerError, "Failed to join room")
			return
		}
		code := je.Code
		writeJSON(w, http.StatusBadRequest, apiError{Status: "error", Message: je.Error(), ErrorCode: &code})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"room_id": roomID,
		"user_id": in.UserID,
		"message": "Joined room",
	})
}

func (s *Server) handleRoomUsers(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid room ID")
		return
	}
	ids, err := s.rooms.Members(roomID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}

	users := make([]protocol.Identity, 0, len(ids))
	for _, id := range ids {
		entry := protocol.Identity{UserID: id}
		if u, ok := s.auth.UserByID(id); ok {
			entry.Username = u.Username
			entry.Role = u.Role
		}
		users = append(users, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"room_id": roomID,
		"users":   users,
	})
}

func roomIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// requestLogger logs each REST call with zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("latency", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("request completed")
		}()
		next.ServeHTTP(ww, r)
	})
}

// recordMetrics counts requests by route pattern so ids do not explode
// the label space.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ServerHTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
