// Package server is a development chat server speaking the same wire
// protocol and REST API the client expects.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vladimirruppel/roomchat/internal/config"
	"github.com/vladimirruppel/roomchat/internal/protocol"
)

// Server wires the hub, the stores and the HTTP routes together.
type Server struct {
	cfg      config.Server
	log      zerolog.Logger
	hub      *Hub
	auth     *AuthStore
	rooms    *RoomRegistry
	history  *HistoryStore
	upgrader websocket.Upgrader
}

func New(cfg config.Server, log zerolog.Logger) (*Server, error) {
	history, err := NewHistoryStore(cfg.HistoryDir, log)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		log:     log,
		hub:     NewHub(log),
		auth:    NewAuthStore(),
		rooms:   NewRoomRegistry(cfg.MaxUsersPerRoom),
		history: history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dev server: any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Run serves the hub until ctx ends.
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
}

func (s *Server) Auth() *AuthStore { return s.auth }

func (s *Server) Rooms() *RoomRegistry { return s.rooms }

// Handler returns the routes: WebSocket on / and /ws, REST under /api,
// Prometheus on /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", s.ServeWS)
	r.Get("/ws", s.ServeWS)
	r.Route("/api", s.apiRoutes)
	return r
}

// ServeWS upgrades the request and starts the connection's pumps. A
// token, when given as a bearer header or a "token" query parameter,
// must be one issued by login.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	var user *User
	if token := requestToken(r); token != "" {
		u, ok := s.auth.UserByToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		user = u
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(s, conn)
	if user != nil {
		c.userID, c.username = user.ID, user.Username
	}
	s.hub.Register(c)
	c.log.Debug().Str("remote_addr", r.RemoteAddr).Msg("websocket connected")

	c.sendJSON(protocol.Envelope{Type: protocol.TypeConnected})

	go c.writePump()
	go c.readPump()
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
