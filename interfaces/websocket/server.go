package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dealgraph/pkg/auth"
)

// Server upgrades HTTP requests onto the feed hub. It is mounted on
// the main router rather than listening on its own.
type Server struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	jwtService *auth.JWTService
	maxConns   int
}

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	MaxConnections  int
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The dashboard is served from arbitrary origins in dev;
		// deployments restrict this through config
		CheckOrigin:    func(r *http.Request) bool { return true },
		MaxConnections: 10000,
	}
}

// NewServer creates a new WebSocket server
func NewServer(hub *Hub, jwtService *auth.JWTService, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger:     logger,
		jwtService: jwtService,
		maxConns:   config.MaxConnections,
	}
}

// HandleFeed handles WebSocket upgrade requests for the live feed
func (s *Server) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if err := s.authenticateRequest(r); err != nil {
		s.logger.Warn("feed authentication failed",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if s.hub.ConnectionCount() >= s.maxConns {
		s.logger.Warn("connection limit reached",
			zap.Int("max_connections", s.maxConns),
		)
		http.Error(w, "Connection limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(s.hub, conn, s.logger)
	client.Start()

	s.logger.Info("feed connection established",
		zap.String("connection_id", client.ID()),
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// authenticateRequest validates the JWT token from the request. With
// authentication disabled every request passes.
func (s *Server) authenticateRequest(r *http.Request) error {
	if s.jwtService == nil || !s.jwtService.Enabled() {
		return nil
	}

	// Browsers cannot set headers on WebSocket upgrades, so the token
	// may arrive as a query parameter
	token := r.URL.Query().Get("token")
	if token == "" {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		if cookie, err := r.Cookie("auth_token"); err == nil {
			token = cookie.Value
		}
	}

	_, err := s.jwtService.ValidateToken(token)
	return err
}

// Hub returns the feed hub
func (s *Server) Hub() *Hub {
	return s.hub
}
