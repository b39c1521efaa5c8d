package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

// Connector registers accepted sockets
type Connector interface {
	HandleConnection(socket domain.Socket, userID, kitchenID int64) string
}

// Server upgrades authenticated requests and hands the sockets to a hub
type Server struct {
	upgrader  websocket.Upgrader
	connector Connector
	logger    *logging.Logger
	errors    errors.Handler
	options   ServerOptions
}

// NewServer creates a new WebSocket server
func NewServer(opts ...ServerOption) *Server {
	options := ServerOptions{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Socket:          DefaultSocketOptions(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = logging.New(logging.Config{Level: "info", Format: "text"})
	}
	logger := options.Logger.WithFields(map[string]any{"component": "websocket"})

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin:     options.CheckOrigin,
		},
		connector: options.Connector,
		logger:    logger,
		errors:    errors.NewDefaultHandler(logger.Logger),
		options:   options,
	}
}

// ServeHTTP implements http.Handler. It blocks until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.connector == nil {
		s.logger.Error("no connector configured")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	if s.options.Authenticator == nil {
		s.logger.Error("no authenticator configured")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	identity, err := s.options.Authenticator.Authenticate(r)
	if err != nil {
		s.errors.HandleWithLogger(r.Context(), err, s.logger.With("remote_addr", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		return
	}

	socket := NewSocket(conn, s.logger.WithFields(map[string]any{
		"user_id":    identity.UserID,
		"kitchen_id": identity.KitchenID,
	}), s.options.Socket)

	id := s.connector.HandleConnection(socket, identity.UserID, identity.KitchenID)

	s.logger.Debug("socket accepted",
		"connection_id", id,
		"remote_addr", r.RemoteAddr,
	)

	socket.Run()

	s.logger.Debug("socket finished", "connection_id", id)
}
