package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/cookiedrop/kitchenhub/internal/auth"
	"github.com/cookiedrop/kitchenhub/internal/logging"
)

// SocketOptions tunes one accepted connection
type SocketOptions struct {
	WriteTimeout   time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

// DefaultSocketOptions returns default socket options
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 256,
	}
}

// ServerOptions represents websocket server options
type ServerOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	Connector       Connector
	Authenticator   auth.Authenticator
	Logger          *logging.Logger
	Socket          SocketOptions
}

// ServerOption is a function that configures ServerOptions
type ServerOption func(*ServerOptions)

// WithConnector sets the hub that accepted sockets are handed to
func WithConnector(connector Connector) ServerOption {
	return func(o *ServerOptions) {
		o.Connector = connector
	}
}

// WithAuthenticator sets how upgrade requests are authenticated
func WithAuthenticator(authenticator auth.Authenticator) ServerOption {
	return func(o *ServerOptions) {
		o.Authenticator = authenticator
	}
}

// WithLogger sets the logger for the server
func WithLogger(logger *logging.Logger) ServerOption {
	return func(o *ServerOptions) {
		o.Logger = logger
	}
}

// WithCheckOrigin sets the check origin function
func WithCheckOrigin(checkOrigin func(r *http.Request) bool) ServerOption {
	return func(o *ServerOptions) {
		o.CheckOrigin = checkOrigin
	}
}

// AllowOrigins accepts browser upgrades only from the listed origins.
// Requests without an Origin header are always accepted.
func AllowOrigins(origins ...string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}

// WithMaxMessageSize limits the size of a client frame
func WithMaxMessageSize(size int64) ServerOption {
	return func(o *ServerOptions) {
		o.Socket.MaxMessageSize = size
	}
}

// WithSendBufferSize sets how many outbound frames may queue per socket
func WithSendBufferSize(size int) ServerOption {
	return func(o *ServerOptions) {
		o.Socket.SendBufferSize = size
	}
}

// WithWriteTimeout sets the deadline of every frame write
func WithWriteTimeout(timeout time.Duration) ServerOption {
	return func(o *ServerOptions) {
		o.Socket.WriteTimeout = timeout
	}
}
