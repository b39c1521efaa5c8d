package protocol

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

// Router dispatches client messages published on the event bus
type Router struct {
	registry *Registry
	logger   *logging.Logger
	errors   errors.Handler
}

// NewRouter creates a router with no handlers
func NewRouter(logger *logging.Logger) *Router {
	logger = logger.WithFields(map[string]any{"component": "protocol"})

	return &Router{
		registry: NewRegistry(),
		logger:   logger,
		errors:   errors.NewDefaultHandler(logger.Logger),
	}
}

// NewHubRouter creates a router with the built-in handlers wired to a hub
func NewHubRouter(dispatcher domain.Dispatcher, clock clockwork.Clock, logger *logging.Logger) *Router {
	router := NewRouter(logger)

	router.Register(domain.MessageTypePing, NewPingHandler(dispatcher, clock))

	return router
}

// Register sets the handler for a message type
func (r *Router) Register(messageType domain.MessageType, handler Handler) {
	r.registry.Register(messageType, handler)
}

// Handle routes one message.received event
func (r *Router) Handle(ctx context.Context, event *eventbus.Event) error {
	return r.registry.Handle(ctx, event)
}

// Attach subscribes the router to message.received on bus and returns the
// subscription id.
func (r *Router) Attach(bus eventbus.Bus) string {
	return bus.Subscribe(eventbus.EventMessageReceived, r.onEvent)
}

func (r *Router) onEvent(event *eventbus.Event) {
	logger := r.logger.WithFields(map[string]any{
		"connection_id": event.ConnectionID,
		"event_id":      event.ID,
	})
	ctx := logging.WithLogger(context.Background(), logger)

	err := r.Handle(ctx, event)
	if err == nil {
		return
	}

	if errors.TypeOf(err) == errors.ErrorTypeNotFound {
		logger.Debug("unrouted message", "error", err)
		return
	}

	r.errors.HandleWithLogger(ctx, err, logger.Logger)
}
