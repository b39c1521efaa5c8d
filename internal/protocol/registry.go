package protocol

import (
	"context"
	"sync"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

// Handler reacts to one client message
type Handler interface {
	Handle(ctx context.Context, event *eventbus.Event) error
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, event *eventbus.Event) error

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, event *eventbus.Event) error {
	return f(ctx, event)
}

// Registry maps message types to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.MessageType]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.MessageType]Handler),
	}
}

// Register sets the handler for a message type, replacing any previous one
func (r *Registry) Register(messageType domain.MessageType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[messageType] = handler
}

// Get returns the handler for a message type
func (r *Registry) Get(messageType domain.MessageType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[messageType]
	return handler, ok
}

// Handle routes the event's message to its handler
func (r *Registry) Handle(ctx context.Context, event *eventbus.Event) error {
	if event.Message == nil {
		return errors.New(errors.ErrorTypeProtocol, "MISSING_MESSAGE", "event carries no message")
	}

	handler, ok := r.Get(event.Message.Type)
	if !ok {
		return errors.New(errors.ErrorTypeNotFound, "HANDLER_NOT_FOUND", "no handler registered").
			WithDetails(string(event.Message.Type))
	}

	return handler.Handle(ctx, event)
}
