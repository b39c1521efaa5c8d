package eventbus

import (
	"time"

	"github.com/rs/xid"

	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

// EventType represents the type of event
type EventType string

// Event types
const (
	EventConnectionOpened EventType = "connection.opened"
	EventConnectionClosed EventType = "connection.closed"
	EventMessageReceived  EventType = "message.received"
)

// CloseReason says why a connection left the hub
type CloseReason string

const (
	CloseReasonClosed       CloseReason = "closed"
	CloseReasonError        CloseReason = "error"
	CloseReasonSendFailed   CloseReason = "send_failed"
	CloseReasonPingFailed   CloseReason = "ping_failed"
	CloseReasonPongTimeout  CloseReason = "pong_timeout"
	CloseReasonStale        CloseReason = "stale"
	CloseReasonShutdown     CloseReason = "shutdown"
	CloseReasonDisconnected CloseReason = "disconnected"
)

// Event is something that happened to one hub connection
type Event struct {
	ID           string                 `json:"id"`
	Type         EventType              `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	ConnectionID string                 `json:"connection_id"`
	UserID       int64                  `json:"user_id"`
	KitchenID    int64                  `json:"kitchen_id"`
	Reason       CloseReason            `json:"reason,omitempty"`
	Message      *domain.InboundMessage `json:"message,omitempty"`
}

// NewEvent creates a new event for a connection
func NewEvent(eventType EventType, connectionID string, userID, kitchenID int64, at time.Time) *Event {
	return &Event{
		ID:           xid.New().String(),
		Type:         eventType,
		Timestamp:    at,
		ConnectionID: connectionID,
		UserID:       userID,
		KitchenID:    kitchenID,
	}
}

// WithMessage attaches the client message that triggered the event
func (e *Event) WithMessage(msg *domain.InboundMessage) *Event {
	e.Message = msg
	return e
}

// WithReason attaches a close reason
func (e *Event) WithReason(reason CloseReason) *Event {
	e.Reason = reason
	return e
}
