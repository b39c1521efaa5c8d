package domain

import (
	"encoding/json"
	"time"
)

// MessageType tags every envelope so clients can route it
type MessageType string

const (
	MessageTypeConnectionEstablished MessageType = "connection_established"
	MessageTypeOrderUpdate           MessageType = "order_update"
	MessageTypeBatchUpdate           MessageType = "batch_update"
	MessageTypeCapacityUpdate        MessageType = "capacity_update"
	MessageTypeNotification          MessageType = "notification"
	MessageTypePing                  MessageType = "ping"
	MessageTypePong                  MessageType = "pong"
)

// Message is the envelope written to clients.
type Message struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
	Timestamp int64       `json:"timestamp"`
	KitchenID *int64      `json:"kitchenId,omitempty"`
	UserID    *int64      `json:"userId,omitempty"`
}

// NewMessage creates a message stamped with the given time
func NewMessage(messageType MessageType, data any, now time.Time) Message {
	return Message{
		Type:      messageType,
		Data:      data,
		Timestamp: now.UnixMilli(),
	}
}

// ForKitchen returns a copy of the message tagged with a kitchen id
func (m Message) ForKitchen(kitchenID int64) Message {
	m.KitchenID = &kitchenID
	return m
}

// ForUser returns a copy of the message tagged with a user id
func (m Message) ForUser(userID int64) Message {
	m.UserID = &userID
	return m
}

// InboundMessage is the envelope clients send to the hub. Data is kept raw so
// that each consumer decodes only the payloads it understands.
type InboundMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// DecodeInbound parses a client frame. A frame without a type is rejected.
func DecodeInbound(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, NewDomainError(ErrCodeInvalid, "malformed message", err)
	}

	if msg.Type == "" {
		return nil, NewDomainError(ErrCodeInvalid, "message type is required", ErrInvalidMessage)
	}

	return &msg, nil
}

// Decode unmarshals the payload into v
func (m *InboundMessage) Decode(v any) error {
	if len(m.Data) == 0 {
		return ErrInvalidMessage
	}
	return json.Unmarshal(m.Data, v)
}
