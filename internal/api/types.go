package api

import (
	"encoding/json"

	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

// HealthResponse is the body of GET /api/v1/health
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// DeliveryResponse reports how many sockets a push reached
type DeliveryResponse struct {
	Delivered int `json:"delivered"`
}

// MessageRequest is a raw envelope pushed through the API
type MessageRequest struct {
	Type domain.MessageType `json:"type"`
	Data json.RawMessage    `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
