package hub

import (
	"encoding/json"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

type target struct {
	id     string
	socket domain.Socket
}

// SendToConnection writes a message to one connection. A failed write tears
// the connection down and reports false; it never returns an error.
func (h *Hub) SendToConnection(connectionID string, message domain.Message) bool {
	h.mu.Lock()
	conn, ok := h.connections[connectionID]
	var t target
	if ok {
		t = target{id: connectionID, socket: conn.socket}
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Warn("send to unknown connection", "connection_id", connectionID, "message_type", message.Type)
		return false
	}

	return h.fanOut([]target{t}, message) == 1
}

// SendToKitchen writes a message to every connection watching a kitchen and
// returns how many writes succeeded.
func (h *Hub) SendToKitchen(kitchenID int64, message domain.Message) int {
	if message.KitchenID == nil {
		message = message.ForKitchen(kitchenID)
	}

	h.mu.Lock()
	targets := h.targetsLocked(h.kitchens[kitchenID])
	h.mu.Unlock()

	return h.fanOut(targets, message)
}

// SendToUser writes a message to every connection of a user, one per open
// tab or device.
func (h *Hub) SendToUser(userID int64, message domain.Message) int {
	if message.UserID == nil {
		message = message.ForUser(userID)
	}

	h.mu.Lock()
	targets := h.targetsLocked(h.users[userID])
	h.mu.Unlock()

	return h.fanOut(targets, message)
}

// Broadcast writes a message to every registered connection
func (h *Hub) Broadcast(message domain.Message) int {
	h.mu.Lock()
	targets := make([]target, 0, len(h.connections))
	for id, conn := range h.connections {
		targets = append(targets, target{id: id, socket: conn.socket})
	}
	h.mu.Unlock()

	return h.fanOut(targets, message)
}

// SendOrderUpdate pushes an order_update to a kitchen
func (h *Hub) SendOrderUpdate(kitchenID int64, data any) int {
	return h.SendToKitchen(kitchenID, domain.NewMessage(domain.MessageTypeOrderUpdate, data, h.clock.Now()))
}

// SendBatchUpdate pushes a batch_update to a kitchen
func (h *Hub) SendBatchUpdate(kitchenID int64, data any) int {
	return h.SendToKitchen(kitchenID, domain.NewMessage(domain.MessageTypeBatchUpdate, data, h.clock.Now()))
}

// SendCapacityUpdate pushes a capacity_update to a kitchen
func (h *Hub) SendCapacityUpdate(kitchenID int64, data any) int {
	return h.SendToKitchen(kitchenID, domain.NewMessage(domain.MessageTypeCapacityUpdate, data, h.clock.Now()))
}

// SendNotification pushes a notification to every connection of a user
func (h *Hub) SendNotification(userID int64, data any) int {
	return h.SendToUser(userID, domain.NewMessage(domain.MessageTypeNotification, data, h.clock.Now()))
}

// targetsLocked resolves index ids to sockets. h.mu must be held.
func (h *Hub) targetsLocked(ids map[string]struct{}) []target {
	targets := make([]target, 0, len(ids))
	for id := range ids {
		conn, ok := h.connections[id]
		if !ok {
			h.logger.Error("index references missing connection", "connection_id", id)
			continue
		}
		targets = append(targets, target{id: id, socket: conn.socket})
	}
	return targets
}

// fanOut serializes the message once, writes it to every target and purges
// the targets whose write failed after the whole pass.
func (h *Hub) fanOut(targets []target, message domain.Message) int {
	if len(targets) == 0 {
		return 0
	}

	if message.Timestamp == 0 {
		message.Timestamp = h.clock.Now().UnixMilli()
	}

	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "message_type", message.Type, "error", err)
		return 0
	}

	sent := 0
	var failed []string
	for _, t := range targets {
		if err := t.socket.Send(payload); err != nil {
			h.logger.Warn("send failed",
				"connection_id", t.id,
				"message_type", message.Type,
				"error", err,
			)
			h.recorder.SendFailed(message.Type)
			failed = append(failed, t.id)
			continue
		}
		h.recorder.MessageSent(message.Type)
		sent++
	}

	for _, id := range failed {
		h.disconnect(id, eventbus.CloseReasonSendFailed)
	}

	if len(targets) > 1 {
		h.logger.Debug("dispatch complete",
			"message_type", message.Type,
			"success_count", sent,
			"error_count", len(failed),
		)
	}

	return sent
}
