package hub

import (
	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

// socketHandler binds the lifecycle callbacks of one socket to its id
type socketHandler struct {
	hub *Hub
	id  string
}

func (s *socketHandler) OnMessage(data []byte) {
	s.hub.handleMessage(s.id, data)
}

func (s *socketHandler) OnPong() {
	if _, _, ok := s.hub.touch(s.id); !ok {
		s.hub.logger.Warn("pong from unknown connection", "connection_id", s.id)
	}
}

func (s *socketHandler) OnClose() {
	s.hub.disconnect(s.id, eventbus.CloseReasonClosed)
}

func (s *socketHandler) OnError(err error) {
	s.hub.logger.Warn("socket error", "connection_id", s.id, "error", err)
	s.hub.disconnect(s.id, eventbus.CloseReasonError)
}

var _ domain.SocketHandler = (*socketHandler)(nil)

func (h *Hub) handleMessage(id string, data []byte) {
	msg, err := domain.DecodeInbound(data)
	if err != nil {
		h.recorder.MessageDropped()
		h.logger.Warn("dropping malformed message",
			"connection_id", id,
			"size", len(data),
			"error", err,
		)
		return
	}

	userID, kitchenID, ok := h.touch(id)
	if !ok {
		h.logger.Warn("message from unknown connection", "connection_id", id, "message_type", msg.Type)
		return
	}

	h.logger.Debug("message received", "connection_id", id, "message_type", msg.Type)
	h.publish(eventbus.NewEvent(eventbus.EventMessageReceived, id, userID, kitchenID, h.clock.Now()).WithMessage(msg))
}
