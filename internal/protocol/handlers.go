package protocol

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

// NewPingHandler answers an application-level ping with a pong carrying the
// client's payload back.
func NewPingHandler(dispatcher domain.Dispatcher, clock clockwork.Clock) HandlerFunc {
	return func(ctx context.Context, event *eventbus.Event) error {
		var data any
		if len(event.Message.Data) > 0 {
			data = event.Message.Data
		}

		pong := domain.NewMessage(domain.MessageTypePong, data, clock.Now())
		if !dispatcher.SendToConnection(event.ConnectionID, pong) {
			return errors.New(errors.ErrorTypeTransport, "PONG_NOT_DELIVERED", "failed to deliver pong").
				WithDetails(event.ConnectionID)
		}

		logging.FromContext(ctx).Debug("pong sent")
		return nil
	}
}
