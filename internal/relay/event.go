package relay

import (
	"encoding/json"
	"time"

	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

// Scope says who a relayed event is for
type Scope string

const (
	ScopeKitchen   Scope = "kitchen"
	ScopeUser      Scope = "user"
	ScopeBroadcast Scope = "broadcast"
)

// Event is one back-office push published on the relay channel
type Event struct {
	Scope     Scope              `json:"scope"`
	KitchenID int64              `json:"kitchenId,omitempty"`
	UserID    int64              `json:"userId,omitempty"`
	Type      domain.MessageType `json:"type"`
	Data      json.RawMessage    `json:"data,omitempty"`
}

// Decode parses and validates a relay payload
func Decode(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, errors.Wrap(err, errors.ErrorTypeProtocol, "INVALID_PAYLOAD", "relay payload is not valid JSON")
	}

	if ev.Type == "" {
		return Event{}, errors.New(errors.ErrorTypeProtocol, "TYPE_REQUIRED", "relay event has no type")
	}

	switch ev.Scope {
	case ScopeKitchen:
		if ev.KitchenID == 0 {
			return Event{}, errors.New(errors.ErrorTypeProtocol, "KITCHEN_REQUIRED", "kitchen event has no kitchenId")
		}
	case ScopeUser:
		if ev.UserID == 0 {
			return Event{}, errors.New(errors.ErrorTypeProtocol, "USER_REQUIRED", "user event has no userId")
		}
	case ScopeBroadcast:
	default:
		return Event{}, errors.New(errors.ErrorTypeProtocol, "UNKNOWN_SCOPE", "unknown relay scope").
			WithDetails(string(ev.Scope))
	}

	return ev, nil
}

// Dispatch delivers ev through d and returns how many sockets it reached
func Dispatch(d domain.Dispatcher, ev Event, now time.Time) int {
	var data any
	if len(ev.Data) > 0 {
		data = ev.Data
	}
	msg := domain.NewMessage(ev.Type, data, now)

	switch ev.Scope {
	case ScopeKitchen:
		return d.SendToKitchen(ev.KitchenID, msg)
	case ScopeUser:
		return d.SendToUser(ev.UserID, msg)
	default:
		return d.Broadcast(msg)
	}
}
