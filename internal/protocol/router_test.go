package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

type sentMessage struct {
	connectionID string
	message      domain.Message
}

type fakeDispatcher struct {
	mu      sync.Mutex
	sent    []sentMessage
	deliver bool
}

func (d *fakeDispatcher) SendToConnection(connectionID string, message domain.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{connectionID: connectionID, message: message})
	return d.deliver
}

func (d *fakeDispatcher) SendToKitchen(int64, domain.Message) int { return 0 }
func (d *fakeDispatcher) SendToUser(int64, domain.Message) int    { return 0 }
func (d *fakeDispatcher) Broadcast(domain.Message) int            { return 0 }

func (d *fakeDispatcher) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMessage(nil), d.sent...)
}

func messageEvent(t *testing.T, connectionID string, raw string) *eventbus.Event {
	t.Helper()
	msg, err := domain.DecodeInbound([]byte(raw))
	require.NoError(t, err)
	return eventbus.NewEvent(eventbus.EventMessageReceived, connectionID, 1, 10, time.Now()).WithMessage(msg)
}

func TestRegistry_Handle(t *testing.T) {
	reg := NewRegistry()

	var got *eventbus.Event
	reg.Register(domain.MessageTypePing, HandlerFunc(func(_ context.Context, e *eventbus.Event) error {
		got = e
		return nil
	}))

	event := messageEvent(t, "c1", `{"type":"ping"}`)
	require.NoError(t, reg.Handle(context.Background(), event))
	assert.Same(t, event, got)

	err := reg.Handle(context.Background(), messageEvent(t, "c1", `{"type":"order_update"}`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))

	err = reg.Handle(context.Background(), eventbus.NewEvent(eventbus.EventMessageReceived, "c1", 1, 10, time.Now()))
	assert.Equal(t, errors.ErrorTypeProtocol, errors.TypeOf(err))
}

func TestPingHandler_RepliesWithPong(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	dispatcher := &fakeDispatcher{deliver: true}
	router := NewHubRouter(dispatcher, clock, logging.Discard())

	err := router.Handle(context.Background(), messageEvent(t, "c1", `{"type":"ping","data":{"seq":4}}`))
	require.NoError(t, err)

	sent := dispatcher.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "c1", sent[0].connectionID)
	assert.Equal(t, domain.MessageTypePong, sent[0].message.Type)
	assert.Equal(t, int64(1_700_000_000_000), sent[0].message.Timestamp)

	payload, err := json.Marshal(sent[0].message)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong","data":{"seq":4},"timestamp":1700000000000}`, string(payload))
}

func TestPingHandler_UndeliveredPong(t *testing.T) {
	dispatcher := &fakeDispatcher{deliver: false}
	router := NewHubRouter(dispatcher, clockwork.NewFakeClock(), logging.Discard())

	err := router.Handle(context.Background(), messageEvent(t, "gone", `{"type":"ping"}`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeTransport, errors.TypeOf(err))
}

func TestRouter_AttachToBus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(logging.Config{Level: "debug", Format: "json"}, &buf)

	dispatcher := &fakeDispatcher{deliver: true}
	router := NewHubRouter(dispatcher, clockwork.NewFakeClock(), logger)

	bus := eventbus.NewInMemoryBus(4)
	router.Attach(bus)

	bus.Publish(messageEvent(t, "c1", `{"type":"ping"}`))
	bus.Publish(messageEvent(t, "c1", `{"type":"mystery"}`))
	bus.Publish(eventbus.NewEvent(eventbus.EventConnectionOpened, "c2", 1, 10, time.Now()))

	sent := dispatcher.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "c1", sent[0].connectionID)
	assert.Contains(t, buf.String(), "unrouted message")
}
