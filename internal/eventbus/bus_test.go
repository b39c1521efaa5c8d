package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBus_PublishRoutesByType(t *testing.T) {
	bus := NewInMemoryBus(8)

	var opened, all []*Event
	bus.Subscribe(EventConnectionOpened, func(e *Event) { opened = append(opened, e) })
	bus.SubscribeAll(func(e *Event) { all = append(all, e) })

	bus.Publish(NewEvent(EventConnectionOpened, "c1", 1, 10, time.Now()))
	bus.Publish(NewEvent(EventMessageReceived, "c1", 1, 10, time.Now()))

	require.Len(t, opened, 1)
	assert.Equal(t, "c1", opened[0].ConnectionID)
	assert.Len(t, all, 2)
}

func TestInMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryBus(8)

	calls := 0
	id := bus.Subscribe(EventConnectionClosed, func(*Event) { calls++ })
	allID := bus.SubscribeAll(func(*Event) { calls++ })

	bus.Unsubscribe(id)
	bus.Unsubscribe(allID)
	bus.Publish(NewEvent(EventConnectionClosed, "c1", 1, 10, time.Now()))

	assert.Zero(t, calls)
}

func TestInMemoryBus_PublishAsyncDelivers(t *testing.T) {
	bus := NewInMemoryBus(8)

	var mu sync.Mutex
	var got []string
	bus.Subscribe(EventConnectionClosed, func(e *Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(e.Reason))
	})

	bus.Start(context.Background())
	defer bus.Stop()

	require.True(t, bus.PublishAsync(NewEvent(EventConnectionClosed, "c1", 1, 10, time.Now()).WithReason(CloseReasonStale)))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == string(CloseReasonStale)
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryBus_PublishAsyncDropsWhenFull(t *testing.T) {
	bus := NewInMemoryBus(1)

	assert.True(t, bus.PublishAsync(NewEvent(EventConnectionOpened, "c1", 1, 10, time.Now())))
	assert.False(t, bus.PublishAsync(NewEvent(EventConnectionOpened, "c2", 1, 10, time.Now())))
}

func TestInMemoryBus_HandlerMaySubscribe(t *testing.T) {
	bus := NewInMemoryBus(1)

	bus.SubscribeAll(func(*Event) {
		bus.Subscribe(EventConnectionOpened, func(*Event) {})
	})

	done := make(chan struct{})
	go func() {
		bus.Publish(NewEvent(EventConnectionOpened, "c1", 1, 10, time.Now()))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish deadlocked when a handler subscribed")
	}
}
