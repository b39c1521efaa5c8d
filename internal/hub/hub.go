package hub

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

// connection is the registry record of one socket. Only the registry owns it;
// the kitchen and user indices refer to it by id.
type connection struct {
	id          string
	userID      int64
	kitchenID   int64
	socket      domain.Socket
	alive       bool
	connectedAt time.Time
	lastPing    time.Time
}

func (c *connection) info() domain.ConnectionInfo {
	state := domain.ConnectionStateAlive
	if !c.alive {
		state = domain.ConnectionStatePendingPing
	}

	return domain.ConnectionInfo{
		ID:          c.id,
		UserID:      c.userID,
		KitchenID:   c.kitchenID,
		State:       state,
		ConnectedAt: c.connectedAt,
		LastPing:    c.lastPing,
	}
}

// Hub tracks live kitchen and storefront connections and fans messages out
// to them.
//
// mu guards connections, kitchens and users together. Sockets are written,
// pinged and closed outside the lock; failed ids are purged afterwards.
type Hub struct {
	mu          sync.Mutex
	connections map[string]*connection
	kitchens    map[int64]map[string]struct{}
	users       map[int64]map[string]struct{}

	logger   *logging.Logger
	clock    clockwork.Clock
	newID    IDGenerator
	events   eventbus.Publisher
	recorder Recorder
	opts     Options

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a hub. Call Start to run the liveness sweeps.
func New(opts Options) *Hub {
	opts = opts.withDefaults()

	return &Hub{
		connections: make(map[string]*connection),
		kitchens:    make(map[int64]map[string]struct{}),
		users:       make(map[int64]map[string]struct{}),
		logger:      opts.Logger.WithFields(map[string]any{"component": "hub"}),
		clock:       opts.Clock,
		newID:       opts.IDGenerator,
		events:      opts.Events,
		recorder:    opts.Recorder,
		opts:        opts,
	}
}

// Start runs the ping and cleanup sweeps until ctx is cancelled or Stop is
// called.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.mu.Unlock()

	// Tickers are created here, not in the goroutines, so that a fake clock
	// advanced right after Start always reaches them.
	pingTicker := h.clock.NewTicker(h.opts.PingInterval)
	cleanupTicker := h.clock.NewTicker(h.opts.CleanupInterval)

	h.wg.Add(2)
	go h.runSweep(ctx, pingTicker, h.pingSweep)
	go h.runSweep(ctx, cleanupTicker, h.cleanupSweep)

	h.logger.Info("hub started",
		"ping_interval", h.opts.PingInterval,
		"cleanup_interval", h.opts.CleanupInterval,
	)
}

// Stop stops both sweeps, closes every socket and clears all indices. It is
// meant for process shutdown.
func (h *Hub) Stop() {
	h.logger.Info("stopping hub")

	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		h.wg.Wait()
	}

	h.mu.Lock()
	conns := h.connections
	h.connections = make(map[string]*connection)
	h.kitchens = make(map[int64]map[string]struct{})
	h.users = make(map[int64]map[string]struct{})
	h.mu.Unlock()

	for id, conn := range conns {
		if err := conn.socket.Close(); err != nil {
			h.logger.Warn("failed to close socket", "connection_id", id, "error", err)
		}
		h.recorder.ConnectionClosed(eventbus.CloseReasonShutdown)
	}

	h.logger.Info("hub stopped", "closed_connections", len(conns))
}

// HandleConnection registers an accepted, authenticated socket for a user
// watching a kitchen and returns its connection id. The caller should start
// reading from the socket only after HandleConnection returns.
func (h *Hub) HandleConnection(socket domain.Socket, userID, kitchenID int64) string {
	id := h.newID()
	now := h.clock.Now()

	socket.SetHandler(&socketHandler{hub: h, id: id})

	h.mu.Lock()
	h.connections[id] = &connection{
		id:          id,
		userID:      userID,
		kitchenID:   kitchenID,
		socket:      socket,
		alive:       true,
		connectedAt: now,
		lastPing:    now,
	}
	addToIndex(h.kitchens, kitchenID, id)
	addToIndex(h.users, userID, id)
	total := len(h.connections)
	h.mu.Unlock()

	h.recorder.ConnectionOpened()
	h.logger.Info("connection established",
		"connection_id", id,
		"user_id", userID,
		"kitchen_id", kitchenID,
		"total_connections", total,
	)
	h.publish(eventbus.NewEvent(eventbus.EventConnectionOpened, id, userID, kitchenID, now))

	h.SendToConnection(id, domain.NewMessage(domain.MessageTypeConnectionEstablished, connectionEstablished{
		ConnectionID: id,
		UserID:       userID,
		KitchenID:    kitchenID,
	}, now))

	return id
}

type connectionEstablished struct {
	ConnectionID string `json:"connectionId"`
	UserID       int64  `json:"userId"`
	KitchenID    int64  `json:"kitchenId"`
}

// Disconnect removes a connection and closes its socket. It returns false
// when the id is not registered, which makes repeated calls harmless.
func (h *Hub) Disconnect(connectionID string) bool {
	return h.disconnect(connectionID, eventbus.CloseReasonDisconnected)
}

func (h *Hub) disconnect(id string, reason eventbus.CloseReason) bool {
	h.mu.Lock()
	conn, ok := h.connections[id]
	if !ok {
		h.mu.Unlock()
		h.logger.Debug("connection already removed", "connection_id", id, "reason", reason)
		return false
	}

	delete(h.connections, id)
	removeFromIndex(h.kitchens, conn.kitchenID, id)
	removeFromIndex(h.users, conn.userID, id)
	total := len(h.connections)
	h.mu.Unlock()

	if err := conn.socket.Close(); err != nil {
		h.logger.Debug("socket close after removal", "connection_id", id, "error", err)
	}

	h.recorder.ConnectionClosed(reason)
	h.logger.Info("connection removed",
		"connection_id", id,
		"user_id", conn.userID,
		"kitchen_id", conn.kitchenID,
		"reason", reason,
		"total_connections", total,
	)
	h.publish(eventbus.NewEvent(eventbus.EventConnectionClosed, id, conn.userID, conn.kitchenID, h.clock.Now()).WithReason(reason))

	return true
}

// Connection returns a snapshot of one registered connection
func (h *Hub) Connection(connectionID string) (domain.ConnectionInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.connections[connectionID]
	if !ok {
		return domain.ConnectionInfo{}, false
	}
	return conn.info(), true
}

// Stats returns counts of connections, kitchens and users. It never changes
// hub state.
func (h *Hub) Stats() domain.HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	byKitchen := make(map[int64]int, len(h.kitchens))
	for kitchenID, ids := range h.kitchens {
		byKitchen[kitchenID] = len(ids)
	}

	return domain.HubStats{
		TotalConnections:     len(h.connections),
		ActiveKitchens:       len(h.kitchens),
		ConnectedUsers:       len(h.users),
		ConnectionsByKitchen: byKitchen,
	}
}

func (h *Hub) publish(event *eventbus.Event) {
	if h.events == nil {
		return
	}
	if !h.events.PublishAsync(event) {
		h.logger.Warn("event queue full, dropping event",
			"event_type", event.Type,
			"connection_id", event.ConnectionID,
		)
	}
}

func addToIndex(index map[int64]map[string]struct{}, key int64, id string) {
	ids, ok := index[key]
	if !ok {
		ids = make(map[string]struct{})
		index[key] = ids
	}
	ids[id] = struct{}{}
}

func removeFromIndex(index map[int64]map[string]struct{}, key int64, id string) {
	ids, ok := index[key]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(index, key)
	}
}
