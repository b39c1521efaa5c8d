package hub

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
)

func (h *Hub) runSweep(ctx context.Context, ticker clockwork.Ticker, sweep func()) {
	defer h.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			sweep()
		}
	}
}

// pingSweep pings connections that have been quiet for IdleThreshold and
// evicts those quiet for PongTimeout. Evictions happen after the scan.
func (h *Hub) pingSweep() {
	now := h.clock.Now()

	var toPing []target
	var expired []string

	h.mu.Lock()
	for id, conn := range h.connections {
		idle := now.Sub(conn.lastPing)
		switch {
		case idle >= h.opts.PongTimeout:
			expired = append(expired, id)
		case idle >= h.opts.IdleThreshold:
			conn.alive = false
			toPing = append(toPing, target{id: id, socket: conn.socket})
		}
	}
	h.mu.Unlock()

	var pingFailed []string
	for _, t := range toPing {
		if err := t.socket.Ping(); err != nil {
			h.logger.Warn("ping failed", "connection_id", t.id, "error", err)
			pingFailed = append(pingFailed, t.id)
		}
	}

	for _, id := range expired {
		h.disconnect(id, eventbus.CloseReasonPongTimeout)
	}
	for _, id := range pingFailed {
		h.disconnect(id, eventbus.CloseReasonPingFailed)
	}

	if len(toPing) > 0 || len(expired) > 0 {
		h.logger.Debug("ping sweep complete",
			"pinged", len(toPing),
			"ping_failed", len(pingFailed),
			"expired", len(expired),
		)
	}
}

// cleanupSweep evicts connections quiet for StaleTimeout regardless of the
// ping cycle.
func (h *Hub) cleanupSweep() {
	now := h.clock.Now()

	var stale []string

	h.mu.Lock()
	for id, conn := range h.connections {
		if now.Sub(conn.lastPing) >= h.opts.StaleTimeout {
			stale = append(stale, id)
		}
	}
	h.mu.Unlock()

	for _, id := range stale {
		h.disconnect(id, eventbus.CloseReasonStale)
	}

	if len(stale) > 0 {
		h.logger.Info("cleanup sweep evicted stale connections", "count", len(stale))
	}
}

// touch marks a connection alive. It reports the connection's user and
// kitchen, or ok=false for an unknown id.
func (h *Hub) touch(id string) (userID, kitchenID int64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.connections[id]
	if !ok {
		return 0, 0, false
	}
	conn.alive = true
	conn.lastPing = h.clock.Now()
	return conn.userID, conn.kitchenID, true
}
