package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

type call struct {
	method  string
	id      int64
	message domain.Message
	data    any
}

type fakeHub struct {
	mu        sync.Mutex
	calls     []call
	delivered int
	conns     map[string]domain.ConnectionInfo
}

func (f *fakeHub) record(c call) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.delivered
}

func (f *fakeHub) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func (f *fakeHub) SendToConnection(id string, m domain.Message) bool {
	return f.record(call{method: "connection", message: m}) > 0
}
func (f *fakeHub) SendToKitchen(id int64, m domain.Message) int {
	return f.record(call{method: "kitchen", id: id, message: m})
}
func (f *fakeHub) SendToUser(id int64, m domain.Message) int {
	return f.record(call{method: "user", id: id, message: m})
}
func (f *fakeHub) Broadcast(m domain.Message) int {
	return f.record(call{method: "broadcast", message: m})
}
func (f *fakeHub) SendOrderUpdate(id int64, data any) int {
	return f.record(call{method: "order", id: id, data: data})
}
func (f *fakeHub) SendBatchUpdate(id int64, data any) int {
	return f.record(call{method: "batch", id: id, data: data})
}
func (f *fakeHub) SendCapacityUpdate(id int64, data any) int {
	return f.record(call{method: "capacity", id: id, data: data})
}
func (f *fakeHub) SendNotification(id int64, data any) int {
	return f.record(call{method: "notification", id: id, data: data})
}

func (f *fakeHub) Connection(id string) (domain.ConnectionInfo, bool) {
	info, ok := f.conns[id]
	return info, ok
}

func (f *fakeHub) Disconnect(id string) bool {
	_, ok := f.conns[id]
	delete(f.conns, id)
	return ok
}

func (f *fakeHub) Stats() domain.HubStats {
	return domain.HubStats{
		TotalConnections:     len(f.conns),
		ActiveKitchens:       1,
		ConnectedUsers:       1,
		ConnectionsByKitchen: map[int64]int{10: len(f.conns)},
	}
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestAPI(apiKey string) (http.Handler, *fakeHub) {
	hub := &fakeHub{
		delivered: 2,
		conns: map[string]domain.ConnectionInfo{
			"c1": {ID: "c1", UserID: 1, KitchenID: 10, State: domain.ConnectionStateAlive},
		},
	}
	return New(hub, Options{
		APIKey: apiKey,
		Logger: logging.Discard(),
		Clock:  clockwork.NewFakeClockAt(testNow),
	}), hub
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth_NoKeyRequired(t *testing.T) {
	h, _ := newTestAPI("secret")

	rec := do(t, h, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Connections)
}

func TestAPIKey(t *testing.T) {
	h, _ := newTestAPI("secret")

	rec := do(t, h, http.MethodGet, "/api/v1/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/stats", "", map[string]string{APIKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/stats", "", map[string]string{APIKeyHeader: "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.HubStats](t, rec)
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ConnectionsByKitchen[10])
}

func TestKitchenPushes(t *testing.T) {
	h, hub := newTestAPI("")

	for path, method := range map[string]string{
		"/api/v1/kitchens/10/orders":   "order",
		"/api/v1/kitchens/10/batches":  "batch",
		"/api/v1/kitchens/10/capacity": "capacity",
	} {
		rec := do(t, h, http.MethodPost, path, `{"orderId":7}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, 2, decode[DeliveryResponse](t, rec).Delivered)

		c := hub.last(t)
		assert.Equal(t, method, c.method)
		assert.EqualValues(t, 10, c.id)
		assert.JSONEq(t, `{"orderId":7}`, string(c.data.(json.RawMessage)))
	}
}

func TestKitchenMessage(t *testing.T) {
	h, hub := newTestAPI("")

	rec := do(t, h, http.MethodPost, "/api/v1/kitchens/10/messages", `{"type":"order_update","data":{"orderId":1}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	c := hub.last(t)
	assert.Equal(t, "kitchen", c.method)
	assert.Equal(t, domain.MessageTypeOrderUpdate, c.message.Type)
	assert.Equal(t, testNow.UnixMilli(), c.message.Timestamp)
}

func TestUserEndpoints(t *testing.T) {
	h, hub := newTestAPI("")

	rec := do(t, h, http.MethodPost, "/api/v1/users/5/notifications", `{"text":"ready"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := hub.last(t)
	assert.Equal(t, "notification", c.method)
	assert.EqualValues(t, 5, c.id)

	rec = do(t, h, http.MethodPost, "/api/v1/users/5/messages", `{"type":"notification"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c = hub.last(t)
	assert.Equal(t, "user", c.method)
	assert.Nil(t, c.message.Data)
}

func TestBroadcast(t *testing.T) {
	h, hub := newTestAPI("")

	rec := do(t, h, http.MethodPost, "/api/v1/broadcast", `{"type":"notification","data":"closing"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "broadcast", hub.last(t).method)
}

func TestBadRequests(t *testing.T) {
	h, _ := newTestAPI("")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"non numeric kitchen", "/api/v1/kitchens/abc/orders", `{}`, http.StatusBadRequest},
		{"invalid json data", "/api/v1/kitchens/10/orders", `{nope`, http.StatusBadRequest},
		{"missing type", "/api/v1/broadcast", `{"data":1}`, http.StatusBadRequest},
		{"not a message", "/api/v1/users/5/messages", `[1,2]`, http.StatusBadRequest},
		{"too large", "/api/v1/kitchens/10/orders", `"` + strings.Repeat("x", maxBodySize) + `"`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestConnections(t *testing.T) {
	h, _ := newTestAPI("")

	rec := do(t, h, http.MethodGet, "/api/v1/connections/c1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 10, decode[domain.ConnectionInfo](t, rec).KitchenID)

	rec = do(t, h, http.MethodGet, "/api/v1/connections/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CONNECTION_NOT_FOUND", decode[errorResponse](t, rec).Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/connections/c1", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/connections/c1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
