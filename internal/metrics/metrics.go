package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cookiedrop/kitchenhub/internal/eventbus"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

const namespace = "kitchenhub"

// Recorder exports hub activity as Prometheus metrics
type Recorder struct {
	registry *prometheus.Registry

	openConnections   prometheus.Gauge
	connectionsOpened prometheus.Counter
	connectionsClosed *prometheus.CounterVec
	evictions         *prometheus.CounterVec
	messagesSent      *prometheus.CounterVec
	sendFailures      *prometheus.CounterVec
	messagesDropped   prometheus.Counter
}

// New creates a recorder with its own registry, including the Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of sockets currently registered with the hub",
		}),
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Total number of sockets registered with the hub",
		}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of sockets removed from the hub by reason",
		}, []string{"reason"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_evictions_total",
			Help:      "Total number of sockets evicted by a liveness sweep",
		}, []string{"sweep"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of envelopes queued to sockets by type",
		}, []string{"type"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Total number of failed socket writes by type",
		}, []string{"type"}),
		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_dropped_total",
			Help:      "Total number of malformed client messages dropped",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.openConnections,
		r.connectionsOpened,
		r.connectionsClosed,
		r.evictions,
		r.messagesSent,
		r.sendFailures,
		r.messagesDropped,
	)

	return r
}

// ConnectionOpened records a registered socket
func (r *Recorder) ConnectionOpened() {
	r.openConnections.Inc()
	r.connectionsOpened.Inc()
}

// ConnectionClosed records a removed socket
func (r *Recorder) ConnectionClosed(reason eventbus.CloseReason) {
	r.openConnections.Dec()
	r.connectionsClosed.WithLabelValues(string(reason)).Inc()

	switch reason {
	case eventbus.CloseReasonPingFailed, eventbus.CloseReasonPongTimeout:
		r.evictions.WithLabelValues("ping").Inc()
	case eventbus.CloseReasonStale:
		r.evictions.WithLabelValues("cleanup").Inc()
	}
}

// otherType labels message types the hub does not define itself
const otherType = "other"

var knownTypes = map[domain.MessageType]struct{}{
	domain.MessageTypeConnectionEstablished: {},
	domain.MessageTypeOrderUpdate:           {},
	domain.MessageTypeBatchUpdate:           {},
	domain.MessageTypeCapacityUpdate:        {},
	domain.MessageTypeNotification:          {},
	domain.MessageTypePong:                  {},
}

// typeLabel keeps the type label bounded; callers may push arbitrary types.
func typeLabel(messageType domain.MessageType) string {
	if _, ok := knownTypes[messageType]; ok {
		return string(messageType)
	}
	return otherType
}

// MessageSent records a queued envelope
func (r *Recorder) MessageSent(messageType domain.MessageType) {
	r.messagesSent.WithLabelValues(typeLabel(messageType)).Inc()
}

// SendFailed records a failed write
func (r *Recorder) SendFailed(messageType domain.MessageType) {
	r.sendFailures.WithLabelValues(typeLabel(messageType)).Inc()
}

// MessageDropped records a malformed client message
func (r *Recorder) MessageDropped() {
	r.messagesDropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
