package realtime

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for chat_messages_dropped_total.
const (
	dropMalformed      = "malformed"
	dropSenderMismatch = "sender_mismatch"
	dropUnknownSender  = "unknown_sender"
)

// Metrics holds the hub's Prometheus collectors. Each Metrics owns its registry,
// so several hubs (tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive  prometheus.Gauge
	OnlineUsers        prometheus.Gauge
	PresenceBroadcasts prometheus.Counter
	MessagesDelivered  *prometheus.CounterVec
	MessagesDropped    *prometheus.CounterVec
	SlowConsumers      prometheus.Counter
}

// NewMetrics creates the collectors plus the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_ws_connections_active",
			Help: "Number of live websocket connections, anonymous ones included",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_presence_online_users",
			Help: "Number of users in the presence table",
		}),
		PresenceBroadcasts: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_presence_broadcasts_total",
			Help: "Total number of presence-changed broadcasts",
		}),
		MessagesDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_delivered_total",
			Help: "Total number of message-delivered frames queued, by target",
		}, []string{"target"}),
		MessagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_dropped_total",
			Help: "Total number of submitted messages dropped without delivery, by reason",
		}, []string{"reason"}),
		SlowConsumers: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_ws_slow_consumers_total",
			Help: "Total number of connections closed because their send queue was full",
		}),
	}
}

// Handler returns an HTTP handler exposing this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
