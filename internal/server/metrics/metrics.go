// Package metrics owns the Prometheus collectors of the game server. All
// methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "klotski"

type Metrics struct {
	connections  prometheus.Gauge
	onlineUsers  prometheus.Gauge
	messages     *prometheus.CounterVec
	broadcasts   prometheus.Counter
	droppedSends prometheus.Counter
	uploads      *prometheus.CounterVec
	evictions    prometheus.Counter
	authAttempts *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "connections",
			Help: "Open websocket connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "online_users",
			Help: "Connections bound to a username.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "messages_total",
			Help: "Inbound websocket messages by type.",
		}, []string{"type"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "broadcasts_total",
			Help: "Board state updates fanned out.",
		}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "dropped_sends_total",
			Help: "Outbound messages that could not be delivered to one recipient.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "saves", Name: "uploads_total",
			Help: "Save uploads by kind and result.",
		}, []string{"kind", "result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "saves", Name: "evictions_total",
			Help: "Manual saves removed by the retention cap.",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "attempts_total",
			Help: "Signup and login attempts by operation and result.",
		}, []string{"op", "result"}),
	}

	for _, c := range []prometheus.Collector{
		m.connections, m.onlineUsers, m.messages, m.broadcasts,
		m.droppedSends, m.uploads, m.evictions, m.authAttempts,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) SetOnlineUsers(n int) {
	if m != nil {
		m.onlineUsers.Set(float64(n))
	}
}

func (m *Metrics) MessageReceived(kind string) {
	if m != nil {
		m.messages.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Broadcast() {
	if m != nil {
		m.broadcasts.Inc()
	}
}

func (m *Metrics) SendDropped() {
	if m != nil {
		m.droppedSends.Inc()
	}
}

func (m *Metrics) SaveUploaded(kind, result string) {
	if m != nil {
		m.uploads.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) SaveEvicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *Metrics) AuthAttempt(op, result string) {
	if m != nil {
		m.authAttempts.WithLabelValues(op, result).Inc()
	}
}
