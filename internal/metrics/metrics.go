// Package metrics exposes the websocket manager's counters to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pondwatch/internal/ws"
)

type Metrics struct {
	registry *prometheus.Registry
}

// New registers gauges backed directly by the manager's stats snapshot,
// so scrapes always see live values without a separate update loop.
func New(stats func() ws.Stats) *Metrics {
	registry := prometheus.NewRegistry()

	gauge := func(name, help string, value func(ws.Stats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "pondwatch",
			Subsystem: "ws",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stats()) })
	}

	registry.MustRegister(
		gauge("active_connections", "Number of live websocket connections.",
			func(s ws.Stats) float64 { return float64(s.ActiveConnections) }),
		gauge("total_connections", "Connections accepted since process start.",
			func(s ws.Stats) float64 { return float64(s.TotalConnections) }),
		gauge("resources_with_connections", "Ponds with at least one live connection.",
			func(s ws.Stats) float64 { return float64(s.ResourcesWithConnections) }),
		gauge("owners_with_connections", "Users with at least one live connection.",
			func(s ws.Stats) float64 { return float64(s.OwnersWithConnections) }),
		gauge("messages_sent_total", "Messages delivered to clients.",
			func(s ws.Stats) float64 { return float64(s.MessagesSent) }),
		gauge("messages_received_total", "Messages received from clients.",
			func(s ws.Stats) float64 { return float64(s.MessagesReceived) }),
	)

	return &Metrics{registry: registry}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
