package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchroom"

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_rooms",
		Help:      "Number of rooms in the registry.",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_connections",
		Help:      "Number of open websocket connections.",
	})

	RoomsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rooms_destroyed_total",
		Help:      "Destroyed rooms by reason.",
	}, []string{"reason"})

	MessagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_messages_handled_total",
		Help:      "Inbound websocket messages by type and outcome.",
	}, []string{"type", "outcome"})

	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_messages_dropped_total",
		Help:      "Outbound messages dropped because a send queue was full.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
