// Package metrics provides Prometheus instrumentation for the Glow stream
// platform. It exposes gauges for connection, stream, and viewer counts,
// counters for message and gift throughput, and histograms for latency
// tracking.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "glow_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// ActiveStreams tracks the current number of live streams on this instance.
	ActiveStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "glow_active_streams",
		Help: "Current number of live streams",
	})

	// LiveViewers tracks the current total viewer count across all streams.
	LiveViewers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "glow_live_viewers",
		Help: "Current total viewer count across all streams",
	})

	// MessagesTotal counts chat messages by moderation outcome:
	// "delivered", "warned", "muted_rejected", or "blocked".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glow_messages_total",
		Help: "Total number of chat messages processed by outcome",
	}, []string{"outcome"})

	// GiftsTotal counts gift sends labeled by gift ID.
	GiftsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glow_gifts_total",
		Help: "Total number of gifts sent",
	}, []string{"gift"})

	// CoinsTotal counts coin volume by direction: "purchased" or "gifted".
	CoinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "glow_coins_total",
		Help: "Total coin volume by direction",
	}, []string{"direction"})

	// ClassifyLatency records content classifier latency in seconds.
	ClassifyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "glow_classify_latency_seconds",
		Help:    "Content classifier latency in seconds",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		ActiveStreams,
		LiveViewers,
		MessagesTotal,
		GiftsTotal,
		CoinsTotal,
		ClassifyLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
