// Package metrics provides Prometheus metrics for the Aster service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DealMovesTotal tracks deal stage moves by outcome
	DealMovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "board",
			Name:      "deal_moves_total",
			Help:      "Total number of deal stage moves by status",
		},
		[]string{"tenant_id", "status"},
	)

	// StageReordersTotal tracks stage reorder transactions by outcome
	StageReordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "board",
			Name:      "stage_reorders_total",
			Help:      "Total number of stage reorder transactions by status",
		},
		[]string{"tenant_id", "status"},
	)

	// StageReorderDuration tracks the duration of the reorder transaction
	StageReorderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aster",
			Subsystem: "board",
			Name:      "stage_reorder_duration_seconds",
			Help:      "Duration of stage reorder transactions in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// EventsPublishedTotal tracks board events published to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of board events published by type",
		},
		[]string{"type"},
	)

	// WebsocketClients tracks currently connected websocket clients
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aster",
			Subsystem: "realtime",
			Name:      "websocket_clients",
			Help:      "Number of currently connected websocket clients",
		},
	)

	// WebsocketEventsDelivered tracks events fanned out to websocket clients
	WebsocketEventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "realtime",
			Name:      "events_delivered_total",
			Help:      "Total number of events delivered to websocket clients",
		},
	)

	// BoardCacheHits tracks pipeline cache lookups by result
	BoardCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "cache",
			Name:      "pipeline_lookups_total",
			Help:      "Total number of pipeline cache lookups by result",
		},
		[]string{"result"},
	)
)
