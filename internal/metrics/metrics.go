package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleDuration tracks how long each background loop body takes
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storarr_cycle_duration_seconds",
			Help:    "Duration of background loop cycles by loop",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"loop"},
	)

	// CycleTotal counts finished loop cycles by outcome
	CycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storarr_cycles_total",
			Help: "Total background loop cycles by loop and result",
		},
		[]string{"loop", "result"},
	)

	GateWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storarr_gate_wait_seconds",
			Help:    "Time spent waiting for the execution gate by task",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 30, 120},
		},
		[]string{"task"},
	)

	GateHold = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storarr_gate_hold_seconds",
			Help:    "Time the execution gate was held by task",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 30, 120},
		},
		[]string{"task"},
	)

	// TransitionsTotal counts representation changes by kind and outcome
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storarr_transitions_total",
			Help: "Total state transitions by transition and result",
		},
		[]string{"transition", "result"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storarr_upstream_requests_total",
			Help: "Total outbound requests by service and status code",
		},
		[]string{"service", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storarr_upstream_request_duration_seconds",
			Help:    "Outbound request latency by service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// MediaItems is refreshed after every library scan
	MediaItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storarr_media_items",
			Help: "Tracked media items by state",
		},
		[]string{"state"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storarr_notifications_dropped_total",
			Help: "Notifications dropped because a subscriber was not keeping up",
		},
	)
)

// Result labels
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)
