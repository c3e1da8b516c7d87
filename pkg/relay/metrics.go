package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "origami_relay_requests_total",
		Help: "Relay invocations by provider and outcome",
	}, []string{"provider", "outcome"})

	floodDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "origami_flood_dropped_total",
		Help: "Inbound messages dropped by the flood guard",
	})

	promptTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "origami_completion_tokens",
		Help:    "Token count per completed prompt and reply",
		Buckets: []float64{1, 10, 50, 100, 500, 1_000, 2_000, 4_000, 8_000, 16_000},
	}, []string{"provider"})
)
