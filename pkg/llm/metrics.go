package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "origami_upstream_latency_seconds",
		Help:    "Time spent on upstream completion requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
)
