package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompilationsTotal counts finished compilations by terminal status.
	CompilationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facto_compilations_total",
			Help: "Total number of compilations by terminal status",
		},
		[]string{"status"},
	)

	// CompileDuration tracks wall-clock compilation time in seconds.
	CompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facto_compile_duration_seconds",
			Help:    "Duration of compilations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 11), // 50ms to ~50s
		},
	)

	// QueueDepth tracks the number of jobs waiting for the compile slot.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facto_queue_depth",
			Help: "Number of jobs waiting for the compilation slot",
		},
	)

	// JobsRunning is 0 or 1; the compiler never runs concurrently.
	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facto_jobs_running",
			Help: "Number of currently running compilations",
		},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facto_rate_limited_total",
			Help: "Total number of rate-limited requests",
		},
	)
)
