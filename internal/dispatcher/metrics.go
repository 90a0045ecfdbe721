package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_insight_dispatch_total",
			Help: "Total number of upstream calls run by the dispatcher",
		},
		[]string{"model", "outcome"},
	)

	dispatchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_insight_dispatch_retries_total",
			Help: "Total number of resubmitted upstream calls",
		},
		[]string{"model"},
	)

	dispatchWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resume_insight_dispatch_wait_seconds",
			Help:    "Time a call spent queued before it was dispatched",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"model"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resume_insight_dispatch_queue_depth",
			Help: "Number of calls waiting per model",
		},
		[]string{"model"},
	)
)
