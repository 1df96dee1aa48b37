package worker

import "github.com/prometheus/client_golang/prometheus"

// llmBuckets covers inference latencies from 100ms to 2 minutes.
var llmBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmworker",
			Subsystem: "jobs",
			Name:      "total",
			Help:      "Jobs handled, by outcome and error kind",
		},
		[]string{"outcome", "kind"},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmworker",
			Subsystem: "jobs",
			Name:      "tokens_total",
			Help:      "Tokens processed by direction (input/output)",
		},
		[]string{"direction"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmworker",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Wall time from admission to the last record",
			Buckets:   llmBuckets,
		},
	)

	jobsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llmworker",
			Subsystem: "jobs",
			Name:      "inflight",
			Help:      "Jobs currently generating",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, tokensTotal, jobDuration, jobsInflight)
}
