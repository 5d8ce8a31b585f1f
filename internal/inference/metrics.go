package inference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	phaseWarmup   = "warmup"
	phaseGenerate = "generate"
)

var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlstm_steps_total",
		Help: "Forward steps taken, by phase",
	}, []string{"phase"})

	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mlstm_step_duration_seconds",
		Help:    "Time spent in a single forward step",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlstm_sessions_total",
		Help: "Generation sessions, by outcome",
	}, []string{"outcome"})
)
