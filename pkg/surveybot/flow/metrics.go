package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stageRuns counts stage executions by the action they returned
	stageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_stage_runs_total",
		Help: "Stage executions by stage and returned action",
	}, []string{"stage", "action"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "survey_stage_duration_seconds",
		Help:    "Stage execution time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
	}, []string{"stage"})
)
