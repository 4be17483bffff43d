package automod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "leviathan_automod_actions_total",
	Help: "Number of messages acted on, by rule",
}, []string{"rule"})

var evaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "leviathan_automod_errors_total",
	Help: "Number of evaluation failures, by cause",
}, []string{"cause"})

var evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "leviathan_automod_evaluation_duration_seconds",
	Help:    "Time spent evaluating one message, platform calls included",
	Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
})
