package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "leviathan_handler_messages_total",
	Help: "Number of inbound messages, by route",
}, []string{"route"})

var messageErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "leviathan_handler_errors_total",
	Help: "Number of messages whose processing failed",
})

var activeHandlers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "leviathan_handler_active",
	Help: "Messages currently being processed",
})

var processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "leviathan_handler_duration_seconds",
	Help:    "Time spent processing one message",
	Buckets: prometheus.DefBuckets,
})
