package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "leviathan_api_requests_total",
	Help: "Admin API requests, by method, route and status code",
}, []string{"method", "route", "code"})

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "leviathan_api_request_duration_seconds",
	Help:    "Admin API request latency, by route",
	Buckets: prometheus.DefBuckets,
}, []string{"route"})
