package spamwindow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var trackedKeys = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "leviathan_spamwindow_tracked_keys",
	Help: "Number of (community, author) windows held in memory after the last sweep",
})
