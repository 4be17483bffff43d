package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "leviathan_scheduler_items_total",
	Help: "Number of reminders and giveaways retired, by kind and outcome",
}, []string{"kind", "outcome"})
