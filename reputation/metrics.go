package reputation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var recomputesQueued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "reputation_recomputes_queued_total",
	Help: "Total number of recompute triggers accepted onto the queue",
})

var recomputesDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "reputation_recomputes_dropped_total",
	Help: "Total number of recompute triggers dropped due to a full queue",
})

var recomputesRun = promauto.NewCounter(prometheus.CounterOpts{
	Name: "reputation_recomputes_run_total",
	Help: "Total number of recompute passes executed",
})
