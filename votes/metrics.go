package votes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var votesCast = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "votes_cast_total",
	Help: "Total number of vote state changes applied to the ledger",
}, []string{"dir"})

var casConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "votes_cas_conflicts_total",
	Help: "Total number of version conflicts encountered while applying counter deltas",
})
