package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_transitions_total",
	Help: "Total number of moderation status transitions applied",
}, []string{"from", "to", "trigger"})

var autoFlags = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_auto_flags_total",
	Help: "Total number of automatic threshold flags fired",
})

var reportsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_reports_resolved_total",
	Help: "Total number of reports resolved by moderators",
}, []string{"decision"})
