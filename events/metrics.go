package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_bus_events_published_total",
	Help: "Total number of events published on the bus",
}, []string{"kind"})

var eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_bus_events_dropped_total",
	Help: "Total number of events dropped due to slow subscribers",
})
