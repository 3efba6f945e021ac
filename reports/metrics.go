package reports

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reportsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reports_received_total",
	Help: "Total number of new reports recorded",
}, []string{"reason"})

var duplicateReports = promauto.NewCounter(prometheus.CounterOpts{
	Name: "reports_duplicate_total",
	Help: "Total number of submissions folded into an existing open report",
})
