package rates

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subtrack",
			Subsystem: "rates",
			Name:      "refreshes_total",
			Help:      "Exchange rate refresh attempts by outcome.",
		},
		[]string{"status"},
	)

	keySubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subtrack",
			Subsystem: "rates",
			Name:      "key_submissions_total",
			Help:      "Credential submissions by outcome.",
		},
		[]string{"status"},
	)
)

func recordRefresh(status string) {
	refreshesTotal.WithLabelValues(status).Inc()
}

func recordKeySubmission(status string) {
	keySubmissionsTotal.WithLabelValues(status).Inc()
}
