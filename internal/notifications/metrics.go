package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "subtrack"

var (
	remindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Reminder send attempts by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "scan_duration_seconds",
			Help:      "Time to complete one dispatch scan",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	scansSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "scans_skipped_total",
			Help:      "Dispatch ticks skipped because a previous scan was still running",
		},
	)

	callbacksResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "callbacks",
			Name:      "resolved_total",
			Help:      "Inbound channel callbacks by resolution outcome",
		},
		[]string{"outcome"},
	)
)

func recordReminderSent(channel, status string) {
	remindersSent.WithLabelValues(channel, status).Inc()
}

func recordScanDuration(d time.Duration) {
	scanDuration.Observe(d.Seconds())
}

func recordScanSkipped() {
	scansSkipped.Inc()
}

func recordCallbackResolved(outcome string) {
	callbacksResolved.WithLabelValues(outcome).Inc()
}
