// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "classattend"

var (
	// Verifications counts verify outcomes by result code ("Accepted" or a reject reason).
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Attendance verifications by result code.",
	}, []string{"result"})

	VerifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "verify_duration_seconds",
		Help:      "Latency of attendance verification including the commit.",
		Buckets:   prometheus.DefBuckets,
	})

	// SessionEvents counts lifecycle transitions: started, rotated, ended, expired.
	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Session lifecycle transitions.",
	}, []string{"event"})

	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_failures_total",
		Help:      "Attendance notifications that could not be published.",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_subscribers",
		Help:      "Open live attendance streams.",
	})
)
