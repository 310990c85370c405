// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlo_inbound_events_total",
		Help: "Inbound events accepted by the ingress gateway, by modality.",
	}, []string{"modality"})

	DuplicateEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlo_duplicate_events_total",
		Help: "Inbound events suppressed by the idempotency check.",
	})

	RepliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlo_outbound_replies_total",
		Help: "Replies delivered to the channel, by kind.",
	}, []string{"kind"})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlo_outbound_failures_total",
		Help: "Replies that exhausted delivery retries or were rejected.",
	})

	JobsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlo_background_jobs_started_total",
		Help: "Background jobs started, by intent.",
	}, []string{"intent"})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlo_background_jobs_completed_total",
		Help: "Background job callbacks consumed, by outcome.",
	}, []string{"outcome"})

	JobsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlo_background_jobs_expired_total",
		Help: "Pending jobs reclaimed by the TTL sweep.",
	})
)
