package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RideIncrementsTotal counts metering calls by outcome (recorded, trial_started or a block reason).
	RideIncrementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guincho",
		Subsystem: "metering",
		Name:      "ride_increments_total",
		Help:      "Ride metering calls by outcome.",
	}, []string{"outcome"})

	// AdminActionsTotal counts admin overrides by action and result.
	AdminActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guincho",
		Subsystem: "admin",
		Name:      "actions_total",
		Help:      "Admin override actions by action and result.",
	}, []string{"action", "result"})

	// PlanActivationsTotal counts plan activations by plan and source (admin, checkout).
	PlanActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guincho",
		Subsystem: "billing",
		Name:      "plan_activations_total",
		Help:      "Plan activations by plan and source.",
	}, []string{"plano", "source"})

	// WebhookRequestsTotal counts Stripe webhook deliveries by event type and outcome.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guincho",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Stripe webhook requests by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// TenantResolutionsTotal counts hostname resolutions by how they matched.
	TenantResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guincho",
		Subsystem: "tenant",
		Name:      "resolutions_total",
		Help:      "Tenant resolutions by match kind (main, slug, custom_domain, none, cache).",
	}, []string{"match"})

	// HTTPRequestsTotal counts API requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guincho",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration tracks API latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "guincho",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)
