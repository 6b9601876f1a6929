package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for checkout, webhook and tenant routing health
var (
	CheckoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_sessions_total",
			Help: "Total number of checkout session attempts by outcome",
		},
		[]string{"outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_webhook_events_total",
			Help: "Total number of payment webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	TenantCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_tenant_cache_lookups_total",
			Help: "Total number of hostname to tenant lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CheckoutSessionsTotal)
		prometheus.MustRegister(WebhookEventsTotal)
		prometheus.MustRegister(TenantCacheLookupsTotal)
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
	})
}
