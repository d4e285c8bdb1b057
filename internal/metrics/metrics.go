// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Виды переходов платежа.
const (
	TransitionRecognized   = "recognized"
	TransitionDerecognized = "derecognized"
	TransitionAdjusted     = "adjusted"
	TransitionNone         = "none"
)

var (
	// PaymentTransitions считает изменения платежей по влиянию на доход.
	PaymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectdesk_payment_transitions_total",
			Help: "Payment mutations by their effect on recognized income",
		},
		[]string{"transition"},
	)

	// ConsistencyFailures считает откаты транзакций из-за нарушения финансовых инвариантов.
	ConsistencyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projectdesk_consistency_failures_total",
			Help: "Transactions rolled back because a financial invariant recheck failed",
		},
	)

	// ReadRetries считает повторы аналитических запросов.
	ReadRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectdesk_read_retries_total",
			Help: "Analytics read queries retried after a failure",
		},
		[]string{"query"},
	)

	// DashboardBuildDuration измеряет время сборки сводки (секунды).
	DashboardBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "projectdesk_dashboard_build_duration_seconds",
			Help:    "Dashboard snapshot build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	// DashboardCacheRequests считает обращения к кэшу сводки.
	DashboardCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectdesk_dashboard_cache_requests_total",
			Help: "Dashboard cache lookups by result",
		},
		[]string{"result"}, // result: hit, miss, error
	)

	// HTTPRequestDuration измеряет длительность HTTP-запросов (секунды).
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route", "status"},
	)
)

// IncrementPaymentTransition увеличивает счётчик переходов платежа.
func IncrementPaymentTransition(transition string) {
	PaymentTransitions.WithLabelValues(transition).Inc()
}

// IncrementConsistencyFailure увеличивает счётчик нарушений инвариантов.
func IncrementConsistencyFailure() {
	ConsistencyFailures.Inc()
}

// IncrementReadRetry увеличивает счётчик повторов чтения.
func IncrementReadRetry(query string) {
	ReadRetries.WithLabelValues(query).Inc()
}

// RecordDashboardBuild записывает время сборки сводки.
func RecordDashboardBuild(duration time.Duration) {
	DashboardBuildDuration.Observe(duration.Seconds())
}

// IncrementDashboardCache увеличивает счётчик обращений к кэшу.
func IncrementDashboardCache(result string) {
	DashboardCacheRequests.WithLabelValues(result).Inc()
}

// RecordHTTPRequestDuration записывает длительность HTTP-запроса.
func RecordHTTPRequestDuration(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
