// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// LLMCompletionDuration tracks completion call latency including retries.
	LLMCompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// LLMRetriesTotal counts completion retries caused by upstream rate limits.
	LLMRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_rate_limit_retries_total",
			Help: "Completion retries after an upstream rate limit",
		},
		[]string{"provider"},
	)

	// CompletionRejectedTotal counts requests refused by the local limiter.
	CompletionRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "completion_rate_limited_total",
			Help: "Completion requests rejected by the per-client limiter",
		},
	)

	// CRMPagesTotal counts contact pages fetched from the CRM.
	CRMPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_pages_fetched_total",
			Help: "Contact pages fetched from the CRM",
		},
	)

	// CRMAuthAttemptsTotal counts page requests per auth strategy and outcome.
	CRMAuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_auth_attempts_total",
			Help: "CRM page requests by authentication strategy",
		},
		[]string{"strategy", "result"},
	)

	// ActionPlansTotal counts generated plans by how the reply was parsed.
	ActionPlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_plans_generated_total",
			Help: "Generated action plans by parse mode",
		},
		[]string{"parse_mode"},
	)

	// SSEConnectionsActive tracks open plan event streams.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// PlanEventsTotal counts plan lifecycle events published.
	PlanEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_events_published_total",
			Help: "Plan lifecycle events published",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordCompletion records metrics for a finished completion call.
func RecordCompletion(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	LLMCompletionDuration.WithLabelValues(provider, status).Observe(duration)
	if model == "" {
		return
	}
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordCRMAttempt records one CRM page request attempt.
func RecordCRMAttempt(strategy string, ok bool) {
	result := "error"
	if ok {
		result = "success"
	}
	CRMAuthAttemptsTotal.WithLabelValues(strategy, result).Inc()
}

// IncrementSSEConnections increments active SSE connections.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements active SSE connections.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
