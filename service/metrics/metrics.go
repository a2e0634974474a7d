package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaEndpointProbes   *prometheus.CounterVec

	// Purchase Pipeline Metrics
	purchasesTotal           *prometheus.CounterVec
	purchaseDuration         *prometheus.HistogramVec
	purchaseRejectionsTotal  *prometheus.CounterVec
	simulationRejectedTotal  *prometheus.CounterVec
	rateLimitHitsTotal       prometheus.Counter
	confirmationPollsPerTx   *prometheus.HistogramVec

	// Vault Metrics
	vaultTokenBalance prometheus.Gauge

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsEventsPublished *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaEndpointProbes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_endpoint_probes_total",
				Help: "Liveness probe results per RPC endpoint during failover selection",
			},
			[]string{"endpoint", "status"},
		),

		purchasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_total",
				Help: "Total number of purchase attempts by terminal outcome",
			},
			[]string{"outcome"},
		),
		purchaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "purchase_duration_seconds",
				Help:    "End-to-end duration of purchase attempts in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		purchaseRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchase_rejections_total",
				Help: "Purchase attempts rejected before submission, by stage",
			},
			[]string{"stage"},
		),
		simulationRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simulation_rejected_total",
				Help: "Transactions blocked by pre-flight simulation, by reason",
			},
			[]string{"reason"},
		),
		rateLimitHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_hits_total",
				Help: "Purchase attempts refused by the per-address rate limiter",
			},
		),
		confirmationPollsPerTx: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_polls_per_transaction",
				Help:    "Number of status polls consumed per submitted transaction",
				Buckets: []float64{1, 2, 3, 5, 10, 15, 20, 30},
			},
			[]string{"outcome"},
		),

		vaultTokenBalance: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vault_token_balance",
				Help: "Current vault token account balance in whole tokens",
			},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method, and status",
			},
			[]string{"handler", "method", "status"},
		),

		natsEventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_events_published_total",
				Help: "Purchase events published to NATS by status",
			},
			[]string{"status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, durationSeconds float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordEndpointProbe records a liveness probe result for an endpoint.
func (m *Metrics) RecordEndpointProbe(endpoint, status string) {
	m.solanaEndpointProbes.WithLabelValues(endpoint, status).Inc()
}

// RecordPurchase records a terminal purchase outcome and its duration.
func (m *Metrics) RecordPurchase(outcome string, durationSeconds float64) {
	m.purchasesTotal.WithLabelValues(outcome).Inc()
	m.purchaseDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordPurchaseRejection records an attempt stopped before submission.
func (m *Metrics) RecordPurchaseRejection(stage string) {
	m.purchaseRejectionsTotal.WithLabelValues(stage).Inc()
}

// RecordSimulationRejected records a transaction blocked by pre-flight checks.
func (m *Metrics) RecordSimulationRejected(reason string) {
	m.simulationRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordRateLimitHit records a refusal by the per-address rate limiter.
func (m *Metrics) RecordRateLimitHit() {
	m.rateLimitHitsTotal.Inc()
}

// RecordConfirmationPolls records how many polls one submission consumed.
func (m *Metrics) RecordConfirmationPolls(outcome string, polls float64) {
	m.confirmationPollsPerTx.WithLabelValues(outcome).Observe(polls)
}

// SetVaultTokenBalance updates the vault balance gauge.
func (m *Metrics) SetVaultTokenBalance(balance float64) {
	m.vaultTokenBalance.Set(balance)
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, durationSeconds float64) {
	status := httpStatusClass(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(durationSeconds)
}

// RecordNATSPublish records a NATS publish attempt.
func (m *Metrics) RecordNATSPublish(status string) {
	m.natsEventsPublished.WithLabelValues(status).Inc()
}

// httpStatusClass collapses status codes to their class to keep label
// cardinality low.
func httpStatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
