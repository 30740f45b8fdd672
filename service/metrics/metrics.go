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
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Upstream HTTP API Metrics (indexer, metadata, summarizer)
	upstreamCallsTotal   *prometheus.CounterVec
	upstreamCallDuration *prometheus.HistogramVec

	// Price Metrics
	priceProviderCallsTotal *prometheus.CounterVec
	priceCacheLookupsTotal  *prometheus.CounterVec
	priceFallbacksTotal     *prometheus.CounterVec

	// Feed and Trading Metrics
	transactionsNormalizedTotal *prometheus.CounterVec
	transactionsDroppedTotal    *prometheus.CounterVec
	tradesClassifiedTotal       *prometheus.CounterVec
	summarizationsTotal         *prometheus.CounterVec

	// Dashboard Metrics
	dashboardLoadDuration *prometheus.HistogramVec
	dashboardLoadsTotal   *prometheus.CounterVec

	// Workflow Metrics
	refreshActivityDuration *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
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

		// Upstream HTTP API Metrics
		upstreamCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_calls_total",
				Help: "Total number of upstream HTTP API calls by service, operation and status",
			},
			[]string{"service", "operation", "status"},
		),
		upstreamCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_call_duration_seconds",
				Help:    "Duration of upstream HTTP API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"service", "operation"},
		),

		// Price Metrics
		priceProviderCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_provider_calls_total",
				Help: "Total number of price provider requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		priceCacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_cache_lookups_total",
				Help: "Total number of price cache lookups by result (fresh, stale, miss)",
			},
			[]string{"asset", "result"},
		),
		priceFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_fallbacks_total",
				Help: "Total number of degraded price answers by kind (stale_cache, default)",
			},
			[]string{"asset", "kind"},
		),

		// Feed and Trading Metrics
		transactionsNormalizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_normalized_total",
				Help: "Total number of transactions normalized into the feed by type",
			},
			[]string{"type"},
		),
		transactionsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_dropped_total",
				Help: "Total number of transactions dropped from the feed by reason",
			},
			[]string{"reason"},
		),
		tradesClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trades_classified_total",
				Help: "Total number of trades classified by side",
			},
			[]string{"side"},
		),
		summarizationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizations_total",
				Help: "Total number of summarization requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		// Dashboard Metrics
		dashboardLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_load_duration_seconds",
				Help:    "Duration of a full dashboard load in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		dashboardLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_loads_total",
				Help: "Total number of dashboard loads by status",
			},
			[]string{"status"},
		),

		// Workflow Metrics
		refreshActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refresh_activity_duration_seconds",
				Help:    "Duration of refresh workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"wallet_address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"wallet_address", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Upstream metric helpers

// RecordUpstreamCall records a call to an upstream HTTP API.
func (m *Metrics) RecordUpstreamCall(service, operation string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.upstreamCallsTotal.WithLabelValues(service, operation, status).Inc()
	m.upstreamCallDuration.WithLabelValues(service, operation).Observe(duration)
}

// Price metric helpers

// RecordPriceProviderCall records one request to a price provider.
func (m *Metrics) RecordPriceProviderCall(provider, status string) {
	m.priceProviderCallsTotal.WithLabelValues(provider, status).Inc()
}

// RecordPriceCacheLookup records a cache lookup result ("fresh", "stale", "miss").
func (m *Metrics) RecordPriceCacheLookup(asset, result string) {
	m.priceCacheLookupsTotal.WithLabelValues(asset, result).Inc()
}

// RecordPriceFallback records a degraded price answer.
func (m *Metrics) RecordPriceFallback(asset, kind string) {
	m.priceFallbacksTotal.WithLabelValues(asset, kind).Inc()
}

// Feed and trading metric helpers

// RecordTransactionNormalized records a transaction that made it into the feed.
func (m *Metrics) RecordTransactionNormalized(txType string) {
	m.transactionsNormalizedTotal.WithLabelValues(txType).Inc()
}

// RecordTransactionDropped records a transaction dropped from the feed.
func (m *Metrics) RecordTransactionDropped(reason string) {
	m.transactionsDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordTradeClassified records a classified trade.
func (m *Metrics) RecordTradeClassified(side string) {
	m.tradesClassifiedTotal.WithLabelValues(side).Inc()
}

// RecordSummarization records a summarization attempt ("success", "error", "empty", "skipped").
func (m *Metrics) RecordSummarization(kind, outcome string) {
	m.summarizationsTotal.WithLabelValues(kind, outcome).Inc()
}

// Dashboard metric helpers

// RecordDashboardLoad records a dashboard load with duration.
func (m *Metrics) RecordDashboardLoad(status string, duration float64) {
	m.dashboardLoadDuration.WithLabelValues(status).Observe(duration)
	m.dashboardLoadsTotal.WithLabelValues(status).Inc()
}

// Workflow metric helpers

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.refreshActivityDuration.WithLabelValues(activity).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(walletAddress string, delta float64) {
	m.sseActiveConnections.WithLabelValues(walletAddress).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(walletAddress, eventType string) {
	m.sseEventsSent.WithLabelValues(walletAddress, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
