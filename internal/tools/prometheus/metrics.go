package prometheus

import (
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Self-metrics for monitoring the server's own upstream traffic.
var (
	// upstreamRequestsTotal counts outbound Prometheus API requests by
	// region, endpoint, and outcome.
	upstreamRequestsTotal = promauto.NewCounterVec(promclient.CounterOpts{
		Name: "mcp_prometheus_upstream_requests_total",
		Help: "Total outbound Prometheus API requests by region, endpoint and outcome",
	}, []string{"region", "endpoint", "outcome"})

	// upstreamRequestDuration measures outbound request latency by endpoint.
	upstreamRequestDuration = promauto.NewHistogramVec(promclient.HistogramOpts{
		Name:    "mcp_prometheus_upstream_request_duration_seconds",
		Help:    "Outbound Prometheus API request duration in seconds",
		Buckets: promclient.DefBuckets,
	}, []string{"endpoint"})

	// metricsCacheOutcomes counts metric-name cache lookups by outcome.
	metricsCacheOutcomes = promauto.NewCounterVec(promclient.CounterOpts{
		Name: "mcp_prometheus_metrics_cache_outcomes_total",
		Help: "Metric-name cache lookups by region and outcome",
	}, []string{"region", "outcome"})
)
