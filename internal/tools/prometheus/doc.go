// Package prometheus provides MCP tools for interacting with Prometheus servers
// across multiple named regions.
//
// This package implements the following MCP tools:
//
// Query Tools:
//   - execute_query: Execute PromQL instant queries
//   - execute_range_query: Execute PromQL range queries with time bounds
//
// Discovery Tools:
//   - list_metrics: List available metrics with filtering and pagination
//   - get_metric_metadata: Get metadata for specific metrics
//   - get_targets: Get information about scrape targets
//
// Operational Tools:
//   - health_check: Probe connectivity for one region or all regions
//
// Every tool takes an optional case-insensitive region argument and
// echoes the canonical resolved region name in its result; absent a
// region, the configured default region is used.
//
// Authentication Support (per region):
//   - Basic authentication via username/password
//   - Bearer token authentication (takes precedence)
//   - Multi-tenant organization ID headers and custom headers
//
// Metric-name listings are served from a per-region cache with a five
// minute TTL; when a refresh fails, stale data is served as a degraded
// fallback rather than surfacing an error.
//
// Example tool usage:
//
//	execute_query: {"query": "up", "region": "atl"}
//	execute_range_query: {"query": "rate(http_requests_total[5m])", "start": "2023-01-01T00:00:00Z", "end": "2023-01-01T01:00:00Z", "step": "1m"}
//	list_metrics: {"filter_pattern": "http", "limit": 50, "offset": 0}
//	get_metric_metadata: {"metric": "http_requests_total", "region": "blr"}
//	get_targets: {}
//	health_check: {}
package prometheus
