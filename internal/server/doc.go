// Package server provides the core server infrastructure for the MCP Prometheus server.
//
// This package contains:
// - ServerContext: Configuration and shared resources management
// - Logger interface: Structured logging abstraction
// - PrometheusConfig: Multi-region Prometheus connection settings
// - Configuration options: Functional options pattern for server setup
//
// The ServerContext manages the lifecycle of the server and provides
// thread-safe access to configuration options such as:
// - Debug mode toggle
// - Per-region Prometheus connection settings and credentials
// - Default region selection and tenant scoping
//
// Region configuration is loaded once at startup from environment
// variables (PROMETHEUS_URL_<REGION> and friends) and is read-only
// thereafter; tests substitute a whole PrometheusConfig via
// WithPrometheusConfig instead of mutating shared state.
//
// Example usage:
//
//	ctx := context.Background()
//	serverContext, err := server.NewServerContext(ctx,
//	    server.WithDebugMode(true),
//	    server.WithLogger(logger),
//	)
package server
