// Package cmd provides the command-line interface for the MCP Prometheus server.
//
// This package implements the Cobra CLI framework to provide commands for:
// - Starting the MCP server with various transport options (stdio, sse, http)
// - Managing server configuration and lifecycle
//
// The main entry point is the serve command which starts the MCP server and
// registers all Prometheus-related tools for querying metrics across regions,
// discovering metrics metadata, and retrieving target information.
//
// Environment Variables:
//   - PROMETHEUS_URL_<REGION>: Prometheus server URL for a named region
//   - PROMETHEUS_USERNAME_<REGION>: Optional basic auth username
//   - PROMETHEUS_PASSWORD_<REGION>: Optional basic auth password
//   - PROMETHEUS_TOKEN_<REGION>: Optional bearer token (wins over basic auth)
//   - PROMETHEUS_SSL_VERIFY_<REGION>: Optional, set to false to skip TLS verification
//   - PROMETHEUS_CUSTOM_HEADERS_<REGION>: Optional JSON object of extra headers
//   - PROMETHEUS_DEFAULT_REGION: Region used when a tool call names none
//   - PROMETHEUS_URL: Legacy single-region URL, configures region "default"
//   - ORG_ID: Optional organization ID for multi-tenant setups
//   - PROMETHEUS_DISABLE_LINKS: Optional, suppresses Prometheus UI links
//
// Example usage:
//
//	mcp-prometheus serve --transport stdio
//	mcp-prometheus serve --transport sse --http-addr :8080 --metrics-addr :9091
package cmd
