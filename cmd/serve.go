package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/promregion/mcp-prometheus/internal/server"
	"github.com/promregion/mcp-prometheus/internal/telemetry"
	"github.com/promregion/mcp-prometheus/internal/tools/prometheus"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// zerologLogger adapts a zerolog.Logger to the server.Logger interface.
// Args are alternating key/value pairs.
type zerologLogger struct {
	logger zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, args ...interface{}) {
	l.logger.Debug().Fields(args).Msg(msg)
}

func (l *zerologLogger) Info(msg string, args ...interface{}) {
	l.logger.Info().Fields(args).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, args ...interface{}) {
	l.logger.Warn().Fields(args).Msg(msg)
}

func (l *zerologLogger) Error(msg string, args ...interface{}) {
	l.logger.Error().Fields(args).Msg(msg)
}

// newLogger builds the process logger. Debug mode lowers the level;
// pretty switches to human-readable console output.
func newLogger(debugMode, pretty bool) *zerologLogger {
	level := zerolog.InfoLevel
	if debugMode {
		level = zerolog.DebugLevel
	}

	var out = zerolog.New(os.Stderr)
	if pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return &zerologLogger{
		logger: out.With().Timestamp().Logger().Level(level),
	}
}

// newServeCmd creates the Cobra command for starting the MCP server.
func newServeCmd() *cobra.Command {
	var (
		debugMode  bool
		prettyLogs bool

		// Transport options
		transport       string
		httpAddr        string
		sseEndpoint     string
		messageEndpoint string
		httpEndpoint    string

		// Observability options
		metricsAddr  string
		otlpEndpoint string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP Prometheus server",
		Long: `Start the MCP Prometheus server to provide tools for interacting
with one or more Prometheus regions via the Model Context Protocol.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: Server-Sent Events over HTTP
  - streamable-http: Streamable HTTP transport

Environment Variables:
  PROMETHEUS_URL_<REGION>            - Prometheus server URL for a region (e.g. PROMETHEUS_URL_ATL)
  PROMETHEUS_USERNAME_<REGION>       - Optional: Basic auth username for a region
  PROMETHEUS_PASSWORD_<REGION>       - Optional: Basic auth password for a region
  PROMETHEUS_TOKEN_<REGION>          - Optional: Bearer token for a region (takes precedence over basic auth)
  PROMETHEUS_SSL_VERIFY_<REGION>     - Optional: Set to false to skip TLS verification (default: true)
  PROMETHEUS_CUSTOM_HEADERS_<REGION> - Optional: JSON object of extra headers for a region
  PROMETHEUS_DEFAULT_REGION          - Optional: Region used when a tool call names none
  PROMETHEUS_URL                     - Optional: Legacy single-region URL, configures region "default"
  ORG_ID                             - Optional: Organization ID header for multi-tenant setups
  PROMETHEUS_DISABLE_LINKS           - Optional: Set to true to suppress Prometheus UI links in results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(transport, debugMode, prettyLogs,
				httpAddr, sseEndpoint, messageEndpoint, httpEndpoint,
				metricsAddr, otlpEndpoint)
		},
	}

	// Add flags for configuring the server
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging (default: false)")
	cmd.Flags().BoolVar(&prettyLogs, "pretty-logs", false, "Human-readable console log output instead of JSON")

	// Transport flags
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio, sse, or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for sse and streamable-http transports)")
	cmd.Flags().StringVar(&sseEndpoint, "sse-endpoint", "/sse", "SSE endpoint path (for sse transport)")
	cmd.Flags().StringVar(&messageEndpoint, "message-endpoint", "/message", "Message endpoint path (for sse transport)")
	cmd.Flags().StringVar(&httpEndpoint, "http-endpoint", "/mcp", "HTTP endpoint path (for streamable-http transport)")

	// Observability flags
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address for the self-metrics endpoint (disabled when empty)")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP trace collector endpoint host:port (disabled when empty)")

	return cmd
}

// runServe contains the main server logic with support for multiple transports
func runServe(transport string, debugMode, prettyLogs bool,
	httpAddr, sseEndpoint, messageEndpoint, httpEndpoint string,
	metricsAddr, otlpEndpoint string) error {

	// Setup graceful shutdown - listen for both SIGINT and SIGTERM
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(debugMode, prettyLogs)

	// Create server context
	serverContext, err := server.NewServerContext(shutdownCtx,
		server.WithDebugMode(debugMode),
		server.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			log.Printf("Error during server context shutdown: %v", err)
		}
	}()

	// Optional trace export
	if otlpEndpoint != "" {
		shutdownTracing, err := telemetry.Setup(shutdownCtx, otlpEndpoint, "mcp-prometheus", rootCmd.Version)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.Warn("Error flushing traces during shutdown", "error", err)
			}
		}()
		logger.Info("Trace export enabled", "endpoint", otlpEndpoint)
	}

	// Optional self-metrics endpoint
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			logger.Info("Self-metrics endpoint listening", "addr", metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Self-metrics server failed", "error", err)
			}
		}()
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			_ = metricsSrv.Shutdown(closeCtx)
		}()
	}

	// Log configuration
	logConfigSummary(logger, serverContext.PrometheusConfig())

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("mcp-prometheus", rootCmd.Version,
		mcpserver.WithToolCapabilities(true),
	)

	// Register Prometheus tools
	if err := prometheus.RegisterPrometheusTools(mcpSrv, serverContext, rootCmd.Version); err != nil {
		return fmt.Errorf("failed to register Prometheus tools: %w", err)
	}

	logger.Info("Starting MCP Prometheus server", "transport", transport)

	// Start the appropriate server based on transport type
	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "sse":
		return runSSEServer(mcpSrv, httpAddr, sseEndpoint, messageEndpoint, shutdownCtx, logger)
	case "streamable-http":
		return runStreamableHTTPServer(mcpSrv, httpAddr, httpEndpoint, shutdownCtx, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http)", transport)
	}
}

// logConfigSummary logs the per-region configuration without credentials.
func logConfigSummary(logger server.Logger, config server.PrometheusConfig) {
	names := make([]string, 0, len(config.Regions))
	for name := range config.Regions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rc := config.Regions[name]

		auth := "none"
		if rc.Token != "" {
			auth = "bearer_token"
		} else if rc.Username != "" && rc.Password != "" {
			auth = "basic_auth"
		}

		logger.Info("Region configured", "region", name, "url", rc.URL, "auth", auth, "ssl_verify", rc.SSLVerify)
		if !rc.SSLVerify {
			logger.Warn("SSL certificate verification is disabled for region", "region", name)
		}
	}

	logger.Info("Prometheus MCP server configuration",
		"regions", len(config.Regions),
		"default_region", config.DefaultRegion,
		"org_id_configured", config.OrgID != "",
		"links_disabled", config.DisableLinks)

	if len(config.Regions) == 0 {
		logger.Warn("No Prometheus regions configured. Configure at least one region for the server to function.")
	}
}

// runStdioServer runs the server with STDIO transport
func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	// Start the server in a goroutine so we can handle shutdown signals
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	// Wait for server completion
	if err := <-serverDone; err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	fmt.Println("Server gracefully stopped")
	return nil
}

// runSSEServer runs the server with SSE transport
func runSSEServer(mcpSrv *mcpserver.MCPServer, addr, sseEndpoint, messageEndpoint string, ctx context.Context, logger server.Logger) error {
	// Create SSE server with custom endpoints
	sseServer := mcpserver.NewSSEServer(mcpSrv,
		mcpserver.WithSSEEndpoint(sseEndpoint),
		mcpserver.WithMessageEndpoint(messageEndpoint),
	)

	logger.Info("SSE server starting", "addr", addr, "sse_endpoint", sseEndpoint, "message_endpoint", messageEndpoint)

	// Start server in goroutine
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := sseServer.Start(addr); err != nil {
			serverDone <- err
		}
	}()

	// Wait for either shutdown signal or server completion
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping SSE server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down SSE server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("SSE server stopped with error: %w", err)
		}
		logger.Info("SSE server stopped normally")
	}

	logger.Info("SSE server gracefully stopped")
	return nil
}

// runStreamableHTTPServer runs the server with Streamable HTTP transport
func runStreamableHTTPServer(mcpSrv *mcpserver.MCPServer, addr, endpoint string, ctx context.Context, logger server.Logger) error {
	// Create Streamable HTTP server with custom endpoint
	httpServer := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(endpoint),
	)

	logger.Info("Streamable HTTP server starting", "addr", addr, "endpoint", endpoint)

	// Start server in goroutine
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(addr); err != nil {
			serverDone <- err
		}
	}()

	// Wait for either shutdown signal or server completion
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		logger.Info("HTTP server stopped normally")
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
