package prometheus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/promregion/mcp-prometheus/internal/server"
)

// RegisterPrometheusTools registers Prometheus-related tools with the MCP server
func RegisterPrometheusTools(s *mcpserver.MCPServer, sc *server.ServerContext, version string) error {
	// Create the multi-region service
	svc := NewService(sc.PrometheusConfig(), sc.Logger(), version)

	regionDescription := mcp.Description("Optional region name (case-insensitive). If not specified, uses the default region.")

	// execute_query tool
	executeQueryTool := mcp.NewTool("execute_query",
		mcp.WithDescription("Execute a PromQL instant query against Prometheus"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("PromQL query string"),
		),
		mcp.WithString("time",
			mcp.Description("Optional RFC3339 or Unix timestamp (default: current time)"),
		),
		mcp.WithString("region", regionDescription),
	)

	s.AddTool(executeQueryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleExecuteQuery(ctx, request, svc, sc)
	})

	// execute_range_query tool
	executeRangeQueryTool := mcp.NewTool("execute_range_query",
		mcp.WithDescription("Execute a PromQL range query with start time, end time, and step interval"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("PromQL query string"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time as RFC3339 or Unix timestamp"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time as RFC3339 or Unix timestamp"),
		),
		mcp.WithString("step",
			mcp.Required(),
			mcp.Description("Query resolution step width (e.g., '15s', '1m', '1h')"),
		),
		mcp.WithString("region", regionDescription),
	)

	s.AddTool(executeRangeQueryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleExecuteRangeQuery(ctx, request, svc, sc)
	})

	// list_metrics tool
	listMetricsTool := mcp.NewTool("list_metrics",
		mcp.WithDescription("List all available metrics in Prometheus with optional filtering and pagination"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of metrics to return (default: all metrics)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of metrics to skip for pagination (default: 0)"),
		),
		mcp.WithString("filter_pattern",
			mcp.Description("Optional substring to filter metric names (case-insensitive)"),
		),
		mcp.WithString("region", regionDescription),
	)

	s.AddTool(listMetricsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListMetrics(ctx, request, svc, sc)
	})

	// get_metric_metadata tool
	getMetricMetadataTool := mcp.NewTool("get_metric_metadata",
		mcp.WithDescription("Get metadata for a specific metric"),
		mcp.WithString("metric",
			mcp.Required(),
			mcp.Description("The name of the metric to retrieve metadata for"),
		),
		mcp.WithString("region", regionDescription),
	)

	s.AddTool(getMetricMetadataTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetMetricMetadata(ctx, request, svc, sc)
	})

	// get_targets tool
	getTargetsTool := mcp.NewTool("get_targets",
		mcp.WithDescription("Get information about all scrape targets"),
		mcp.WithString("region", regionDescription),
	)

	s.AddTool(getTargetsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetTargets(ctx, request, svc, sc)
	})

	// health_check tool
	healthCheckTool := mcp.NewTool("health_check",
		mcp.WithDescription("Health check for the server and Prometheus connectivity. Checks all regions or a specific region."),
		mcp.WithString("region", regionDescription),
	)

	s.AddTool(healthCheckTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleHealthCheck(ctx, request, svc, sc)
	})

	return nil
}

// toolArgs extracts the argument map from a tool call request.
func toolArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments != nil {
		if argsMap, ok := request.Params.Arguments.(map[string]interface{}); ok {
			return argsMap
		}
	}
	return map[string]interface{}{}
}

// errorResult builds an IsError text result.
func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// jsonResult serializes a handler payload as a JSON text result.
func jsonResult(payload interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return errorResult(fmt.Sprintf("Error encoding result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

// progressSink reports tool progress to the debug log.
func progressSink(sc *server.ServerContext, tool string) ProgressFunc {
	return func(progress, total float64, message string) {
		sc.Logger().Debug("Tool progress", "tool", tool, "progress", progress, "total", total, "message", message)
	}
}

// handleExecuteQuery handles the execute_query tool
func handleExecuteQuery(ctx context.Context, request mcp.CallToolRequest, svc *Service, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := toolArgs(request)

	query, ok := params["query"].(string)
	if !ok || query == "" {
		return errorResult("Error: query parameter is required and must be a string"), nil
	}

	timeParam, _ := params["time"].(string)
	region, _ := params["region"].(string)

	sc.Logger().Debug("Executing PromQL query", "query", query, "time", timeParam, "region", region)

	result, err := svc.ExecuteQuery(ctx, query, timeParam, region)
	if err != nil {
		sc.Logger().Error("Failed to execute query", "error", err)
		return errorResult(fmt.Sprintf("Error executing query: %v", err)), nil
	}

	return jsonResult(result)
}

// handleExecuteRangeQuery handles the execute_range_query tool
func handleExecuteRangeQuery(ctx context.Context, request mcp.CallToolRequest, svc *Service, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := toolArgs(request)

	query, ok := params["query"].(string)
	if !ok || query == "" {
		return errorResult("Error: query parameter is required and must be a string"), nil
	}

	start, ok := params["start"].(string)
	if !ok || start == "" {
		return errorResult("Error: start parameter is required and must be a string"), nil
	}

	end, ok := params["end"].(string)
	if !ok || end == "" {
		return errorResult("Error: end parameter is required and must be a string"), nil
	}

	step, ok := params["step"].(string)
	if !ok || step == "" {
		return errorResult("Error: step parameter is required and must be a string"), nil
	}

	region, _ := params["region"].(string)

	sc.Logger().Debug("Executing PromQL range query", "query", query, "start", start, "end", end, "step", step, "region", region)

	result, err := svc.ExecuteRangeQuery(ctx, query, start, end, step, region, progressSink(sc, "execute_range_query"))
	if err != nil {
		sc.Logger().Error("Failed to execute range query", "error", err)
		return errorResult(fmt.Sprintf("Error executing range query: %v", err)), nil
	}

	return jsonResult(result)
}

// handleListMetrics handles the list_metrics tool
func handleListMetrics(ctx context.Context, request mcp.CallToolRequest, svc *Service, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := toolArgs(request)

	opts := ListMetricsOptions{}
	if limit, ok := params["limit"].(float64); ok {
		n := int(limit)
		opts.Limit = &n
	}
	if offset, ok := params["offset"].(float64); ok {
		opts.Offset = int(offset)
	}
	opts.FilterPattern, _ = params["filter_pattern"].(string)
	opts.Region, _ = params["region"].(string)

	sc.Logger().Debug("Listing metrics", "region", opts.Region)

	result, err := svc.ListMetrics(ctx, opts, progressSink(sc, "list_metrics"))
	if err != nil {
		sc.Logger().Error("Failed to list metrics", "error", err)
		return errorResult(fmt.Sprintf("Error listing metrics: %v", err)), nil
	}

	return jsonResult(result)
}

// handleGetMetricMetadata handles the get_metric_metadata tool
func handleGetMetricMetadata(ctx context.Context, request mcp.CallToolRequest, svc *Service, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := toolArgs(request)

	metric, ok := params["metric"].(string)
	if !ok || metric == "" {
		return errorResult("Error: metric parameter is required and must be a string"), nil
	}

	region, _ := params["region"].(string)

	sc.Logger().Debug("Getting metric metadata", "metric", metric, "region", region)

	result, err := svc.GetMetricMetadata(ctx, metric, region)
	if err != nil {
		sc.Logger().Error("Failed to get metric metadata", "error", err, "metric", metric)
		return errorResult(fmt.Sprintf("Error getting metadata for metric '%s': %v", metric, err)), nil
	}

	return jsonResult(result)
}

// handleGetTargets handles the get_targets tool
func handleGetTargets(ctx context.Context, request mcp.CallToolRequest, svc *Service, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := toolArgs(request)
	region, _ := params["region"].(string)

	sc.Logger().Debug("Getting targets", "region", region)

	result, err := svc.GetTargets(ctx, region)
	if err != nil {
		sc.Logger().Error("Failed to get targets", "error", err)
		return errorResult(fmt.Sprintf("Error getting targets: %v", err)), nil
	}

	return jsonResult(result)
}

// handleHealthCheck handles the health_check tool. The health check
// never fails structurally: failures are part of the payload.
func handleHealthCheck(ctx context.Context, request mcp.CallToolRequest, svc *Service, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	params := toolArgs(request)
	region, _ := params["region"].(string)

	sc.Logger().Debug("Running health check", "region", region)

	return jsonResult(svc.HealthCheck(ctx, region))
}
