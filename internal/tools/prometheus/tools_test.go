package prometheus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/promregion/mcp-prometheus/internal/server"
)

// TestLogger implements server.Logger for testing
type TestLogger struct{}

func (l *TestLogger) Debug(msg string, args ...interface{}) {}
func (l *TestLogger) Info(msg string, args ...interface{})  {}
func (l *TestLogger) Warn(msg string, args ...interface{})  {}
func (l *TestLogger) Error(msg string, args ...interface{}) {}

// newHandlerFixture wires a server context and service against a mock
// Prometheus responding with the given payload on every endpoint.
func newHandlerFixture(t *testing.T, handler http.HandlerFunc) (*Service, *server.ServerContext, *httptest.Server) {
	t.Helper()

	mockServer := httptest.NewServer(handler)
	t.Cleanup(mockServer.Close)

	sc, err := server.NewServerContext(context.Background(),
		server.WithPrometheusConfig(server.PrometheusConfig{
			Regions: map[string]server.RegionConfig{
				"atl": {URL: mockServer.URL, SSLVerify: true},
			},
			DefaultRegion: "atl",
			DisableLinks:  true,
		}),
		server.WithLogger(&TestLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to create server context: %v", err)
	}
	t.Cleanup(func() { sc.Shutdown() })

	return NewService(sc.PrometheusConfig(), sc.Logger(), "test"), sc, mockServer
}

// toolRequest builds a call request with the given arguments.
func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the text payload of a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestRegisterPrometheusTools(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "1.0.0")

	ctx := context.Background()
	sc, err := server.NewServerContext(ctx,
		server.WithPrometheusConfig(multiRegionConfig()),
		server.WithLogger(&TestLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to create server context: %v", err)
	}
	defer sc.Shutdown()

	if err := RegisterPrometheusTools(s, sc, "1.0.0"); err != nil {
		t.Fatalf("Failed to register tools: %v", err)
	}
}

func TestHandleExecuteQuery(t *testing.T) {
	svc, sc, _ := newHandlerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/query" {
			w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// Valid request
	result, err := handleExecuteQuery(context.Background(), toolRequest("execute_query", map[string]interface{}{
		"query": "up",
	}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.IsError {
		t.Errorf("Expected success, got error: %v", result.Content)
	}
	if text := resultText(t, result); !strings.Contains(text, `"region":"atl"`) {
		t.Errorf("expected region echo in result, got %s", text)
	}

	// Missing query parameter
	result, err = handleExecuteQuery(context.Background(), toolRequest("execute_query", map[string]interface{}{}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.IsError {
		t.Errorf("Expected error for missing query parameter")
	}
}

func TestHandleExecuteQueryUnknownRegion(t *testing.T) {
	svc, sc, _ := newHandlerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
	})

	result, err := handleExecuteQuery(context.Background(), toolRequest("execute_query", map[string]interface{}{
		"query":  "up",
		"region": "nowhere",
	}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.IsError {
		t.Fatal("Expected error result for unknown region")
	}
	if text := resultText(t, result); !strings.Contains(text, "Available regions") {
		t.Errorf("expected configured regions in error text, got %s", text)
	}
}

func TestHandleExecuteRangeQuery(t *testing.T) {
	svc, sc, _ := newHandlerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/query_range" {
			w.Write([]byte(`{"status":"success","data":{"resultType":"matrix","result":[]}}`))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// Valid request
	result, err := handleExecuteRangeQuery(context.Background(), toolRequest("execute_range_query", map[string]interface{}{
		"query": "up",
		"start": "2023-01-01T00:00:00Z",
		"end":   "2023-01-01T01:00:00Z",
		"step":  "1m",
	}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.IsError {
		t.Errorf("Expected success, got error: %v", result.Content)
	}

	// Missing step parameter
	result, err = handleExecuteRangeQuery(context.Background(), toolRequest("execute_range_query", map[string]interface{}{
		"query": "up",
		"start": "2023-01-01T00:00:00Z",
		"end":   "2023-01-01T01:00:00Z",
	}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.IsError {
		t.Errorf("Expected error for missing step parameter")
	}
}

func TestHandleListMetrics(t *testing.T) {
	svc, sc, _ := newHandlerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/label/__name__/values" {
			w.Write([]byte(`{"status":"success","data":["metric1","metric2","metric3"]}`))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// JSON numbers arrive as float64 through the MCP transport.
	result, err := handleListMetrics(context.Background(), toolRequest("list_metrics", map[string]interface{}{
		"limit":  float64(2),
		"offset": float64(1),
	}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.IsError {
		t.Fatalf("Expected success, got error: %v", result.Content)
	}

	var payload struct {
		Metrics       []string `json:"metrics"`
		TotalCount    int      `json:"total_count"`
		ReturnedCount int      `json:"returned_count"`
		HasMore       bool     `json:"has_more"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if payload.TotalCount != 3 || payload.ReturnedCount != 2 {
		t.Errorf("expected 2 of 3 metrics, got %d of %d", payload.ReturnedCount, payload.TotalCount)
	}
	if len(payload.Metrics) != 2 || payload.Metrics[0] != "metric2" {
		t.Errorf("expected page starting at metric2, got %v", payload.Metrics)
	}
	if payload.HasMore {
		t.Errorf("expected has_more false when page reaches the end")
	}
}

func TestHandleGetMetricMetadata(t *testing.T) {
	svc, sc, _ := newHandlerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/metadata" {
			w.Write([]byte(`{"status":"success","data":{"http_requests_total":[{"type":"counter","help":"Total HTTP requests","unit":""}]}}`))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// Valid request
	result, err := handleGetMetricMetadata(context.Background(), toolRequest("get_metric_metadata", map[string]interface{}{
		"metric": "http_requests_total",
	}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.IsError {
		t.Errorf("Expected success, got error: %v", result.Content)
	}
	if text := resultText(t, result); !strings.Contains(text, "Total HTTP requests") {
		t.Errorf("expected metadata in result, got %s", text)
	}

	// Missing metric parameter
	result, err = handleGetMetricMetadata(context.Background(), toolRequest("get_metric_metadata", map[string]interface{}{}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.IsError {
		t.Errorf("Expected error for missing metric parameter")
	}
}

func TestHandleGetTargets(t *testing.T) {
	svc, sc, _ := newHandlerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/targets" {
			w.Write([]byte(`{"status":"success","data":{"activeTargets":[],"droppedTargets":[]}}`))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	result, err := handleGetTargets(context.Background(), toolRequest("get_targets", map[string]interface{}{}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.IsError {
		t.Errorf("Expected success, got error: %v", result.Content)
	}
}

func TestHandleHealthCheckNeverErrors(t *testing.T) {
	// Upstream is down; the health check must still return a payload.
	svc, sc, mockServer := newHandlerFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	mockServer.Close()

	result, err := handleHealthCheck(context.Background(), toolRequest("health_check", map[string]interface{}{}), svc, sc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.IsError {
		t.Fatalf("Health check must not return an error result, got: %v", result.Content)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("Failed to decode health payload: %v", err)
	}
	if payload["status"] != "degraded" {
		t.Errorf("expected degraded status with upstream down, got %v", payload["status"])
	}
}
