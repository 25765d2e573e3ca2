package prometheus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/promregion/mcp-prometheus/internal/server"
)

// newTestClient builds a client over a single-region config pointing at
// the given base URL.
func newTestClient(baseURL string, rc server.RegionConfig, orgID string) *Client {
	rc.URL = baseURL
	rc.SSLVerify = true
	config := server.PrometheusConfig{
		Regions:       map[string]server.RegionConfig{"test": rc},
		DefaultRegion: "test",
		OrgID:         orgID,
	}
	return NewClient(NewRegistry(config), config, &TestLogger{})
}

func TestClientRequestSuccess(t *testing.T) {
	var gotPath, gotQuery string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL, server.RegionConfig{}, "")

	params := url.Values{}
	params.Set("query", "up")
	data, err := client.Request(context.Background(), "query", params, "test")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if gotPath != "/api/v1/query" {
		t.Errorf("expected path /api/v1/query, got %q", gotPath)
	}
	if gotQuery != "up" {
		t.Errorf("expected query parameter up, got %q", gotQuery)
	}
	if !strings.Contains(string(data), `"resultType":"vector"`) {
		t.Errorf("unexpected data payload: %s", data)
	}
}

func TestClientBearerTokenAuth(t *testing.T) {
	var gotAuth string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL, server.RegionConfig{Token: "token123"}, "")

	if _, err := client.Request(context.Background(), "targets", nil, "test"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}
}

func TestClientBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL, server.RegionConfig{Username: "admin", Password: "pass"}, "")

	if _, err := client.Request(context.Background(), "targets", nil, "test"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if !gotOK || gotUser != "admin" || gotPass != "pass" {
		t.Errorf("expected basic auth admin/pass, got %q/%q (ok=%v)", gotUser, gotPass, gotOK)
	}
}

func TestClientOrgIDHeader(t *testing.T) {
	var gotOrg string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg = r.Header.Get("X-Scope-OrgID")
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL, server.RegionConfig{}, "tenant-1")

	if _, err := client.Request(context.Background(), "targets", nil, "test"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if gotOrg != "tenant-1" {
		t.Errorf("expected org ID header tenant-1, got %q", gotOrg)
	}
}

// Custom headers may override the org header but never the credentials.
func TestClientHeaderPrecedence(t *testing.T) {
	var gotAuth, gotOrg, gotCustom string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrg = r.Header.Get("X-Scope-OrgID")
		gotCustom = r.Header.Get("X-Custom")
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL, server.RegionConfig{
		Token: "token123",
		CustomHeaders: map[string]string{
			"Authorization": "Bearer bogus",
			"X-Scope-OrgID": "override-org",
			"X-Custom":      "custom-value",
		},
	}, "tenant-1")

	if _, err := client.Request(context.Background(), "targets", nil, "test"); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("auth header must win over custom headers, got %q", gotAuth)
	}
	if gotOrg != "override-org" {
		t.Errorf("custom headers must win over org header, got %q", gotOrg)
	}
	if gotCustom != "custom-value" {
		t.Errorf("expected custom header to be sent, got %q", gotCustom)
	}
}

func TestClientHTTPError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL, server.RegionConfig{}, "")

	_, err := client.Request(context.Background(), "query", nil, "test")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", httpErr.StatusCode)
	}
	if !strings.Contains(httpErr.Body, "Service Unavailable") {
		t.Errorf("expected response body in error, got %q", httpErr.Body)
	}
}

func TestClientInvalidResponse(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL, server.RegionConfig{}, "")

	_, err := client.Request(context.Background(), "query", nil, "test")
	var invalid *InvalidResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidResponseError, got %T: %v", err, err)
	}
}

func TestClientUpstreamError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "error message present",
			body:    `{"status":"error","errorType":"bad_data","error":"parse error at char 5"}`,
			wantMsg: "parse error at char 5",
		},
		{
			name:    "error message absent",
			body:    `{"status":"error"}`,
			wantMsg: "unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer mockServer.Close()

			client := newTestClient(mockServer.URL, server.RegionConfig{}, "")

			_, err := client.Request(context.Background(), "query", nil, "test")
			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("expected UpstreamError, got %T: %v", err, err)
			}
			if upstream.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, upstream.Message)
			}
		})
	}
}

func TestClientTransportError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	mockServer.Close() // connection refused from here on

	client := newTestClient(mockServer.URL, server.RegionConfig{}, "")

	_, err := client.Request(context.Background(), "query", nil, "test")
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if transport.Region != "test" || transport.Endpoint != "query" {
		t.Errorf("expected region/endpoint in error, got %q/%q", transport.Region, transport.Endpoint)
	}
}

func TestClientUnknownRegion(t *testing.T) {
	client := NewClient(NewRegistry(multiRegionConfig()), multiRegionConfig(), &TestLogger{})

	_, err := client.Request(context.Background(), "query", nil, "nowhere")
	var unknown *UnknownRegionError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownRegionError, got %T: %v", err, err)
	}
}

func TestClientRegionURLMissing(t *testing.T) {
	config := server.PrometheusConfig{
		Regions:       map[string]server.RegionConfig{"test": {SSLVerify: true}},
		DefaultRegion: "test",
	}
	client := NewClient(NewRegistry(config), config, &TestLogger{})

	_, err := client.Request(context.Background(), "query", nil, "test")
	var missing *RegionURLMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected RegionURLMissingError, got %T: %v", err, err)
	}
	if missing.Region != "test" {
		t.Errorf("expected region in error, got %q", missing.Region)
	}
}
