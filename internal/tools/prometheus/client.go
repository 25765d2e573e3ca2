package prometheus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/promregion/mcp-prometheus/internal/server"
)

const defaultRequestTimeout = 30 * time.Second

// orgIDRoundTripper adds the tenant scoping header to requests for
// multi-tenant setups. It sits outermost so region custom headers may
// override it.
type orgIDRoundTripper struct {
	orgID string
	rt    http.RoundTripper
}

func (o *orgIDRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if o.orgID != "" {
		req.Header.Set("X-Scope-OrgID", o.orgID)
	}
	return o.rt.RoundTrip(req)
}

// customHeadersRoundTripper adds a region's configured headers. It wraps
// the auth layer, so custom headers can override the org header but
// never the credentials.
type customHeadersRoundTripper struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (c *customHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
	return c.rt.RoundTrip(req)
}

// basicAuthRoundTripper adds basic authentication to requests
type basicAuthRoundTripper struct {
	username string
	password string
	rt       http.RoundTripper
}

func (b *basicAuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(b.username, b.password)
	return b.rt.RoundTrip(req)
}

// bearerTokenRoundTripper adds bearer token authentication to requests
type bearerTokenRoundTripper struct {
	token string
	rt    http.RoundTripper
}

func (b *bearerTokenRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.rt.RoundTrip(req)
}

// regionClient is the prepared transport for one region. A non-nil err
// records a construction failure surfaced on first use.
type regionClient struct {
	client api.Client
	err    error
}

// Client issues one GET request per call against a region's Prometheus
// HTTP API and classifies the outcome. It never retries and never caches.
type Client struct {
	registry *Registry
	orgID    string
	logger   server.Logger
	timeout  time.Duration
	tracer   trace.Tracer

	clients map[string]regionClient
}

// NewClient prepares per-region transports from the registry. The
// registry is immutable after startup, so transports are built once.
func NewClient(registry *Registry, config server.PrometheusConfig, logger server.Logger) *Client {
	c := &Client{
		registry: registry,
		orgID:    config.OrgID,
		logger:   logger,
		timeout:  defaultRequestTimeout,
		tracer:   otel.Tracer("mcp-prometheus/upstream"),
		clients:  make(map[string]regionClient, registry.Len()),
	}

	for _, name := range registry.Names() {
		canonical, rc, err := registry.Resolve(name)
		if err != nil {
			continue
		}
		c.clients[canonical] = newRegionClient(rc, config.OrgID, logger)
	}

	return c
}

// newRegionClient builds the RoundTripper chain and API client for one
// region. Header precedence, innermost wins: auth > custom headers > org.
func newRegionClient(rc server.RegionConfig, orgID string, logger server.Logger) regionClient {
	if rc.URL == "" {
		// Surfaced as RegionURLMissingError at request time.
		return regionClient{}
	}

	var rt http.RoundTripper = http.DefaultTransport
	if !rc.SSLVerify {
		rt = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	switch auth := ResolveAuth(rc); auth.Kind {
	case AuthBearer:
		rt = &bearerTokenRoundTripper{token: auth.Token, rt: rt}
		logger.Debug("Using bearer token authentication", "url", rc.URL)
	case AuthBasic:
		rt = &basicAuthRoundTripper{username: auth.Username, password: auth.Password, rt: rt}
		logger.Debug("Using basic authentication", "username", auth.Username, "url", rc.URL)
	default:
		logger.Debug("No authentication configured", "url", rc.URL)
	}

	if len(rc.CustomHeaders) > 0 {
		rt = &customHeadersRoundTripper{headers: rc.CustomHeaders, rt: rt}
	}

	if orgID != "" {
		rt = &orgIDRoundTripper{orgID: orgID, rt: rt}
	}

	promClient, err := api.NewClient(api.Config{
		Address:      rc.URL,
		RoundTripper: rt,
	})
	if err != nil {
		logger.Error("Failed to create Prometheus client", "error", err, "url", rc.URL)
		return regionClient{err: err}
	}

	return regionClient{client: promClient}
}

// envelope is the Prometheus HTTP API response wrapper.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

// Request issues a single GET to <base>/api/v1/<endpoint> for the given
// region and returns the envelope's data field. Failures are classified
// as UnknownRegionError, RegionURLMissingError, TransportError,
// HTTPError, InvalidResponseError, or UpstreamError.
func (c *Client) Request(ctx context.Context, endpoint string, params url.Values, region string) (json.RawMessage, error) {
	name, rc, err := c.registry.Resolve(region)
	if err != nil {
		return nil, err
	}

	data, err := c.request(ctx, endpoint, params, name, rc)
	upstreamRequestsTotal.WithLabelValues(name, endpoint, errorOutcome(err)).Inc()
	return data, err
}

func (c *Client) request(ctx context.Context, endpoint string, params url.Values, name string, rc server.RegionConfig) (json.RawMessage, error) {
	if rc.URL == "" {
		c.logger.Error("Prometheus URL missing for region", "region", name)
		return nil, &RegionURLMissingError{Region: name}
	}

	if !rc.SSLVerify {
		c.logger.Warn("SSL certificate verification is disabled. This is insecure and should not be used in production environments.",
			"endpoint", endpoint, "region", name)
	}

	entry := c.clients[name]
	if entry.err != nil {
		return nil, &TransportError{Region: name, Endpoint: endpoint, Err: entry.err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "prometheus.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("prometheus.region", name),
			attribute.String("prometheus.endpoint", endpoint),
		),
	)
	defer span.End()

	u := entry.client.URL("/api/v1/"+endpoint, nil)
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Region: name, Endpoint: endpoint, Err: err}
	}

	c.logger.Debug("Making Prometheus API request", "endpoint", endpoint, "url", u.String(), "region", name)

	start := time.Now()
	resp, body, err := entry.client.Do(ctx, req)
	upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("HTTP request to Prometheus failed", "endpoint", endpoint, "url", u.String(), "error", err, "region", name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, &TransportError{Region: name, Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Prometheus returned non-2xx status", "endpoint", endpoint, "status", resp.StatusCode, "region", name)
		span.SetStatus(codes.Error, "upstream HTTP error")
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Error("Failed to parse Prometheus response as JSON", "endpoint", endpoint, "error", err, "region", name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid response")
		return nil, &InvalidResponseError{Err: err}
	}

	if env.Status != "success" {
		msg := env.Error
		if msg == "" {
			msg = "unknown error"
		}
		c.logger.Error("Prometheus API returned error", "endpoint", endpoint, "error", msg, "status", env.Status, "region", name)
		span.SetStatus(codes.Error, "upstream error")
		return nil, &UpstreamError{Message: msg}
	}

	c.logger.Debug("Prometheus API request successful", "endpoint", endpoint, "region", name)
	return env.Data, nil
}

// errorOutcome maps a classified request error to a metric label value.
func errorOutcome(err error) string {
	if err == nil {
		return "success"
	}

	var (
		unknownRegion *UnknownRegionError
		urlMissing    *RegionURLMissingError
		transportErr  *TransportError
		httpErr       *HTTPError
		invalidResp   *InvalidResponseError
		upstreamErr   *UpstreamError
	)
	switch {
	case errors.As(err, &unknownRegion):
		return "unknown_region"
	case errors.As(err, &urlMissing):
		return "url_missing"
	case errors.As(err, &transportErr):
		return "transport_error"
	case errors.As(err, &httpErr):
		return "http_error"
	case errors.As(err, &invalidResp):
		return "invalid_response"
	case errors.As(err, &upstreamErr):
		return "upstream_error"
	default:
		return "error"
	}
}
