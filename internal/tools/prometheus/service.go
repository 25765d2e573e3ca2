package prometheus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/common/model"
	"golang.org/x/sync/errgroup"

	"github.com/promregion/mcp-prometheus/internal/server"
)

// ProgressFunc reports handler progress to an optional sink. A nil
// ProgressFunc disables reporting.
type ProgressFunc func(progress, total float64, message string)

func (p ProgressFunc) report(progress, total float64, message string) {
	if p != nil {
		p(progress, total, message)
	}
}

// Service implements the callable operations, orchestrating the region
// registry, the request client, and the metrics cache. All operations
// echo the canonical resolved region name in their result. Every
// failure propagates unchanged to the caller except inside the metrics
// cache refresh and the health check, which fold failures into their
// payloads.
type Service struct {
	registry     *Registry
	client       *Client
	cache        *MetricsCache
	logger       server.Logger
	orgID        string
	disableLinks bool
	version      string
}

// NewService wires a Service from the loaded configuration.
func NewService(config server.PrometheusConfig, logger server.Logger, version string) *Service {
	registry := NewRegistry(config)
	client := NewClient(registry, config, logger)
	return &Service{
		registry:     registry,
		client:       client,
		cache:        NewMetricsCache(client, logger),
		logger:       logger,
		orgID:        config.OrgID,
		disableLinks: config.DisableLinks,
		version:      version,
	}
}

// Registry exposes the region registry for transport-level diagnostics.
func (s *Service) Registry() *Registry {
	return s.registry
}

// queryData is the payload shape shared by instant and range queries.
type queryData struct {
	ResultType string          `json:"resultType"`
	Result     json.RawMessage `json:"result"`
}

// ExecuteQuery runs a PromQL instant query against the resolved region.
func (s *Service) ExecuteQuery(ctx context.Context, query, ts, region string) (map[string]interface{}, error) {
	name, rc, err := s.registry.Resolve(region)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", query)
	if ts != "" {
		params.Set("time", ts)
	}

	s.logger.Info("Executing instant query", "query", query, "time", ts, "region", name)

	data, err := s.client.Request(ctx, "query", params, name)
	if err != nil {
		return nil, err
	}

	var qd queryData
	if err := json.Unmarshal(data, &qd); err != nil {
		return nil, &InvalidResponseError{Err: err}
	}

	result := map[string]interface{}{
		"resultType": qd.ResultType,
		"result":     qd.Result,
		"region":     name,
	}
	if !s.disableLinks {
		result["links"] = []map[string]string{instantQueryLink(rc.URL, query, ts)}
	}

	s.logger.Info("Instant query completed", "query", query, "result_type", qd.ResultType, "region", name)
	return result, nil
}

// ExecuteRangeQuery runs a PromQL range query with start, end, and step
// against the resolved region.
func (s *Service) ExecuteRangeQuery(ctx context.Context, query, start, end, step, region string, progress ProgressFunc) (map[string]interface{}, error) {
	name, rc, err := s.registry.Resolve(region)
	if err != nil {
		return nil, err
	}

	if _, err := model.ParseDuration(step); err != nil {
		return nil, fmt.Errorf("invalid step duration: %w", err)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("start", start)
	params.Set("end", end)
	params.Set("step", step)

	s.logger.Info("Executing range query", "query", query, "start", start, "end", end, "step", step, "region", name)
	progress.report(0, 100, "Initiating range query...")

	data, err := s.client.Request(ctx, "query_range", params, name)
	if err != nil {
		return nil, err
	}

	progress.report(50, 100, "Processing query results...")

	var qd queryData
	if err := json.Unmarshal(data, &qd); err != nil {
		return nil, &InvalidResponseError{Err: err}
	}

	result := map[string]interface{}{
		"resultType": qd.ResultType,
		"result":     qd.Result,
		"region":     name,
	}
	if !s.disableLinks {
		result["links"] = []map[string]string{rangeQueryLink(rc.URL, query, start, end, step)}
	}

	progress.report(100, 100, "Range query completed")
	s.logger.Info("Range query completed", "query", query, "result_type", qd.ResultType, "region", name)
	return result, nil
}

// ListMetricsOptions holds the optional parameters for ListMetrics.
type ListMetricsOptions struct {
	// Limit caps the number of returned metrics; nil means all remaining.
	Limit *int

	// Offset skips that many metrics after filtering.
	Offset int

	// FilterPattern keeps only metric names containing the substring,
	// case-insensitively.
	FilterPattern string

	// Region selects the region; empty means the default region.
	Region string
}

// ListMetrics returns metric names for a region with optional filtering
// and pagination. Names come from the metrics cache, so a failed
// refresh degrades to stale or empty data instead of an error.
func (s *Service) ListMetrics(ctx context.Context, opts ListMetricsOptions, progress ProgressFunc) (map[string]interface{}, error) {
	name, _, err := s.registry.Resolve(opts.Region)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Listing available metrics", "offset", opts.Offset, "filter_pattern", opts.FilterPattern, "region", name)
	progress.report(0, 100, "Fetching metrics list...")

	metrics, outcome := s.cache.Get(ctx, name)
	s.logger.Debug("Metrics list obtained", "count", len(metrics), "cache_outcome", string(outcome), "region", name)

	progress.report(50, 100, fmt.Sprintf("Processing %d metrics...", len(metrics)))

	if opts.FilterPattern != "" {
		needle := strings.ToLower(opts.FilterPattern)
		filtered := make([]string, 0, len(metrics))
		for _, m := range metrics {
			if strings.Contains(strings.ToLower(m), needle) {
				filtered = append(filtered, m)
			}
		}
		metrics = filtered
	}

	totalCount := len(metrics)

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > totalCount {
		start = totalCount
	}
	end := totalCount
	if opts.Limit != nil {
		end = start + *opts.Limit
		if end > totalCount {
			end = totalCount
		}
		if end < start {
			end = start
		}
	}
	page := metrics[start:end]

	result := map[string]interface{}{
		"metrics":        page,
		"total_count":    totalCount,
		"returned_count": len(page),
		"offset":         opts.Offset,
		"has_more":       end < totalCount,
		"region":         name,
	}

	progress.report(100, 100, fmt.Sprintf("Retrieved %d of %d metrics", len(page), totalCount))
	s.logger.Info("Metrics list retrieved", "total_count", totalCount, "returned_count", len(page), "offset", opts.Offset, "region", name)
	return result, nil
}

// GetMetricMetadata returns the metadata entries for one metric,
// normalized to a list regardless of how the upstream keyed them.
func (s *Service) GetMetricMetadata(ctx context.Context, metric, region string) (map[string]interface{}, error) {
	name, _, err := s.registry.Resolve(region)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Retrieving metric metadata", "metric", metric, "region", name)

	params := url.Values{}
	params.Set("metric", metric)
	data, err := s.client.Request(ctx, "metadata", params, name)
	if err != nil {
		return nil, err
	}

	metadata := normalizeMetadata(data)
	s.logger.Info("Metric metadata retrieved", "metric", metric, "metadata_count", len(metadata), "region", name)
	return map[string]interface{}{
		"metadata": metadata,
		"region":   name,
	}, nil
}

// normalizeMetadata handles the three shapes the metadata payload comes
// in: keyed under "metadata", keyed under "data", or the metadata
// itself. A single mapping is wrapped into a one-element list.
func normalizeMetadata(raw json.RawMessage) []interface{} {
	payload := raw

	var byKey struct {
		Metadata json.RawMessage `json:"metadata"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &byKey); err == nil {
		if isPresent(byKey.Metadata) {
			payload = byKey.Metadata
		} else if isPresent(byKey.Data) {
			payload = byKey.Data
		}
	}

	var list []interface{}
	if err := json.Unmarshal(payload, &list); err == nil {
		return list
	}

	var single interface{}
	if err := json.Unmarshal(payload, &single); err == nil && single != nil {
		return []interface{}{single}
	}
	return []interface{}{}
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// GetTargets returns the active and dropped scrape targets verbatim.
func (s *Service) GetTargets(ctx context.Context, region string) (map[string]interface{}, error) {
	name, _, err := s.registry.Resolve(region)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Retrieving scrape targets information", "region", name)

	data, err := s.client.Request(ctx, "targets", nil, name)
	if err != nil {
		return nil, err
	}

	var targets struct {
		Active  []interface{} `json:"activeTargets"`
		Dropped []interface{} `json:"droppedTargets"`
	}
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, &InvalidResponseError{Err: err}
	}
	if targets.Active == nil {
		targets.Active = []interface{}{}
	}
	if targets.Dropped == nil {
		targets.Dropped = []interface{}{}
	}

	s.logger.Info("Scrape targets retrieved", "active_targets", len(targets.Active), "dropped_targets", len(targets.Dropped), "region", name)
	return map[string]interface{}{
		"activeTargets":  targets.Active,
		"droppedTargets": targets.Dropped,
		"region":         name,
	}, nil
}

// HealthCheck probes Prometheus connectivity. With a region it probes
// just that region; without one it probes every configured region
// concurrently and aggregates. It never returns an error: all failures
// are folded into the status payload.
func (s *Service) HealthCheck(ctx context.Context, region string) map[string]interface{} {
	status := map[string]interface{}{
		"status":    "healthy",
		"service":   "mcp-prometheus",
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"configuration": map[string]interface{}{
			"regions_configured": s.registry.Names(),
			"default_region":     s.registry.DefaultRegion(),
			"org_id_configured":  s.orgID != "",
		},
	}

	if region != "" {
		name, rc, err := s.registry.Resolve(region)
		if err != nil {
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			s.logger.Error("Health check failed", "error", err, "region", region)
			return status
		}

		status["region"] = name
		if err := s.probe(ctx, name); err != nil {
			status["prometheus_connectivity"] = "unhealthy"
			status["prometheus_error"] = err.Error()
			status["status"] = "degraded"
		} else {
			status["prometheus_connectivity"] = "healthy"
			status["prometheus_url"] = rc.URL
		}
		s.logger.Info("Health check completed", "status", status["status"], "region", name)
		return status
	}

	// Probe every region; one failing probe must not abort the others.
	regions := make(map[string]interface{}, s.registry.Len())
	allHealthy := true
	var mu sync.Mutex
	var g errgroup.Group

	for _, name := range s.registry.Names() {
		name := name
		_, rc, _ := s.registry.Resolve(name)
		g.Go(func() error {
			detail := map[string]interface{}{}
			if err := s.probe(ctx, name); err != nil {
				detail["prometheus_connectivity"] = "degraded"
				detail["prometheus_error"] = err.Error()
			} else {
				detail["prometheus_connectivity"] = "healthy"
				detail["prometheus_url"] = rc.URL
			}

			mu.Lock()
			regions[name] = detail
			if _, failed := detail["prometheus_error"]; failed {
				allHealthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status["regions"] = regions
	if !allHealthy {
		status["status"] = "degraded"
	}
	s.logger.Info("Health check completed", "status", status["status"])
	return status
}

// probe issues the lightweight connectivity query ("up" at the current
// time) against one region.
func (s *Service) probe(ctx context.Context, region string) error {
	params := url.Values{}
	params.Set("query", "up")
	params.Set("time", strconv.FormatInt(time.Now().Unix(), 10))
	_, err := s.client.Request(ctx, "query", params, region)
	return err
}
