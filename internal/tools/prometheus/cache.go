package prometheus

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/promregion/mcp-prometheus/internal/server"
)

// metricsCacheTTL is the freshness window for cached metric-name lists.
const metricsCacheTTL = 5 * time.Minute

// CacheOutcome reports which path a metric-name lookup took.
type CacheOutcome string

const (
	// CacheOutcomeFresh means a fresh entry was served without a network call.
	CacheOutcomeFresh CacheOutcome = "fresh"

	// CacheOutcomeRefreshed means the entry was (re)fetched successfully.
	CacheOutcomeRefreshed CacheOutcome = "refreshed"

	// CacheOutcomeStaleFallback means the refresh failed and an expired
	// entry was served as a degraded result.
	CacheOutcomeStaleFallback CacheOutcome = "stale_fallback"

	// CacheOutcomeEmpty means the refresh failed with nothing cached.
	CacheOutcomeEmpty CacheOutcome = "empty"
)

// apiRequester is the slice of Client the cache needs.
type apiRequester interface {
	Request(ctx context.Context, endpoint string, params url.Values, region string) (json.RawMessage, error)
}

type cacheEntry struct {
	data      []string
	fetchedAt time.Time
}

// MetricsCache is a per-region, time-boxed cache of metric names. A
// fresh entry is served without touching the network; an expired entry
// triggers exactly one refresh, deduplicated per region. Refresh
// failures are absorbed here: the caller gets stale data when it exists
// and an empty list otherwise, never an error.
type MetricsCache struct {
	client apiRequester
	logger server.Logger
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewMetricsCache creates a cache backed by the given request client.
func NewMetricsCache(client apiRequester, logger server.Logger) *MetricsCache {
	return &MetricsCache{
		client:  client,
		logger:  logger,
		ttl:     metricsCacheTTL,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

type refreshResult struct {
	data    []string
	outcome CacheOutcome
}

// Get returns the metric names for a canonical region name. The second
// return value reports whether the data came from a fresh entry, a
// successful refresh, a stale fallback, or is empty after a failed
// first fetch.
func (m *MetricsCache) Get(ctx context.Context, region string) ([]string, CacheOutcome) {
	m.mu.RLock()
	entry, ok := m.entries[region]
	m.mu.RUnlock()

	if ok && m.now().Sub(entry.fetchedAt) < m.ttl {
		m.logger.Debug("Using cached metrics list", "region", region, "cache_age", m.now().Sub(entry.fetchedAt).String())
		metricsCacheOutcomes.WithLabelValues(region, string(CacheOutcomeFresh)).Inc()
		return entry.data, CacheOutcomeFresh
	}

	v, _, _ := m.group.Do(region, func() (interface{}, error) {
		return m.refresh(ctx, region), nil
	})
	res := v.(refreshResult)

	metricsCacheOutcomes.WithLabelValues(region, string(res.outcome)).Inc()
	return res.data, res.outcome
}

// refresh fetches the metric names and replaces the entry on success.
// On failure a stale entry is retained and served, never discarded
// before a successful replacement exists.
func (m *MetricsCache) refresh(ctx context.Context, region string) refreshResult {
	data, err := m.fetch(ctx, region)
	if err == nil {
		m.mu.Lock()
		m.entries[region] = cacheEntry{data: data, fetchedAt: m.now()}
		m.mu.Unlock()
		m.logger.Debug("Refreshed metrics cache", "region", region, "metric_count", len(data))
		return refreshResult{data: data, outcome: CacheOutcomeRefreshed}
	}

	m.logger.Error("Failed to fetch metrics for cache", "region", region, "error", err)

	m.mu.RLock()
	entry, ok := m.entries[region]
	m.mu.RUnlock()
	if ok && entry.data != nil {
		return refreshResult{data: entry.data, outcome: CacheOutcomeStaleFallback}
	}
	return refreshResult{data: []string{}, outcome: CacheOutcomeEmpty}
}

func (m *MetricsCache) fetch(ctx context.Context, region string) ([]string, error) {
	raw, err := m.client.Request(ctx, "label/__name__/values", nil, region)
	if err != nil {
		return nil, err
	}

	var metrics []string
	if err := json.Unmarshal(raw, &metrics); err != nil {
		return nil, &InvalidResponseError{Err: err}
	}
	return metrics, nil
}
