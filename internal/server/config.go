package server

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
)

// RegionConfig holds the connection and credential settings for a single
// Prometheus region. At most one of Token and Username/Password is the
// effective credential; Token wins when both are set.
type RegionConfig struct {
	URL           string
	SSLVerify     bool
	Username      string
	Password      string
	Token         string
	CustomHeaders map[string]string
}

// PrometheusConfig holds the full multi-region Prometheus configuration.
type PrometheusConfig struct {
	// Regions maps lowercase region names to their configuration.
	Regions map[string]RegionConfig

	// DefaultRegion is used when a tool call does not name a region.
	DefaultRegion string

	// OrgID is an optional tenant identifier sent as X-Scope-OrgID on
	// every outbound request, independent of region.
	OrgID string

	// DisableLinks suppresses Prometheus UI deep links in query results.
	DisableLinks bool
}

const (
	urlPrefix           = "PROMETHEUS_URL_"
	usernamePrefix      = "PROMETHEUS_USERNAME_"
	passwordPrefix      = "PROMETHEUS_PASSWORD_"
	tokenPrefix         = "PROMETHEUS_TOKEN_"
	sslVerifyPrefix     = "PROMETHEUS_SSL_VERIFY_"
	customHeadersPrefix = "PROMETHEUS_CUSTOM_HEADERS_"
)

// LoadPrometheusConfig builds the multi-region configuration from
// environment variables.
//
// Region-specific variables use a region suffix, for example
// PROMETHEUS_URL_ATL and PROMETHEUS_TOKEN_ATL configure region "atl".
// When no region-specific URLs are set, the legacy single-region
// variables (PROMETHEUS_URL and friends) configure a region named
// "default". PROMETHEUS_DEFAULT_REGION selects the default region;
// absent that, region "default" is preferred, then the first configured
// region in sorted order.
func LoadPrometheusConfig(logger Logger) PrometheusConfig {
	regions := parseRegionConfigs(logger)

	defaultRegion := strings.ToLower(os.Getenv("PROMETHEUS_DEFAULT_REGION"))
	if defaultRegion == "" {
		if _, ok := regions["default"]; ok {
			defaultRegion = "default"
		} else if len(regions) > 0 {
			names := make([]string, 0, len(regions))
			for name := range regions {
				names = append(names, name)
			}
			sort.Strings(names)
			defaultRegion = names[0]
		} else {
			// No regions configured. Allowed for diagnostics and tests;
			// every query operation will fail until regions are set.
			defaultRegion = "default"
			logger.Warn("No Prometheus regions configured. Server will not be able to query Prometheus until configured.")
		}
	}

	return PrometheusConfig{
		Regions:       regions,
		DefaultRegion: defaultRegion,
		OrgID:         os.Getenv("ORG_ID"),
		DisableLinks:  envBool("PROMETHEUS_DISABLE_LINKS", false),
	}
}

// parseRegionConfigs scans the environment for region-suffixed variables
// and falls back to the legacy single-region variables.
func parseRegionConfigs(logger Logger) map[string]RegionConfig {
	regions := make(map[string]RegionConfig)

	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, urlPrefix) {
			continue
		}
		suffix := key[len(urlPrefix):]
		if suffix == "" || suffix == "SSL_VERIFY" {
			// PROMETHEUS_URL_SSL_VERIFY is the legacy flag, not a region.
			continue
		}

		url := os.Getenv(key)
		if url == "" {
			continue
		}

		name := strings.ToLower(suffix)
		regions[name] = RegionConfig{
			URL:           url,
			SSLVerify:     envBool(sslVerifyPrefix+suffix, true),
			Username:      os.Getenv(usernamePrefix + suffix),
			Password:      os.Getenv(passwordPrefix + suffix),
			Token:         os.Getenv(tokenPrefix + suffix),
			CustomHeaders: parseCustomHeaders(os.Getenv(customHeadersPrefix+suffix), name, logger),
		}
		logger.Info("Configured region", "region", name, "url", url)
	}

	if len(regions) > 0 {
		return regions
	}

	// Legacy single-region configuration.
	if url := os.Getenv("PROMETHEUS_URL"); url != "" {
		regions["default"] = RegionConfig{
			URL:           url,
			SSLVerify:     envBool("PROMETHEUS_URL_SSL_VERIFY", true),
			Username:      os.Getenv("PROMETHEUS_USERNAME"),
			Password:      os.Getenv("PROMETHEUS_PASSWORD"),
			Token:         os.Getenv("PROMETHEUS_TOKEN"),
			CustomHeaders: parseCustomHeaders(os.Getenv("PROMETHEUS_CUSTOM_HEADERS"), "default", logger),
		}
		logger.Info("Using legacy single-region configuration", "url", url)
	}

	return regions
}

func parseCustomHeaders(raw, region string, logger Logger) map[string]string {
	if raw == "" {
		return nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		logger.Warn("Failed to parse custom headers for region", "region", region, "error", err)
		return nil
	}
	return headers
}

func envBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
