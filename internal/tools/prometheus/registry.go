package prometheus

import (
	"sort"
	"strings"

	"github.com/promregion/mcp-prometheus/internal/server"
)

// Registry answers case-insensitive region lookups against an immutable
// set of region configurations built once at startup.
type Registry struct {
	regions       map[string]server.RegionConfig
	defaultRegion string
}

// NewRegistry builds a Registry from the loaded configuration. Region
// names are normalized to lowercase. A registry with zero regions is
// legal (diagnostic and test contexts); every resolution then fails.
func NewRegistry(config server.PrometheusConfig) *Registry {
	regions := make(map[string]server.RegionConfig, len(config.Regions))
	for name, rc := range config.Regions {
		regions[strings.ToLower(name)] = rc
	}
	return &Registry{
		regions:       regions,
		defaultRegion: strings.ToLower(config.DefaultRegion),
	}
}

// Resolve returns the canonical (lowercase) region name and its
// configuration. An empty name resolves to the default region. Unknown
// names fail with *UnknownRegionError listing the configured regions.
func (r *Registry) Resolve(region string) (string, server.RegionConfig, error) {
	if region == "" {
		region = r.defaultRegion
	}
	name := strings.ToLower(region)

	rc, ok := r.regions[name]
	if !ok {
		return "", server.RegionConfig{}, &UnknownRegionError{
			Region:    region,
			Available: r.Names(),
		}
	}
	return name, rc, nil
}

// Names returns the configured region names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.regions))
	for name := range r.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegion returns the configured default region name.
func (r *Registry) DefaultRegion() string {
	return r.defaultRegion
}

// Len returns the number of configured regions.
func (r *Registry) Len() int {
	return len(r.regions)
}
