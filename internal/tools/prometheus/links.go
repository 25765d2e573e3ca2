package prometheus

import (
	"net/url"
	"strings"
)

// Deep links into the Prometheus expression browser. Pure string
// formatting, no network.

func graphLink(baseURL string, params url.Values) map[string]string {
	return map[string]string{
		"href":  strings.TrimRight(baseURL, "/") + "/graph?" + params.Encode(),
		"rel":   "prometheus-ui",
		"title": "View in Prometheus UI",
	}
}

// instantQueryLink links to the UI for an instant query, pinned to the
// requested evaluation moment when one was given.
func instantQueryLink(baseURL, query, ts string) map[string]string {
	params := url.Values{
		"g0.expr": {query},
		"g0.tab":  {"0"},
	}
	if ts != "" {
		params.Set("g0.moment_input", ts)
	}
	return graphLink(baseURL, params)
}

// rangeQueryLink links to the UI for a range query window.
func rangeQueryLink(baseURL, query, start, end, step string) map[string]string {
	params := url.Values{
		"g0.expr":        {query},
		"g0.tab":         {"0"},
		"g0.range_input": {start + " to " + end},
		"g0.step_input":  {step},
	}
	return graphLink(baseURL, params)
}
