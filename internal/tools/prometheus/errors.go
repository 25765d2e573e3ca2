package prometheus

import (
	"fmt"
	"strings"
)

// UnknownRegionError is returned when a tool call names a region that is
// not configured. It carries the sorted list of configured regions so
// callers can correct their input.
type UnknownRegionError struct {
	Region    string
	Available []string
}

func (e *UnknownRegionError) Error() string {
	return fmt.Sprintf("region %q is not configured. Available regions: %s",
		e.Region, strings.Join(e.Available, ", "))
}

// RegionURLMissingError indicates a misconfigured region with an empty
// base URL.
type RegionURLMissingError struct {
	Region string
}

func (e *RegionURLMissingError) Error() string {
	return fmt.Sprintf("Prometheus URL is not configured for region %q", e.Region)
}

// TransportError wraps a network, timeout, or TLS failure on the
// outbound request. It is never retried.
type TransportError struct {
	Region   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to Prometheus endpoint %q in region %q failed: %v",
		e.Endpoint, e.Region, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPError indicates a non-2xx response from the upstream Prometheus.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Prometheus returned HTTP %d: %s", e.StatusCode, e.Body)
}

// InvalidResponseError indicates a response body that could not be
// parsed as JSON.
type InvalidResponseError struct {
	Err error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid JSON response from Prometheus: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// UpstreamError indicates Prometheus itself reported a non-success
// status in the response envelope.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Prometheus API error: %s", e.Message)
}
