package controlplane

import "time"

// Metrics defines the interface for tracking control-plane client operations.
type Metrics interface {
	// RecordAPICall records a call outcome. status is an HTTP status code
	// as string, or one of "timeout", "network_error", "circuit_open".
	RecordAPICall(endpoint, status string)

	// RecordAPICallDuration records how long a call took.
	RecordAPICallDuration(endpoint string, duration time.Duration)

	// RecordBreakerStateChange records a circuit breaker state change.
	RecordBreakerStateChange(state string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordAPICall(_, _ string)                       {}
func (n *NoopMetrics) RecordAPICallDuration(_ string, _ time.Duration) {}
func (n *NoopMetrics) RecordBreakerStateChange(_ string)               {}
