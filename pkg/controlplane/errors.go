package controlplane

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned without a network attempt while the
	// breaker considers the control plane unhealthy.
	ErrCircuitOpen = errors.New("control plane circuit open")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("control plane request timed out")

	// ErrNetwork is returned for connection-level failures.
	ErrNetwork = errors.New("control plane unreachable")
)

// APIError is returned when the control plane is reachable but rejects the
// request with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("control plane returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the caller may safely retry the operation.
// Circuit-open, timeout, network, and 5xx failures are retryable; a 4xx is a
// payload defect the sender must fix first.
func Retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return false
}
