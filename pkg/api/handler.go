// Package api provides operator-facing HTTP endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mihaimyh/botquota/pkg/controlplane"
)

// HealthResponse is the health endpoint's JSON body.
type HealthResponse struct {
	Status         string               `json:"status"`
	ResponseTimeMs int64                `json:"responseTimeMs"`
	CircuitBreaker CircuitBreakerStatus `json:"circuitBreaker"`
	Error          string               `json:"error,omitempty"`
}

// CircuitBreakerStatus summarizes the shared breaker for monitoring.
type CircuitBreakerStatus struct {
	IsOpen        bool       `json:"isOpen"`
	FailureCount  int        `json:"failureCount"`
	NextRetryTime *time.Time `json:"nextRetryTime,omitempty"`
}

// HealthHandler exposes the control-plane health probe: 200 when healthy,
// 207 when degraded, 503 when unhealthy.
type HealthHandler struct {
	client *controlplane.Client
}

// NewHealthHandler creates a health endpoint backed by the given client.
func NewHealthHandler(client *controlplane.Client) *HealthHandler {
	return &HealthHandler{client: client}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.client.HealthCheck(r.Context())

	response := HealthResponse{
		Status:         health.Status,
		ResponseTimeMs: health.ResponseTime.Milliseconds(),
		CircuitBreaker: CircuitBreakerStatus{
			IsOpen:       health.Breaker.State == controlplane.StateOpen,
			FailureCount: health.Breaker.ConsecutiveFailures,
		},
	}
	if !health.Breaker.NextRetry.IsZero() {
		next := health.Breaker.NextRetry
		response.CircuitBreaker.NextRetryTime = &next
	}
	if health.Err != nil {
		response.Error = health.Err.Error()
	}

	code := http.StatusOK
	switch health.Status {
	case controlplane.HealthStatusDegraded:
		code = http.StatusMultiStatus
	case controlplane.HealthStatusUnhealthy:
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Response already sent; nothing left to do.
		return
	}
}
