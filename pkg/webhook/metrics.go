package webhook

import "time"

// Metrics defines the interface for tracking webhook processing.
type Metrics interface {
	// RecordWebhookEvent records a received event.
	// status: "success", "discarded", or "error".
	RecordWebhookEvent(eventType, status string)

	// RecordWebhookError records a processing error.
	// errorType: e.g. "auth_failed", "invalid_payload", "processing_error".
	RecordWebhookError(errorType string)

	// RecordWebhookProcessingDuration records how long an event took to
	// process.
	RecordWebhookProcessingDuration(eventType string, duration time.Duration)

	// RecordEntitlementChange records a tier transition.
	RecordEntitlementChange(fromTier, toTier string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _ string)                            {}
func (n *NoopMetrics) RecordWebhookError(_ string)                               {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_ string, _ time.Duration) {}
func (n *NoopMetrics) RecordEntitlementChange(_, _ string)                       {}
