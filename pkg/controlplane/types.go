package controlplane

import "time"

// User is the control plane's persisted view of an account, keyed by email
// for lookup and creation.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	DisplayName        string     `json:"display_name"`
	MaxConcurrentBots  int        `json:"max_concurrent_bots"`
	SubscriptionTier   string     `json:"subscription_tier"`
	SubscriptionStatus string     `json:"subscription_status"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`

	// LastEventAt is the watermark: the timestamp of the most recently
	// applied billing event. Events not newer than it are stale.
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
}

// EntitlementPatch is a partial update of a user's entitlement fields.
// Only non-nil fields are changed.
type EntitlementPatch struct {
	MaxConcurrentBots  *int       `json:"max_concurrent_bots,omitempty"`
	SubscriptionTier   *string    `json:"subscription_tier,omitempty"`
	SubscriptionStatus *string    `json:"subscription_status,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	LastEventAt        *time.Time `json:"last_event_at,omitempty"`
}

// Health statuses reported by HealthCheck.
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

// Health is the result of a health probe against the control plane.
type Health struct {
	Status       string
	ResponseTime time.Duration
	Breaker      BreakerSnapshot

	// Err holds the probe failure, if any.
	Err error
}

type findOrCreateUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}
