package entitlement

import "time"

// Subscription lifecycle statuses as reported by the billing provider.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"

	// StatusCanceling marks a subscription that is set to cancel at period
	// end but is still within its paid period. Stored on the user record so
	// callers can distinguish intent-to-cancel from an actual revocation.
	StatusCanceling = "canceling"
)

// Metadata keys recognized by the resolver.
const (
	// MetadataMaxBots is an explicit bot-count override set by support or
	// by the checkout flow.
	MetadataMaxBots = "max_bots"

	// MetadataTrialType marks a time-boxed trial grant.
	MetadataTrialType = "trial_type"

	// MetadataTier carries a human-assigned tier label.
	MetadataTier = "tier"
)

// TierTrial is the reserved tier tag for trial grants.
const TierTrial = "trial"

// LineItem is a single priced line on a subscription.
type LineItem struct {
	Quantity   int64  `json:"quantity"`
	PriceID    string `json:"price_id"`
	PriceLabel string `json:"price_label"`
}

// Snapshot is the billing provider's view of a subscription at the moment
// an event was emitted. Immutable once received; the sole input to Resolve.
type Snapshot struct {
	SubscriptionID    string            `json:"subscription_id"`
	CustomerEmail     string            `json:"customer_email"`
	Status            string            `json:"status"`
	Items             []LineItem        `json:"items"`
	Metadata          map[string]string `json:"metadata"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	PeriodEnd         time.Time         `json:"period_end"`
	EventID           string            `json:"event_id"`
	EventAt           time.Time         `json:"event_at"`
}

// Resolved is the authoritative entitlement derived from a Snapshot.
// MaxBots is always >= 1.
type Resolved struct {
	MaxBots           int
	Tier              string
	Status            string
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}
