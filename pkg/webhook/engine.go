package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mihaimyh/botquota/pkg/controlplane"
	"github.com/mihaimyh/botquota/pkg/entitlement"
)

const defaultDedupTTL = 24 * time.Hour

// Outcome reasons.
const (
	ReasonApplied   = "applied"
	ReasonStale     = "stale"
	ReasonDuplicate = "duplicate"
)

// Outcome describes what the engine did with an event.
type Outcome struct {
	// Applied is true when the entitlement patch was written.
	Applied bool

	// Reason is one of applied, stale, duplicate.
	Reason string

	// User is the record after processing (the pre-existing record for a
	// discarded event).
	User *controlplane.User

	// Resolved is the derived entitlement; zero when the event was
	// discarded before resolution.
	Resolved entitlement.Resolved
}

// EngineConfig configures a reconciliation engine.
type EngineConfig struct {
	// Client is the control-plane client (required).
	Client *controlplane.Client

	// Deduper is an optional event-ID fast path.
	Deduper Deduper

	// DedupTTL bounds dedup entries (default: 24 hours).
	DedupTTL time.Duration

	// Logger is used for structured logging (default: NoopLogger).
	Logger entitlement.Logger

	// Metrics tracks processing outcomes (default: NoopMetrics).
	Metrics Metrics
}

// Engine turns verified subscription snapshots into idempotent entitlement
// updates on the control plane.
//
// Ordering is enforced against the watermark persisted on the user record,
// not in-process state, so concurrent engines and horizontal replicas
// converge. The control plane offers no compare-and-swap on the watermark;
// two truly concurrent deliveries for the same subscription race between the
// read and the patch, and the last writer wins. Re-deliveries carry
// identical content, so the accepted window cannot diverge the final state.
type Engine struct {
	client   *controlplane.Client
	dedup    Deduper
	dedupTTL time.Duration
	logger   entitlement.Logger
	metrics  Metrics
}

// NewEngine creates a reconciliation engine.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Client == nil {
		return nil, errors.New("control plane client is required")
	}
	if config.DedupTTL <= 0 {
		config.DedupTTL = defaultDedupTTL
	}
	if config.Logger == nil {
		config.Logger = &entitlement.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	return &Engine{
		client:   config.Client,
		dedup:    config.Deduper,
		dedupTTL: config.DedupTTL,
		logger:   config.Logger,
		metrics:  config.Metrics,
	}, nil
}

// Process applies one event. Stale and duplicate deliveries are discarded
// without side effects and reported as success so the sender stops
// retrying. The operation is idempotent keyed by the watermark comparison:
// if the patch fails after the user lookup succeeded, re-invoking with the
// same event repeats the comparison and applies the change exactly once.
func (e *Engine) Process(ctx context.Context, snap entitlement.Snapshot) (*Outcome, error) {
	if strings.TrimSpace(snap.CustomerEmail) == "" {
		return nil, fmt.Errorf("%w: snapshot has no customer email", ErrInvalidPayload)
	}

	if e.dedup != nil && snap.EventID != "" {
		seen, err := e.dedup.Seen(ctx, snap.EventID)
		if err != nil {
			// Best effort only; the watermark below still guards.
			e.logger.Warn("dedup lookup failed",
				entitlement.Field{Key: "event_id", Value: snap.EventID},
				entitlement.Field{Key: "error", Value: err.Error()})
		} else if seen {
			e.logger.Debug("duplicate event discarded",
				entitlement.Field{Key: "event_id", Value: snap.EventID})
			return &Outcome{Applied: false, Reason: ReasonDuplicate}, nil
		}
	}

	user, err := e.client.FindOrCreateUser(ctx, snap.CustomerEmail, displayNameFromEmail(snap.CustomerEmail))
	if err != nil {
		return nil, err
	}

	// Ordering guard against the persisted watermark: an event that is not
	// strictly newer is a duplicate or out-of-order delivery.
	if user.LastEventAt != nil && !snap.EventAt.After(*user.LastEventAt) {
		e.logger.Debug("stale event discarded",
			entitlement.Field{Key: "subscription_id", Value: snap.SubscriptionID},
			entitlement.Field{Key: "event_at", Value: snap.EventAt},
			entitlement.Field{Key: "watermark", Value: *user.LastEventAt})
		return &Outcome{Applied: false, Reason: ReasonStale, User: user}, nil
	}

	resolved := entitlement.Resolve(snap)

	// Entitlement survives through the paid period on cancellation intent;
	// only an actually-ended subscription drops to the floor.
	maxBots := resolved.MaxBots
	if resolved.Status == entitlement.StatusCanceled {
		maxBots = 1
		resolved.MaxBots = maxBots
	}

	patch := controlplane.EntitlementPatch{
		MaxConcurrentBots:  &maxBots,
		SubscriptionTier:   &resolved.Tier,
		SubscriptionStatus: &resolved.Status,
		LastEventAt:        &snap.EventAt,
	}
	if !resolved.PeriodEnd.IsZero() {
		patch.SubscriptionEndsAt = &resolved.PeriodEnd
	}

	updated, err := e.client.PatchEntitlement(ctx, user.ID, patch)
	if err != nil {
		return nil, err
	}

	e.metrics.RecordEntitlementChange(user.SubscriptionTier, resolved.Tier)
	e.logger.Info("entitlement reconciled",
		entitlement.Field{Key: "user_id", Value: user.ID},
		entitlement.Field{Key: "subscription_id", Value: snap.SubscriptionID},
		entitlement.Field{Key: "tier", Value: resolved.Tier},
		entitlement.Field{Key: "max_bots", Value: maxBots},
		entitlement.Field{Key: "status", Value: resolved.Status})

	if e.dedup != nil && snap.EventID != "" {
		// Marked only after a successful patch so a failed attempt stays
		// retryable under the same event ID.
		if err := e.dedup.Mark(ctx, snap.EventID, e.dedupTTL); err != nil {
			e.logger.Warn("dedup mark failed",
				entitlement.Field{Key: "event_id", Value: snap.EventID},
				entitlement.Field{Key: "error", Value: err.Error()})
		}
	}

	return &Outcome{Applied: true, Reason: ReasonApplied, User: updated, Resolved: resolved}, nil
}

func displayNameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
