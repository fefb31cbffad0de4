package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/botquota/pkg/entitlement"
	"github.com/mihaimyh/botquota/pkg/webhook/internal"
)

const maxBodyBytes = 256 * 1024

// handleWebhook processes incoming Stripe webhook events.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(p.webhookSecret) == 0 {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxBodyBytes)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		p.metrics.RecordWebhookError("invalid_payload")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	event, err := stripe.ConstructEvent(body, sig, string(p.webhookSecret))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		p.metrics.RecordWebhookError("auth_failed")
		return
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	applied, err := p.processEvent(r.Context(), &event)
	if err != nil {
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		p.metrics.RecordWebhookEvent(eventType, "error")
		p.metrics.RecordWebhookError("processing_error")
		p.metrics.RecordWebhookProcessingDuration(eventType, time.Since(startTime))
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		return
	}

	status := "success"
	if !applied {
		status = "discarded"
	}
	p.metrics.RecordWebhookEvent(eventType, status)
	p.metrics.RecordWebhookProcessingDuration(eventType, time.Since(startTime))
}

// processEvent maps a Stripe event onto a snapshot and runs the engine.
// Returns whether an entitlement patch was applied.
func (p *Provider) processEvent(ctx context.Context, event *stripe.Event) (bool, error) {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return p.reconcileSubscription(ctx, event, false)
	case "customer.subscription.deleted":
		return p.reconcileSubscription(ctx, event, true)
	default:
		// Unknown event type - ignore silently.
		return false, nil
	}
}

func (p *Provider) reconcileSubscription(ctx context.Context, event *stripe.Event, ended bool) (bool, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return false, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	email, err := p.customerEmail(ctx, &sub)
	if err != nil {
		return false, fmt.Errorf("failed to resolve customer email for subscription %s: %w", sub.ID, err)
	}

	// Period fields live in the raw event payload across API versions.
	var raw map[string]interface{}
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return false, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}

	snap := entitlement.Snapshot{
		SubscriptionID:    sub.ID,
		CustomerEmail:     email,
		Status:            string(sub.Status),
		Items:             lineItems(&sub),
		Metadata:          metadataFor(&sub),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PeriodEnd:         periodEndFor(raw),
		EventID:           event.ID,
		EventAt:           time.Unix(event.Created, 0).UTC(),
	}
	if ended {
		snap.Status = entitlement.StatusCanceled
	}

	outcome, err := p.engine.Process(ctx, snap)
	if err != nil {
		return false, err
	}
	return outcome.Applied, nil
}
