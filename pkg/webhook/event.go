package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mihaimyh/botquota/pkg/entitlement"
)

// Event types emitted by the billing provider.
const (
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
	EventSubscriptionEnded    = "subscription.ended"
	EventTrialStarted         = "subscription.trial_started"
)

// eventEnvelope is the provider's webhook wire format. The envelope is
// decoded strictly; the subscription payload tolerates extra fields so new
// provider attributes don't break processing.
type eventEnvelope struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    eventData `json:"data"`
}

type eventData struct {
	Subscription json.RawMessage `json:"subscription"`
}

type subscriptionPayload struct {
	ID                string            `json:"id"`
	CustomerEmail     string            `json:"customer_email"`
	Status            string            `json:"status"`
	Items             []lineItemPayload `json:"items"`
	Metadata          map[string]string `json:"metadata"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
}

type lineItemPayload struct {
	Quantity   int64  `json:"quantity"`
	PriceID    string `json:"price_id"`
	PriceLabel string `json:"price_label"`
}

// parseEvent decodes a verified raw body into the envelope with strict
// validation.
func parseEvent(body []byte) (*eventEnvelope, error) {
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.DisallowUnknownFields()
	var envelope eventEnvelope
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: multiple JSON objects", ErrInvalidPayload)
	}
	if strings.TrimSpace(envelope.Type) == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidPayload)
	}
	return &envelope, nil
}

// snapshot converts the envelope into the resolver's input.
func (e *eventEnvelope) snapshot() (entitlement.Snapshot, error) {
	if len(e.Data.Subscription) == 0 {
		return entitlement.Snapshot{}, fmt.Errorf("%w: missing subscription", ErrInvalidPayload)
	}

	var sub subscriptionPayload
	if err := json.Unmarshal(e.Data.Subscription, &sub); err != nil {
		return entitlement.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(sub.CustomerEmail) == "" {
		return entitlement.Snapshot{}, fmt.Errorf("%w: missing customer_email on subscription %s", ErrInvalidPayload, sub.ID)
	}

	snap := entitlement.Snapshot{
		SubscriptionID:    sub.ID,
		CustomerEmail:     strings.TrimSpace(sub.CustomerEmail),
		Status:            sub.Status,
		Metadata:          sub.Metadata,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		EventID:           e.ID,
		EventAt:           time.Unix(e.Created, 0).UTC(),
	}
	if sub.CurrentPeriodEnd > 0 {
		snap.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	for _, item := range sub.Items {
		snap.Items = append(snap.Items, entitlement.LineItem{
			Quantity:   item.Quantity,
			PriceID:    item.PriceID,
			PriceLabel: item.PriceLabel,
		})
	}

	// An ended event is the post-period revocation; the provider may still
	// report the last known status, so force it.
	if e.Type == EventSubscriptionEnded {
		snap.Status = entitlement.StatusCanceled
	}
	return snap, nil
}
