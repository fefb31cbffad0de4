// Package stripe adapts real Stripe webhook traffic onto the
// reconciliation engine. Signature verification uses Stripe's own scheme
// instead of the generic HMAC header.
package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/botquota/pkg/entitlement"
	"github.com/mihaimyh/botquota/pkg/webhook"
)

const providerName = "stripe"

// Config configures the Stripe adapter.
type Config struct {
	// Engine is the reconciliation engine fed by this adapter (required).
	Engine *webhook.Engine

	// StripeAPIKey authorizes customer lookups when the subscription does
	// not carry the customer email (required).
	StripeAPIKey string

	// StripeWebhookSecret verifies event signatures (required).
	StripeWebhookSecret string

	// Logger is used for structured logging (default: NoopLogger).
	Logger entitlement.Logger

	// Metrics tracks webhook processing (default: NoopMetrics).
	Metrics webhook.Metrics
}

// Provider translates Stripe events into subscription snapshots.
type Provider struct {
	engine        *webhook.Engine
	webhookSecret []byte
	stripeClient  *stripe.Client
	logger        entitlement.Logger
	metrics       webhook.Metrics
}

// NewProvider creates a new Stripe adapter.
func NewProvider(config Config) (*Provider, error) {
	if config.Engine == nil {
		return nil, webhook.ErrNotConfigured
	}
	apiKey := strings.TrimSpace(config.StripeAPIKey)
	if apiKey == "" {
		return nil, webhook.ErrNotConfigured
	}

	logger := config.Logger
	if logger == nil {
		logger = &entitlement.NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &webhook.NoopMetrics{}
	}

	return &Provider{
		engine:        config.Engine,
		webhookSecret: []byte(strings.TrimSpace(config.StripeWebhookSecret)),
		stripeClient:  stripe.NewClient(apiKey),
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks.
func (p *Provider) WebhookHandler() http.Handler {
	return http.HandlerFunc(p.handleWebhook)
}

// customerEmail resolves the owning customer's email for a subscription,
// preferring metadata over an API round-trip.
func (p *Provider) customerEmail(ctx context.Context, sub *stripe.Subscription) (string, error) {
	if sub.Metadata != nil {
		if email := strings.TrimSpace(sub.Metadata["customer_email"]); email != "" {
			return email, nil
		}
	}
	if sub.Customer != nil {
		if email := strings.TrimSpace(sub.Customer.Email); email != "" {
			return email, nil
		}
		cust, err := p.stripeClient.V1Customers.Retrieve(ctx, sub.Customer.ID, nil)
		if err != nil {
			return "", err
		}
		if email := strings.TrimSpace(cust.Email); email != "" {
			return email, nil
		}
	}
	return "", webhook.ErrInvalidPayload
}

func lineItems(sub *stripe.Subscription) []entitlement.LineItem {
	if sub.Items == nil {
		return nil
	}
	items := make([]entitlement.LineItem, 0, len(sub.Items.Data))
	for _, item := range sub.Items.Data {
		li := entitlement.LineItem{Quantity: item.Quantity}
		if item.Price != nil {
			li.PriceID = item.Price.ID
			li.PriceLabel = item.Price.Nickname
		}
		items = append(items, li)
	}
	return items
}

func metadataFor(sub *stripe.Subscription) map[string]string {
	metadata := make(map[string]string, len(sub.Metadata)+1)
	for k, v := range sub.Metadata {
		metadata[k] = v
	}
	// A trialing Stripe subscription is a trial grant for the resolver.
	if sub.Status == stripe.SubscriptionStatusTrialing && metadata[entitlement.MetadataTrialType] == "" {
		metadata[entitlement.MetadataTrialType] = "subscription_trial"
	}
	return metadata
}

func periodEndFor(raw map[string]interface{}) time.Time {
	if v, ok := raw["current_period_end"].(float64); ok && v > 0 {
		return time.Unix(int64(v), 0).UTC()
	}
	return time.Time{}
}
