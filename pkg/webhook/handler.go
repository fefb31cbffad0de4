package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mihaimyh/botquota/pkg/controlplane"
	"github.com/mihaimyh/botquota/pkg/entitlement"
	"github.com/mihaimyh/botquota/pkg/webhook/internal"
)

const (
	maxBodyBytes = 256 * 1024

	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = time.Minute
)

// Config configures the webhook endpoint.
type Config struct {
	// Client is the control-plane client (required).
	Client *controlplane.Client

	// SigningSecret verifies inbound event signatures (required).
	SigningSecret string

	// Deduper is an optional event-ID fast path; see Deduper.
	Deduper Deduper

	// DedupTTL bounds dedup entries (default: 24 hours).
	DedupTTL time.Duration

	// RateLimitRequests / RateLimitWindow bound requests per client IP
	// (default: 100 per minute).
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logger is used for structured logging (default: NoopLogger).
	Logger entitlement.Logger

	// Metrics tracks webhook processing (default: NoopMetrics).
	Metrics Metrics
}

// Webhook is the inbound billing-event endpoint: verification, parsing, and
// reconciliation behind a single http.Handler.
type Webhook struct {
	engine      *Engine
	secret      []byte
	rateLimiter *internal.RateLimiter
	logger      entitlement.Logger
	metrics     Metrics
}

// New creates a webhook endpoint.
func New(config Config) (*Webhook, error) {
	engine, err := NewEngine(EngineConfig{
		Client:   config.Client,
		Deduper:  config.Deduper,
		DedupTTL: config.DedupTTL,
		Logger:   config.Logger,
		Metrics:  config.Metrics,
	})
	if err != nil {
		return nil, err
	}

	limit := config.RateLimitRequests
	if limit <= 0 {
		limit = defaultRateLimitRequests
	}
	window := config.RateLimitWindow
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	logger := config.Logger
	if logger == nil {
		logger = &entitlement.NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	return &Webhook{
		engine:      engine,
		secret:      []byte(strings.TrimSpace(config.SigningSecret)),
		rateLimiter: internal.NewRateLimiter(limit, window),
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Engine returns the underlying reconciliation engine, for direct feeding
// (e.g. from a provider-specific adapter).
func (wh *Webhook) Engine() *Engine {
	return wh.engine
}

// Handler returns the HTTP handler for billing events, wrapped with per-IP
// rate limiting.
func (wh *Webhook) Handler() http.Handler {
	return wh.rateLimiter.Middleware(http.HandlerFunc(wh.handleEvent))
}

func (wh *Webhook) handleEvent(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	setSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(wh.secret) == 0 {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			wh.metrics.RecordWebhookError("payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
			wh.metrics.RecordWebhookError("invalid_payload")
		}
		return
	}

	// Verification runs on the raw bytes, before any parsing.
	if err := VerifySignature(body, r.Header.Get(SignatureHeader), wh.secret); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		wh.metrics.RecordWebhookError("auth_failed")
		wh.logger.Warn("webhook signature rejected",
			entitlement.Field{Key: "remote", Value: internal.ClientIP(r)},
			entitlement.Field{Key: "error", Value: err.Error()})
		return
	}

	event, err := parseEvent(body)
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		wh.metrics.RecordWebhookError("invalid_payload")
		return
	}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled,
		EventSubscriptionEnded, EventTrialStarted:
	default:
		// Unknown event type - acknowledge and ignore.
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		wh.metrics.RecordWebhookEvent(event.Type, "discarded")
		return
	}

	snap, err := event.snapshot()
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		wh.metrics.RecordWebhookError("invalid_payload")
		return
	}

	outcome, err := wh.engine.Process(r.Context(), snap)
	if err != nil {
		// A server error tells the sender to re-deliver later.
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		wh.metrics.RecordWebhookEvent(event.Type, "error")
		wh.metrics.RecordWebhookError("processing_error")
		wh.metrics.RecordWebhookProcessingDuration(event.Type, time.Since(startTime))
		wh.logger.Error("webhook processing failed",
			entitlement.Field{Key: "event_id", Value: event.ID},
			entitlement.Field{Key: "event_type", Value: event.Type},
			entitlement.Field{Key: "error", Value: err.Error()})
		return
	}

	// Stale and duplicate deliveries are acknowledged as success so the
	// sender stops retrying.
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))

	status := "success"
	if !outcome.Applied {
		status = "discarded"
	}
	wh.metrics.RecordWebhookEvent(event.Type, status)
	wh.metrics.RecordWebhookProcessingDuration(event.Type, time.Since(startTime))
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
