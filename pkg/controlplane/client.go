package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mihaimyh/botquota/pkg/entitlement"
)

const (
	defaultTimeout = 10 * time.Second

	// slowProbeThreshold is the round-trip latency above which a healthy
	// upstream is reported as degraded.
	slowProbeThreshold = time.Second

	authHeader = "X-Internal-Token"

	maxResponseBytes = 1 << 20

	pathFindOrCreateUser = "/api/internal/users/find-or-create"
	pathHealth           = "/api/internal/health"
)

// Config configures a control-plane client.
type Config struct {
	// BaseURL is the control plane's base URL (required).
	BaseURL string

	// Token is the static shared secret sent on every request.
	Token string

	// Timeout bounds each request (default: 10 seconds).
	Timeout time.Duration

	// Breaker is the shared circuit breaker. When nil a new one is created
	// from BreakerConfig; pass the same instance to every client talking to
	// the same upstream so they share one health judgment.
	Breaker *Breaker

	// BreakerConfig is used only when Breaker is nil.
	BreakerConfig BreakerConfig

	// HTTPClient is an optional HTTP client. If nil, a default client is
	// used. The per-request timeout comes from the context deadline, not
	// from the client.
	HTTPClient *http.Client

	// Logger is used for structured logging (default: NoopLogger).
	Logger entitlement.Logger

	// Metrics tracks API calls and breaker transitions (default: NoopMetrics).
	Metrics Metrics
}

// Client exposes typed operations against the internal control-plane API.
// Every call goes through the shared circuit breaker.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *Breaker
	logger     entitlement.Logger
	metrics    Metrics
}

// NewClient creates a control-plane client.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("control plane base URL is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := config.Logger
	if logger == nil {
		logger = &entitlement.NoopLogger{}
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	breaker := config.Breaker
	if breaker == nil {
		breakerConfig := config.BreakerConfig
		userCallback := breakerConfig.OnStateChange
		breakerConfig.OnStateChange = func(state BreakerState) {
			metrics.RecordBreakerStateChange(string(state))
			logger.Warn("circuit breaker state change",
				entitlement.Field{Key: "state", Value: string(state)})
			if userCallback != nil {
				userCallback(state)
			}
		}
		breaker = NewBreaker(breakerConfig)
	}

	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		timeout:    timeout,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Breaker returns the shared circuit breaker, for injection into additional
// clients or for introspection.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// FindOrCreateUser looks up a user by email, creating one if absent. The
// control plane guarantees idempotency: repeated calls with the same email
// return the same user.
func (c *Client) FindOrCreateUser(ctx context.Context, email, displayName string) (*User, error) {
	var user User
	req := findOrCreateUserRequest{Email: email, DisplayName: displayName}
	if err := c.do(ctx, http.MethodPost, pathFindOrCreateUser, req, &user); err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}
	return &user, nil
}

// PatchEntitlement applies a partial update to a user's entitlement fields
// and returns the full updated record.
func (c *Client) PatchEntitlement(ctx context.Context, userID string, patch EntitlementPatch) (*User, error) {
	var user User
	path := "/api/internal/users/" + url.PathEscape(userID) + "/entitlement"
	if err := c.do(ctx, http.MethodPatch, path, patch, &user); err != nil {
		return nil, fmt.Errorf("patch entitlement: %w", err)
	}
	return &user, nil
}

// HealthCheck probes the control plane and reports status alongside the
// breaker snapshot. The probe counts toward the breaker like any other call
// but the check itself never fails: errors are folded into the status.
func (c *Client) HealthCheck(ctx context.Context) *Health {
	start := time.Now()
	err := c.do(ctx, http.MethodGet, pathHealth, nil, nil)
	health := &Health{
		ResponseTime: time.Since(start),
		Breaker:      c.breaker.Snapshot(),
		Err:          err,
	}

	switch {
	case err != nil:
		health.Status = HealthStatusUnhealthy
	case health.Breaker.State != StateClosed || health.ResponseTime > slowProbeThreshold:
		health.Status = HealthStatusDegraded
	default:
		health.Status = HealthStatusHealthy
	}
	return health
}

// do performs one breaker-wrapped JSON call. Timeouts, connection failures,
// and 5xx responses count against the breaker; 4xx responses do not, since
// the upstream is demonstrably reachable.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(authHeader, c.token)
	}

	if err := c.breaker.Allow(); err != nil {
		c.metrics.RecordAPICall(path, "circuit_open")
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	c.metrics.RecordAPICallDuration(path, duration)

	if err != nil {
		c.breaker.Failure()
		kind := ErrNetwork
		status := "network_error"
		if isTimeout(err) {
			kind = ErrTimeout
			status = "timeout"
		}
		c.metrics.RecordAPICall(path, status)
		c.logger.Warn("control plane call failed",
			entitlement.Field{Key: "method", Value: method},
			entitlement.Field{Key: "path", Value: path},
			entitlement.Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("%s %s: %w (%v)", method, path, kind, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.RecordAPICall(path, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.breaker.Success()
		if readErr != nil {
			return fmt.Errorf("%s %s: failed to read response: %w", method, path, readErr)
		}
		// A 204, or any 2xx with an empty body, is success with no data.
		if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
		return nil
	}

	if resp.StatusCode >= 500 {
		c.breaker.Failure()
	} else {
		c.breaker.Success()
	}
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
