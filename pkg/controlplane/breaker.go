package controlplane

import (
	"sync"
	"time"
)

// BreakerState represents the current state of the circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
	defaultMaxCooldown      = 5 * time.Minute
)

// BreakerConfig configures a Breaker. Zero values fall back to defaults.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens (default: 5).
	FailureThreshold int

	// Cooldown is the initial wait before a trial request is allowed after
	// the breaker opens (default: 30 seconds).
	Cooldown time.Duration

	// MaxCooldown caps the exponential cooldown growth on repeated trips
	// (default: 5 minutes).
	MaxCooldown time.Duration

	// OnStateChange is invoked after every state transition, outside the
	// breaker's lock, so callbacks may call State or Snapshot.
	OnStateChange func(state BreakerState)
}

// BreakerSnapshot is a point-in-time view of the breaker for health
// introspection. NextRetry is zero unless the breaker is open or half-open.
type BreakerSnapshot struct {
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	OpenedAt            time.Time    `json:"opened_at,omitzero"`
	NextRetry           time.Time    `json:"next_retry,omitzero"`
}

// Breaker is the shared circuit breaker guarding all control-plane calls.
// One instance per upstream, injected into every client, so every call site
// observes and influences the same health judgment.
type Breaker struct {
	mu sync.Mutex

	state               BreakerState
	failureThreshold    int
	baseCooldown        time.Duration
	maxCooldown         time.Duration
	cooldown            time.Duration
	consecutiveFailures int
	openedAt            time.Time
	nextRetry           time.Time
	probing             bool
	pendingNotify       []BreakerState

	onStateChange func(state BreakerState)

	now func() time.Time
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaultFailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaultCooldown
	}
	if config.MaxCooldown <= 0 {
		config.MaxCooldown = defaultMaxCooldown
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: config.FailureThreshold,
		baseCooldown:     config.Cooldown,
		maxCooldown:      config.MaxCooldown,
		cooldown:         config.Cooldown,
		onStateChange:    config.OnStateChange,
		now:              time.Now,
	}
}

// Allow reports whether a request may be attempted. While open it rejects
// with ErrCircuitOpen until the retry time; the call that crosses it moves
// the breaker to half-open and claims the single trial slot. Every granted
// Allow must be balanced by Success or Failure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.unlockAndNotify()

	switch b.state {
	case StateOpen:
		if b.now().Before(b.nextRetry) {
			return ErrCircuitOpen
		}
		b.changeState(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		// Exactly one in-flight trial call.
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Success records a successful call, closing the breaker and resetting the
// failure counter and cooldown.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.unlockAndNotify()

	b.probing = false
	b.consecutiveFailures = 0
	b.cooldown = b.baseCooldown
	if b.state != StateClosed {
		b.openedAt = time.Time{}
		b.nextRetry = time.Time{}
		b.changeState(StateClosed)
	}
}

// Failure records a failed call. Crossing the threshold while closed trips
// the breaker; a failed half-open trial re-opens it with an extended
// cooldown.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.unlockAndNotify()

	b.probing = false
	b.consecutiveFailures++

	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.failureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.cooldown *= 2
		if b.cooldown > b.maxCooldown {
			b.cooldown = b.maxCooldown
		}
		b.trip()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the current state for health introspection.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		OpenedAt:            b.openedAt,
		NextRetry:           b.nextRetry,
	}
}

func (b *Breaker) trip() {
	now := b.now()
	b.openedAt = now
	b.nextRetry = now.Add(b.cooldown)
	b.changeState(StateOpen)
}

// changeState records a transition; the notification fires in
// unlockAndNotify so the callback never runs under the lock.
func (b *Breaker) changeState(newState BreakerState) {
	if b.state == newState {
		return
	}
	b.state = newState
	b.pendingNotify = append(b.pendingNotify, newState)
}

func (b *Breaker) unlockAndNotify() {
	pending := b.pendingNotify
	b.pendingNotify = nil
	b.mu.Unlock()
	if b.onStateChange == nil {
		return
	}
	for _, state := range pending {
		b.onStateChange(state)
	}
}
