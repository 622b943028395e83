package services

import (
	"sync"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/logger"
	"github.com/custodia-labs/recsync/internal/metrics"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "closed"
	}
}

// CircuitBreaker tracks consecutive failures against one source and
// opens/closes calls to it independently of the other sources. State is
// in-memory only; a process restart starts closed.
type CircuitBreaker struct {
	mu sync.Mutex

	name            domain.SourceName
	failMax         int
	resetTimeout    time.Duration
	state           BreakerState
	failureCount    int
	lastFailureTime time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker for a source.
func NewCircuitBreaker(name domain.SourceName, cfg domain.BreakerConfig) *CircuitBreaker {
	failMax := cfg.FailMax
	if failMax <= 0 {
		failMax = 5
	}
	resetTimeout := cfg.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		name:         name,
		failMax:      failMax,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// CanExecute reports whether a call to the source may be attempted. It
// never mutates the failure count but performs the lazy open → half-open
// transition once the reset timeout has elapsed. When it returns false the
// caller must fail fast with domain.ErrBreakerOpen rather than attempting
// the call.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Sub(b.lastFailureTime) >= b.resetTimeout {
			b.setState(BreakerHalfOpen)
			return true
		}
		return false
	}
	return true
}

// RecordSuccess reports a successful call. In half-open it closes the
// breaker; in any state it resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state != BreakerClosed {
		b.setState(BreakerClosed)
	}
}

// RecordFailure reports a failed call and re-evaluates the open
// transition.
func (b *CircuitBreaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()
	if b.failureCount >= b.failMax && b.state != BreakerOpen {
		logger.Warn("circuit breaker for %s opened after %d consecutive failures: %v", b.name, b.failureCount, err)
		b.setState(BreakerOpen)
	}
}

// State returns the current state without side effects.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the consecutive failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// setState transitions the state machine. Caller holds b.mu.
func (b *CircuitBreaker) setState(s BreakerState) {
	b.state = s
	metrics.BreakerState.WithLabelValues(string(b.name)).Set(float64(s))
}

// BreakerRegistry owns one breaker per source, created lazily on first
// use. It is constructed once at process start and passed by reference
// into each adapter run, never a module-level singleton.
type BreakerRegistry struct {
	mu       sync.Mutex
	cfg      domain.BreakerConfig
	breakers map[domain.SourceName]*CircuitBreaker
}

// NewBreakerRegistry creates an empty registry with the configured
// failMax/resetTimeout applied to every breaker it creates.
func NewBreakerRegistry(cfg domain.BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		cfg:      cfg,
		breakers: make(map[domain.SourceName]*CircuitBreaker),
	}
}

// For returns the breaker for a source, creating it on first use.
func (r *BreakerRegistry) For(source domain.SourceName) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[source]
	if !ok {
		b = NewCircuitBreaker(source, r.cfg)
		r.breakers[source] = b
	}
	return b
}
