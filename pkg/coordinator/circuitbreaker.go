package coordinator

import (
	"sync"
	"time"
)

// BreakerState is one of a CircuitBreaker's three states (§5 Shared
// resources: "circuit breakers per target with states closed -> open ->
// half-open").
type BreakerState string

// Supported breaker states.
const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

const (
	defaultFailureThreshold = 5
	defaultHalfOpenAfter    = 30 * time.Second
)

// CircuitBreaker is a per-target breaker for an outbound HTTP client
// (Messaging, Integrations, Identity). It opens after
// defaultFailureThreshold consecutive failures and offers a single
// half-open probe defaultHalfOpenAfter later; a probe success closes it
// again, a probe failure re-opens it and resets the half-open timer.
type CircuitBreaker struct {
	failureThreshold int
	halfOpenAfter    time.Duration

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenProbeInUse  bool
}

// NewCircuitBreaker builds a closed CircuitBreaker with the default
// threshold (5) and half-open delay (30s).
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: defaultFailureThreshold,
		halfOpenAfter:    defaultHalfOpenAfter,
		state:            BreakerClosed,
	}
}

// Allow reports whether a call to the guarded target may proceed. A
// half-open probe is granted to at most one caller at a time; all others
// are rejected as Overloaded (§7) until that probe resolves via
// RecordSuccess/RecordFailure.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) < b.halfOpenAfter {
			return false
		}
		b.state = BreakerHalfOpen
		b.halfOpenProbeInUse = true
		return true
	case BreakerHalfOpen:
		if b.halfOpenProbeInUse {
			return false
		}
		b.halfOpenProbeInUse = true
		return true
	default:
		return false
	}
}

// RecordSuccess resets the breaker to closed.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.consecutiveFailures = 0
	b.halfOpenProbeInUse = false
}

// RecordFailure counts a failure; at the threshold (or on a failed
// half-open probe) the breaker opens.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.halfOpenProbeInUse = false
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.consecutiveFailures = 0
	}
}

// State returns the breaker's current state, for health reporting.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerSnapshot is a CircuitBreaker's persisted shape (SPEC_FULL.md §3:
// "CircuitBreakerState — per-target state machine persisted so a process
// restart doesn't silently reopen a broken circuit").
type BreakerSnapshot struct {
	State               BreakerState
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Snapshot captures the breaker's current state for persistence.
func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{State: b.state, ConsecutiveFailures: b.consecutiveFailures, OpenedAt: b.openedAt}
}

// NewCircuitBreakerFromSnapshot rebuilds a breaker from a persisted
// snapshot (e.g. on process restart), rather than always starting closed.
func NewCircuitBreakerFromSnapshot(snap BreakerSnapshot) *CircuitBreaker {
	b := NewCircuitBreaker()
	b.state = snap.State
	b.consecutiveFailures = snap.ConsecutiveFailures
	b.openedAt = snap.OpenedAt
	return b
}
