package coordinator

import (
	"context"
	"log/slog"
	"sync"
)

// BreakerStore persists one target's circuit-breaker snapshot so a process
// restart doesn't silently reopen a broken circuit (SPEC_FULL.md §3).
type BreakerStore interface {
	Load(ctx context.Context, target string) (*BreakerSnapshot, error)
	Save(ctx context.Context, target string, snap BreakerSnapshot) error
}

// BreakerRegistry lazily creates and caches one CircuitBreaker per outbound
// target (Messaging, Integrations, Identity, or a specific assistant
// webhook), restoring from BreakerStore on first access and persisting
// after every state-changing call.
type BreakerRegistry struct {
	store  BreakerStore
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry builds a registry over store. store may be nil, in
// which case breakers are purely in-memory (e.g. in tests).
func NewBreakerRegistry(store BreakerStore, logger *slog.Logger) *BreakerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerRegistry{store: store, logger: logger.With("component", "breaker-registry"), breakers: map[string]*CircuitBreaker{}}
}

// Get returns the breaker for target, creating (and, if a store is
// configured, restoring) it on first access.
func (r *BreakerRegistry) Get(ctx context.Context, target string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[target]; ok {
		return b
	}

	b := r.restore(ctx, target)
	r.breakers[target] = b
	return b
}

func (r *BreakerRegistry) restore(ctx context.Context, target string) *CircuitBreaker {
	if r.store == nil {
		return NewCircuitBreaker()
	}
	snap, err := r.store.Load(ctx, target)
	if err != nil {
		r.logger.Warn("failed to load circuit breaker snapshot, starting closed", "target", target, "error", err)
		return NewCircuitBreaker()
	}
	if snap == nil {
		return NewCircuitBreaker()
	}
	return NewCircuitBreakerFromSnapshot(*snap)
}

// Persist saves target's current breaker state. Call after RecordSuccess/
// RecordFailure so a restart observes the latest state.
func (r *BreakerRegistry) Persist(ctx context.Context, target string) {
	if r.store == nil {
		return
	}
	r.mu.Lock()
	b, ok := r.breakers[target]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := r.store.Save(ctx, target, b.Snapshot()); err != nil {
		r.logger.Warn("failed to persist circuit breaker snapshot", "target", target, "error", err)
	}
}
