package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/assistants-engine/pkg/coordinator"
)

// CircuitBreakerStore implements coordinator.BreakerStore over the
// circuit_breaker_state table.
type CircuitBreakerStore struct {
	pool *pgxpool.Pool
}

// NewCircuitBreakerStore builds a CircuitBreakerStore over pool.
func NewCircuitBreakerStore(pool *pgxpool.Pool) *CircuitBreakerStore {
	return &CircuitBreakerStore{pool: pool}
}

// Load implements coordinator.BreakerStore.
func (s *CircuitBreakerStore) Load(ctx context.Context, target string) (*coordinator.BreakerSnapshot, error) {
	var (
		state    string
		failures int
		openedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `SELECT state, consecutive_failures, opened_at FROM circuit_breaker_state WHERE target = $1`, target).
		Scan(&state, &failures, &openedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load circuit breaker state for %q: %w", target, err)
	}

	snap := coordinator.BreakerSnapshot{State: coordinator.BreakerState(state), ConsecutiveFailures: failures}
	if openedAt != nil {
		snap.OpenedAt = *openedAt
	}
	return &snap, nil
}

// Save implements coordinator.BreakerStore.
func (s *CircuitBreakerStore) Save(ctx context.Context, target string, snap coordinator.BreakerSnapshot) error {
	var openedAt *time.Time
	if !snap.OpenedAt.IsZero() {
		openedAt = &snap.OpenedAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO circuit_breaker_state (target, state, consecutive_failures, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (target) DO UPDATE SET
			state = EXCLUDED.state,
			consecutive_failures = EXCLUDED.consecutive_failures,
			opened_at = EXCLUDED.opened_at,
			updated_at = now()
	`, target, string(snap.State), snap.ConsecutiveFailures, openedAt)
	if err != nil {
		return fmt.Errorf("save circuit breaker state for %q: %w", target, err)
	}
	return nil
}
