package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/assistants-engine/pkg/coordinator"
)

func TestCircuitBreakerStore_LoadMissingTargetReturnsNilNil(t *testing.T) {
	client := newTestClient(t)
	s := NewCircuitBreakerStore(client.Pool)

	snap, err := s.Load(context.Background(), "messaging")

	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestCircuitBreakerStore_SaveThenLoadRoundTrips(t *testing.T) {
	client := newTestClient(t)
	s := NewCircuitBreakerStore(client.Pool)
	ctx := context.Background()

	want := coordinator.BreakerSnapshot{State: coordinator.BreakerOpen, ConsecutiveFailures: 5, OpenedAt: time.Now().Truncate(time.Second)}
	require.NoError(t, s.Save(ctx, "integrations", want))

	got, err := s.Load(ctx, "integrations")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.ConsecutiveFailures, got.ConsecutiveFailures)
	assert.WithinDuration(t, want.OpenedAt, got.OpenedAt, time.Second)
}

func TestCircuitBreakerStore_SaveOverwritesPriorSnapshot(t *testing.T) {
	client := newTestClient(t)
	s := NewCircuitBreakerStore(client.Pool)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "messaging", coordinator.BreakerSnapshot{State: coordinator.BreakerOpen, ConsecutiveFailures: 5}))
	require.NoError(t, s.Save(ctx, "messaging", coordinator.BreakerSnapshot{State: coordinator.BreakerClosed, ConsecutiveFailures: 0}))

	got, err := s.Load(ctx, "messaging")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, coordinator.BreakerClosed, got.State)
}
