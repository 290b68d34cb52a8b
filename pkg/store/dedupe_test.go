package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe_MarkProcessedFirstObservation(t *testing.T) {
	client := newTestClient(t)
	d := NewDedupe(client.Pool)

	first, err := d.MarkProcessed(context.Background(), "msg-1")

	require.NoError(t, err)
	assert.True(t, first)
}

func TestDedupe_MarkProcessedTwiceReportsDuplicate(t *testing.T) {
	client := newTestClient(t)
	d := NewDedupe(client.Pool)
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "msg-2")
	require.NoError(t, err)
	require.True(t, first)

	second, err := d.MarkProcessed(ctx, "msg-2")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestDedupe_DistinctMessageIDsAreIndependent(t *testing.T) {
	client := newTestClient(t)
	d := NewDedupe(client.Pool)
	ctx := context.Background()

	firstA, err := d.MarkProcessed(ctx, "msg-a")
	require.NoError(t, err)
	firstB, err := d.MarkProcessed(ctx, "msg-b")
	require.NoError(t, err)

	assert.True(t, firstA)
	assert.True(t, firstB)
}
