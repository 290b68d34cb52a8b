package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

// newTestClient starts a throwaway Postgres container, runs this package's
// embedded migrations against it, and returns a ready Client.
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	hostPort, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	client, err := NewClient(ctx, Config{
		Host:     host,
		Port:     hostPort,
		User:     "test",
		Password: "test",
		Database: "test",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestRuleLoader_PutThenLoadRoundTrips(t *testing.T) {
	client := newTestClient(t)
	loader := NewRuleLoader(client.Pool)
	ctx := context.Background()

	rs := &rules.RuleSet{
		AssistantKey: "log-analyst",
		OrgID:        "org-1",
		Version:      1,
		Rules: []rules.Rule{
			{ID: "r1", Name: "greet", Priority: 10, Enabled: true},
		},
	}

	require.NoError(t, loader.Put(ctx, rules.CacheKey("log-analyst", "org-1"), rs))

	loaded, err := loader.Load(ctx, rules.CacheKey("log-analyst", "org-1"))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Rules, 1)
	require.Equal(t, "r1", loaded.Rules[0].ID)
}

func TestRuleLoader_LoadMissingKeyReturnsNilNil(t *testing.T) {
	client := newTestClient(t)
	loader := NewRuleLoader(client.Pool)

	rs, err := loader.Load(context.Background(), rules.CacheKey("nobody", "org-1"))

	require.NoError(t, err)
	require.Nil(t, rs)
}

func TestRuleLoader_PutBumpsVersionOnConflict(t *testing.T) {
	client := newTestClient(t)
	loader := NewRuleLoader(client.Pool)
	ctx := context.Background()
	key := rules.CacheKey("log-analyst", "org-2")

	require.NoError(t, loader.Put(ctx, key, &rules.RuleSet{AssistantKey: "log-analyst", OrgID: "org-2", Version: 1}))
	require.NoError(t, loader.Put(ctx, key, &rules.RuleSet{AssistantKey: "log-analyst", OrgID: "org-2", Version: 1}))

	var version int
	require.NoError(t, client.Pool.QueryRow(ctx, `SELECT version FROM rule_sets WHERE cache_key = $1`, key).Scan(&version))
	require.Equal(t, 2, version)
}
