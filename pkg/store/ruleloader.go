package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

// RuleLoader implements rules.Loader over the rule_sets table: one row per
// "<assistant-key>:<org-id>" (or "...:default") cache key, the whole
// RuleSet stored as a JSONB blob (§3 Lifecycle: "Rules are versioned; a
// rule set edit produces a new version").
type RuleLoader struct {
	pool *pgxpool.Pool
}

// NewRuleLoader builds a RuleLoader over pool.
func NewRuleLoader(pool *pgxpool.Pool) *RuleLoader {
	return &RuleLoader{pool: pool}
}

// Load implements rules.Loader: (nil, nil) on a cache miss, never an error
// for "not found" — the Store's fallback lookup depends on that.
func (l *RuleLoader) Load(ctx context.Context, key string) (*rules.RuleSet, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT rules FROM rule_sets WHERE cache_key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rule set %q: %w", key, err)
	}

	var rs rules.RuleSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("decode rule set %q: %w", key, err)
	}
	return &rs, nil
}

// Put upserts a rule set, bumping its version column. Called by the rule
// set edit path (debug ingress / an admin API this core doesn't expose
// directly) ahead of a Store.Invalidate so the next Resolve picks up the
// new version.
func (l *RuleLoader) Put(ctx context.Context, cacheKey string, rs *rules.RuleSet) error {
	raw, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal rule set %q: %w", cacheKey, err)
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO rule_sets (cache_key, assistant_key, org_id, version, rules, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (cache_key) DO UPDATE SET
			version = rule_sets.version + 1,
			rules = EXCLUDED.rules,
			updated_at = now()
	`, cacheKey, rs.AssistantKey, rs.OrgID, rs.Version, raw)
	if err != nil {
		return fmt.Errorf("upsert rule set %q: %w", cacheKey, err)
	}
	return nil
}
