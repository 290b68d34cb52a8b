package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

// PgRunLog is the Postgres-backed RunLog (§3: "append-only table, one row
// per processed event").
type PgRunLog struct {
	pool *pgxpool.Pool
}

// NewPgRunLog builds a PgRunLog over pool.
func NewPgRunLog(pool *pgxpool.Pool) *PgRunLog {
	return &PgRunLog{pool: pool}
}

// Append inserts one row per run. It never mutates or deletes existing
// rows — the run log is a journal, not a cache.
func (l *PgRunLog) Append(ctx context.Context, result rules.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding run result: %w", err)
	}

	_, err = l.pool.Exec(ctx, `
INSERT INTO run_log (run_id, org_id, conversation_id, trigger, rules_matched, result, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (run_id) DO NOTHING
`, result.RunID, result.OrgID, result.ConversationID, string(result.Trigger), result.RulesMatched, payload, result.Timestamp)
	if err != nil {
		return fmt.Errorf("appending run log row: %w", err)
	}
	return nil
}
