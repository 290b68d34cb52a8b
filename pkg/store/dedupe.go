package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dedupe is the durable backstop behind eventbus.Dedupe's in-memory LRU:
// an append-only ledger of message ids this process has already routed
// (SPEC_FULL.md §3: "ProcessedMessageID — append-only dedupe ledger backing
// invariant 8... and the at-least-once/idempotent-by-message.id contract").
// A restart loses the in-memory LRU but not this table, so a redelivered
// message is still recognized as a duplicate.
type Dedupe struct {
	pool *pgxpool.Pool
}

// NewDedupe builds a Dedupe over pool.
func NewDedupe(pool *pgxpool.Pool) *Dedupe {
	return &Dedupe{pool: pool}
}

// MarkProcessed records messageID as processed. It reports whether this
// call was the first to record it (false means a duplicate delivery).
func (d *Dedupe) MarkProcessed(ctx context.Context, messageID string) (firstObservation bool, err error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO processed_message_id (message_id)
		VALUES ($1)
		ON CONFLICT (message_id) DO NOTHING
	`, messageID)
	if err != nil {
		return false, fmt.Errorf("mark message %q processed: %w", messageID, err)
	}
	return tag.RowsAffected() == 1, nil
}
