package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// PgConversationStore is the Postgres-backed ConversationStore (§3
// persistence mapping: "one row per conversationId, updated only by the
// Run Coordinator under the per-conversation mailbox lock").
type PgConversationStore struct {
	pool *pgxpool.Pool
}

// NewPgConversationStore builds a PgConversationStore over pool. Schema is
// expected to already exist (see pkg/store/migrations).
func NewPgConversationStore(pool *pgxpool.Pool) *PgConversationStore {
	return &PgConversationStore{pool: pool}
}

// Load returns the persisted record for conversationID, or a fresh
// idle/empty record if none exists yet — never an error for "not found".
func (s *PgConversationStore) Load(ctx context.Context, conversationID string) (*ConversationRecord, error) {
	var (
		state   string
		ctxJSON []byte
		version int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT state, context, version FROM conversation_state WHERE conversation_id = $1`,
		conversationID,
	).Scan(&state, &ctxJSON, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return &ConversationRecord{
			ConversationID: conversationID,
			State:          execctx.StateIdle,
			Context:        map[string]interface{}{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation_state: %w", err)
	}

	ctxMap := map[string]interface{}{}
	if len(ctxJSON) > 0 {
		if err := json.Unmarshal(ctxJSON, &ctxMap); err != nil {
			return nil, fmt.Errorf("decoding conversation context: %w", err)
		}
	}

	return &ConversationRecord{
		ConversationID: conversationID,
		State:          execctx.ConversationState(state),
		Context:        ctxMap,
		Version:        version,
	}, nil
}

// SaveState upserts conversationID's state, leaving context untouched.
func (s *PgConversationStore) SaveState(ctx context.Context, conversationID string, state execctx.ConversationState) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO conversation_state (conversation_id, state, context, version)
VALUES ($1, $2, '{}'::jsonb, 1)
ON CONFLICT (conversation_id) DO UPDATE
SET state = EXCLUDED.state, version = conversation_state.version + 1, updated_at = now()
`, conversationID, string(state))
	if err != nil {
		return fmt.Errorf("saving conversation state: %w", err)
	}
	return nil
}

// MergeContext applies updates on top of the persisted context map,
// last-writer-wins per top-level key, inside one transaction so a
// concurrent SaveState/MergeContext pair for the same conversation never
// torn-writes the row (defense in depth; the mailbox already serializes
// every write for a given conversationId at the application level).
func (s *PgConversationStore) MergeContext(ctx context.Context, conversationID string, updates map[string]interface{}) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning context merge transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var ctxJSON []byte
	err = tx.QueryRow(ctx, `SELECT context FROM conversation_state WHERE conversation_id = $1 FOR UPDATE`, conversationID).Scan(&ctxJSON)
	current := map[string]interface{}{}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Row doesn't exist yet; fall through to insert with just `updates`.
	case err != nil:
		return fmt.Errorf("loading context for merge: %w", err)
	default:
		if len(ctxJSON) > 0 {
			if err := json.Unmarshal(ctxJSON, &current); err != nil {
				return fmt.Errorf("decoding context for merge: %w", err)
			}
		}
	}

	for k, v := range updates {
		current[k] = v
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encoding merged context: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO conversation_state (conversation_id, state, context, version)
VALUES ($1, 'idle', $2, 1)
ON CONFLICT (conversation_id) DO UPDATE
SET context = EXCLUDED.context, version = conversation_state.version + 1, updated_at = now()
`, conversationID, merged)
	if err != nil {
		return fmt.Errorf("saving merged context: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing context merge: %w", err)
	}
	return nil
}
