package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// channelForEntity derives the NOTIFY channel name for one entity id,
// mirroring the teacher's SessionChannel(sessionID) convention.
func channelForEntity(entityID string) string {
	return "assistant_inbox_" + entityID
}

// MeshClient is the SDN mesh transport: Postgres LISTEN/NOTIFY scoped to
// `target:"assistants", boundary:"intra"` (§4.6). Publish is transactional:
// every envelope is inserted into the `outbox` table and pg_notify'd inside
// the same transaction, so a rollback never phantom-notifies and a target
// that was offline at NOTIFY time can still catch up by replaying its
// undelivered outbox rows (Subscribe does this once on registration).
// Subscribe dedicates one connection to receiving notifications, grounded
// on the teacher's NotifyListener (a single goroutine owns the LISTEN
// connection; all LISTEN/UNLISTEN commands are serialized through it to
// avoid the "conn busy" race between WaitForNotification and Exec).
type MeshClient struct {
	pool *pgxpool.Pool

	mu       sync.Mutex
	listenCh chan listenCmd
	running  bool
}

type listenCmd struct {
	channel string
	handler Handler
}

// NewMeshClient builds a MeshClient over pool.
func NewMeshClient(pool *pgxpool.Pool) *MeshClient {
	return &MeshClient{pool: pool, listenCh: make(chan listenCmd, 16)}
}

// Emit persists env to the outbox and NOTIFYs targetEntityID's channel in
// one transaction. Returns an error the caller (Bus) uses to fall back to
// the webhook path; Emit itself never retries.
func (m *MeshClient) Emit(ctx context.Context, targetEntityID string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding mesh envelope: %w", err)
	}
	channel := channelForEntity(targetEntityID)

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning outbox transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once Commit succeeds

	if _, err := tx.Exec(ctx, "INSERT INTO outbox (channel, payload) VALUES ($1, $2)", channel, string(payload)); err != nil {
		return fmt.Errorf("persisting outbox row: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing outbox transaction: %w", err)
	}
	return nil
}

// outboxRow is one undelivered outbox entry awaiting replay.
type outboxRow struct {
	id      int64
	payload string
}

// replayPending delivers every outbox row for entityID's channel that
// predates this call and hasn't been marked delivered, then marks each
// delivered. Subscribe calls this once on registration so a target that
// missed its NOTIFY while offline still sees the event (at-least-once).
func (m *MeshClient) replayPending(ctx context.Context, entityID string, handler Handler) error {
	channel := channelForEntity(entityID)

	rows, err := m.pool.Query(ctx, "SELECT id, payload FROM outbox WHERE channel = $1 AND delivered_at IS NULL ORDER BY id", channel)
	if err != nil {
		return fmt.Errorf("querying pending outbox rows: %w", err)
	}
	var pending []outboxRow
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.id, &r.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scanning outbox row: %w", err)
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading pending outbox rows: %w", err)
	}

	for _, r := range pending {
		var env Envelope
		if err := json.Unmarshal([]byte(r.payload), &env); err != nil {
			slog.Error("outbox payload decode failed", "channel", channel, "outboxId", r.id, "error", err)
			continue
		}
		if err := handler(ctx, env); err != nil {
			slog.Error("outbox replay handler failed", "channel", channel, "outboxId", r.id, "error", err)
			continue
		}
		if _, err := m.pool.Exec(ctx, "UPDATE outbox SET delivered_at = now() WHERE id = $1", r.id); err != nil {
			slog.Error("marking outbox row delivered failed", "channel", channel, "outboxId", r.id, "error", err)
		}
	}
	return nil
}

// Subscribe registers handler for messages addressed to entityID, replays
// every outbox row for entityID's channel not yet marked delivered, and
// starts the dedicated LISTEN connection on first call. Rows handled live by
// the receive loop are never marked delivered, so they are replayed again on
// a later Subscribe. The replay runs on the caller's goroutine; live
// notifications invoke handler on the receive loop's goroutine, where it
// must not block for long.
func (m *MeshClient) Subscribe(ctx context.Context, entityID string, handler Handler) error {
	if err := m.replayPending(ctx, entityID, handler); err != nil {
		slog.Error("outbox replay on subscribe failed", "entityId", entityID, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		conn, err := m.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquiring dedicated LISTEN connection: %w", err)
		}
		m.running = true
		go m.receiveLoop(conn.Conn())
	}

	select {
	case m.listenCh <- listenCmd{channel: channelForEntity(entityID), handler: handler}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// receiveLoop is the sole goroutine touching conn, per the teacher's
// NotifyListener design note: LISTEN/UNLISTEN and WaitForNotification
// must never race on the same pgx connection. It waits with a short
// per-iteration timeout so pending Subscribe calls queued on listenCh are
// never starved by a quiet channel.
func (m *MeshClient) receiveLoop(conn *pgx.Conn) {
	handlers := map[string]Handler{}
	ctx := context.Background()

	for {
		m.drainPendingSubscriptions(ctx, conn, handlers)

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				continue // timeout — loop back to drain pending subscriptions
			}
			slog.Error("mesh WaitForNotification failed", "error", err)
			return
		}

		handler, ok := handlers[notification.Channel]
		if !ok {
			continue
		}
		var env Envelope
		if err := json.Unmarshal([]byte(notification.Payload), &env); err != nil {
			slog.Error("mesh payload decode failed", "channel", notification.Channel, "error", err)
			continue
		}
		if err := handler(ctx, env); err != nil {
			slog.Error("mesh handler failed", "channel", notification.Channel, "error", err)
		}
	}
}

func (m *MeshClient) drainPendingSubscriptions(ctx context.Context, conn *pgx.Conn, handlers map[string]Handler) {
	for {
		select {
		case cmd := <-m.listenCh:
			if _, err := conn.Exec(ctx, "LISTEN \""+cmd.channel+"\""); err != nil {
				slog.Error("mesh LISTEN failed", "channel", cmd.channel, "error", err)
				continue
			}
			handlers[cmd.channel] = cmd.handler
		default:
			return
		}
	}
}
