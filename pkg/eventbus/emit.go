package eventbus

import (
	"context"
	"log/slog"
)

// Bus is the single emit() entry point both routing and control-event
// callers use (§9: "Keep the two code paths behind a single emit function
// whose contract — at-least-once, idempotent by message.id — both
// implementations must satisfy"). It never returns an error to the
// caller: a failed mesh publish falls back to the webhook, and a failed
// webhook is logged, because user-visible egress failures are recorded as
// telemetry, not surfaced as a routing error (§7: "On any outbound
// message send failure, the user sees no additional message").
type Bus struct {
	mesh    Emitter
	webhook Emitter
	logger  *slog.Logger
}

// NewBus builds a Bus. webhook may be nil if no fallback is configured.
func NewBus(mesh Emitter, webhook Emitter, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{mesh: mesh, webhook: webhook, logger: logger.With("component", "eventbus")}
}

// Emit delivers env to targetEntityID via the mesh, falling back to the
// webhook client only if the mesh publish itself returns an error. A
// publish to a target with no current mesh subscriber still succeeds (pgx
// NOTIFY has no delivery acknowledgement; the outbox row waits for the
// target's next Subscribe), so it does not trigger the fallback.
func (b *Bus) Emit(ctx context.Context, targetEntityID string, env Envelope) {
	if b.mesh != nil {
		if err := b.mesh.Emit(ctx, targetEntityID, env); err == nil {
			return
		} else {
			b.logger.Warn("mesh publish failed, falling back to webhook",
				"target", targetEntityID, "error", err)
		}
	}

	if b.webhook == nil {
		b.logger.Error("no webhook fallback configured, event dropped",
			"target", targetEntityID, "event", env.Event)
		return
	}

	if err := b.webhook.Emit(ctx, targetEntityID, env); err != nil {
		b.logger.Error("webhook fallback failed, event dropped",
			"target", targetEntityID, "error", err)
	}
}
