// Package eventbus implements the mesh/SDN event transport and its
// webhook fallback (C6's downstream effect, §4.6 and §9's "webhook
// fallback is a compatibility shim; prefer the mesh"). Both paths satisfy
// one Emitter contract: at-least-once delivery, idempotent by
// message.id.
package eventbus

import (
	"context"
	"time"
)

// Envelope is the outbound event posted to the mesh or a webhook: a
// forwarded message.new (§6 Egress events) or a control event.
type Envelope struct {
	Event          string                 `json:"event"`
	ConversationID string                 `json:"conversationId"`
	Message        map[string]interface{} `json:"message,omitempty"`
	Target         string                 `json:"target,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	PreemptedBy    string                 `json:"preemptedBy,omitempty"`
	RunID          string                 `json:"runId,omitempty"`
	TraceID        string                 `json:"traceId,omitempty"`
	EffectiveAt    time.Time              `json:"effectiveAt"`
}

// Emitter delivers one Envelope to one target entity id. Implementations
// must be idempotent by Envelope.Message["id"] on the receiving side —
// the caller only guarantees at-least-once, never exactly-once.
type Emitter interface {
	Emit(ctx context.Context, targetEntityID string, env Envelope) error
}

// Handler processes an inbound message.new delivered to this assistant's
// own entity id.
type Handler func(ctx context.Context, env Envelope) error
