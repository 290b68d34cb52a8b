package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/assistants-engine/pkg/coordinator"
	"github.com/codeready-toolchain/assistants-engine/pkg/eventbus"
	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
	"github.com/codeready-toolchain/assistants-engine/pkg/store"
)

// ingressDedupe is the narrow interface the ingress adapter needs from the
// durable processed-message-id ledger.
type ingressDedupe interface {
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// ingressAdapter turns an eventbus.Envelope (the wire shape both the mesh
// and the webhook fallback carry) into a coordinator.IngressEvent and
// drives one Coordinator.ProcessEvent call. It satisfies both
// eventbus.Handler (for MeshClient.Subscribe) and api.IngressDispatcher
// (for the webhook fallback's receiving endpoint) with one implementation,
// since both paths deliver the same envelope shape to the same assistant.
type ingressAdapter struct {
	coordinator *coordinator.Coordinator
	dedupe      ingressDedupe
	logger      *slog.Logger
}

// Dispatch implements api.IngressDispatcher.
func (a *ingressAdapter) Dispatch(ctx context.Context, entityID string, env eventbus.Envelope) error {
	return a.handle(ctx, env)
}

// handleMesh adapts eventbus.Handler's signature for MeshClient.Subscribe.
func (a *ingressAdapter) handleMesh(ctx context.Context, env eventbus.Envelope) error {
	return a.handle(ctx, env)
}

func (a *ingressAdapter) handle(ctx context.Context, env eventbus.Envelope) error {
	evt, err := envelopeToIngressEvent(env)
	if err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	if a.dedupe != nil && evt.Message.ID != "" {
		first, err := a.dedupe.MarkProcessed(ctx, evt.Message.ID)
		if err != nil {
			a.logger.Warn("dedupe ledger check failed, processing anyway", "message_id", evt.Message.ID, "error", err)
		} else if !first {
			a.logger.Debug("skipping already-processed message", "message_id", evt.Message.ID)
			return nil
		}
	}

	_, err = a.coordinator.ProcessEvent(ctx, evt)
	return err
}

// envelopeToIngressEvent decodes env.Message (a map[string]interface{})
// into execctx.Message via a JSON round trip, the same decode-by-reencode
// idiom the rest of this module uses for dynamic payloads.
func envelopeToIngressEvent(env eventbus.Envelope) (coordinator.IngressEvent, error) {
	var msg execctx.Message
	if env.Message != nil {
		raw, err := json.Marshal(env.Message)
		if err != nil {
			return coordinator.IngressEvent{}, fmt.Errorf("marshal message: %w", err)
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return coordinator.IngressEvent{}, fmt.Errorf("unmarshal message: %w", err)
		}
	}

	return coordinator.IngressEvent{
		ConversationID: env.ConversationID,
		Message:        msg,
		Trigger:        execctx.TriggerMessageReceived,
	}, nil
}

var _ ingressDedupe = (*store.Dedupe)(nil)
