package action

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// handoffCreateParams decodes handoff.create's params.
type handoffCreateParams struct {
	Reason   string `mapstructure:"reason"`
	Priority string `mapstructure:"priority"`
}

// handoffAssignParams decodes handoff.assign's params.
type handoffAssignParams struct {
	HandoffID string `mapstructure:"handoffId"`
	AssigneeID string `mapstructure:"assigneeId"`
}

// handoffResolveParams decodes handoff.resolve's params.
type handoffResolveParams struct {
	HandoffID string `mapstructure:"handoffId"`
	Outcome   string `mapstructure:"outcome"`
}

// handoffHandler implements handoff.create / handoff.assign / handoff.resolve
// (§4.3). These actions are deliberately pure: they compute and return the
// handoff record's next shape as output, they don't persist anything
// themselves. A handoff.create is normally paired with a state.transition to
// handoff_pending in the same rule; durable handoff bookkeeping is Mesh's
// job once it observes the emitted conversation event, not this engine's.
type handoffHandler struct{}

// NewHandoffHandler builds the shared handoff.* handler.
func NewHandoffHandler() Handler {
	return &handoffHandler{}
}

func (h *handoffHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	switch cfg.Type {
	case TypeHandoffCreate:
		return h.create(execCtx, cfg)
	case TypeHandoffAssign:
		return h.assign(cfg)
	case TypeHandoffResolve:
		return h.resolve(cfg)
	default:
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "handoff handler does not serve " + string(cfg.Type)}
	}
}

func (h *handoffHandler) create(execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p handoffCreateParams
	p.Priority = "normal"
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.Reason == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "reason must be non-empty"}
	}

	return success(cfg.Type, map[string]interface{}{
		"handoffId":      uuid.NewString(),
		"conversationId": execCtx.ConversationID,
		"reason":         p.Reason,
		"priority":       p.Priority,
		"status":         "pending",
	}, time.Now()), nil
}

func (h *handoffHandler) assign(cfg Config) (Result, error) {
	var p handoffAssignParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.HandoffID == "" || p.AssigneeID == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "handoffId and assigneeId must be non-empty"}
	}

	return success(cfg.Type, map[string]interface{}{
		"handoffId":  p.HandoffID,
		"assigneeId": p.AssigneeID,
		"status":     "assigned",
	}, time.Now()), nil
}

func (h *handoffHandler) resolve(cfg Config) (Result, error) {
	var p handoffResolveParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.HandoffID == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "handoffId must be non-empty"}
	}

	return success(cfg.Type, map[string]interface{}{
		"handoffId": p.HandoffID,
		"outcome":   p.Outcome,
		"status":    "resolved",
	}, time.Now()), nil
}
