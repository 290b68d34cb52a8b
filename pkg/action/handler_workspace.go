package action

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// workspaceCreateParams decodes workspace.create's params.
type workspaceCreateParams struct {
	Template string `mapstructure:"template"`
}

// workspaceDestroyParams decodes workspace.destroy's params.
type workspaceDestroyParams struct {
	WorkspaceID string `mapstructure:"workspaceId"`
}

// workspaceHandler implements workspace.create / workspace.destroy (§4.3).
// Workspace provisioning itself belongs to a collaborator outside this
// engine's scope (the Workspace/sandbox service); these handlers record the
// intent as output for the Run Coordinator to forward, the same pure-intent
// shape as handoff.*.
type workspaceHandler struct{}

// NewWorkspaceHandler builds the shared workspace.create/workspace.destroy handler.
func NewWorkspaceHandler() Handler {
	return &workspaceHandler{}
}

func (h *workspaceHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	switch cfg.Type {
	case TypeWorkspaceCreate:
		return h.create(execCtx, cfg)
	case TypeWorkspaceDestroy:
		return h.destroy(cfg)
	default:
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "workspace handler does not serve " + string(cfg.Type)}
	}
}

func (h *workspaceHandler) create(execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p workspaceCreateParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}

	return success(cfg.Type, map[string]interface{}{
		"workspaceId":    uuid.NewString(),
		"conversationId": execCtx.ConversationID,
		"template":       p.Template,
		"status":         "requested",
	}, time.Now()), nil
}

func (h *workspaceHandler) destroy(cfg Config) (Result, error) {
	var p workspaceDestroyParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.WorkspaceID == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "workspaceId must be non-empty"}
	}

	return success(cfg.Type, map[string]interface{}{
		"workspaceId": p.WorkspaceID,
		"status":      "destroy_requested",
	}, time.Now()), nil
}
