package action

import (
	"context"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// stateTransitionParams decodes state.transition's params.
type stateTransitionParams struct {
	NewState string `mapstructure:"newState"`
}

// stateTransitionHandler implements state.transition (§4.3/§4.6): validates
// the requested target against the conversation state machine and, if
// legal, mutates execCtx.ConversationState in place for the rest of this
// run. An illegal transition is a ValidationError, never silently ignored.
type stateTransitionHandler struct{}

// NewStateTransitionHandler builds the state.transition handler.
func NewStateTransitionHandler() Handler {
	return &stateTransitionHandler{}
}

func (h *stateTransitionHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p stateTransitionParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.NewState == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "newState must be non-empty"}
	}

	to := execctx.ConversationState(p.NewState)
	from := execCtx.ConversationState

	if !execctx.CanTransition(from, to) {
		return Result{}, &ValidationError{
			ActionType: cfg.Type,
			Reason:     "illegal transition " + string(from) + " -> " + string(to),
		}
	}

	execCtx.ConversationState = to

	return success(cfg.Type, map[string]interface{}{
		"from":     string(from),
		"newState": string(to),
	}, time.Now()), nil
}
