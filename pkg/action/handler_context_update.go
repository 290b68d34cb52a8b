package action

import (
	"context"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// contextUpdateParams decodes context.update's params: a flat set of keys
// to merge into the conversation's persistent context map.
type contextUpdateParams struct {
	Set map[string]interface{} `mapstructure:"set"`
}

// contextUpdateHandler implements context.update (§4.3). It does NOT mutate
// execCtx.Context in place — per ExecutionContext's documented contract the
// update is collected in the Result and applied to durable storage by the
// Run Coordinator once the run completes, so later rules in the same run
// still see the pre-update snapshot (invariant: a run observes one
// consistent context view throughout).
type contextUpdateHandler struct{}

// NewContextUpdateHandler builds the context.update handler.
func NewContextUpdateHandler() Handler {
	return &contextUpdateHandler{}
}

func (h *contextUpdateHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p contextUpdateParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if len(p.Set) == 0 {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "set must be non-empty"}
	}

	return success(cfg.Type, map[string]interface{}{
		"set": p.Set,
	}, time.Now()), nil
}
