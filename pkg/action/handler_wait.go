package action

import (
	"context"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

const (
	defaultWaitMs = 1000
	maxWaitMs     = 60000
)

// waitParams decodes wait's params.
type waitParams struct {
	DurationMs int `mapstructure:"durationMs"`
}

// waitHandler implements wait (§4.3): blocks the current action sequence
// for durationMs, honoring ctx cancellation. durationMs is clamped to
// maxWaitMs so a misconfigured rule can't stall a worker goroutine for an
// unbounded period.
type waitHandler struct{}

// NewWaitHandler builds the wait handler.
func NewWaitHandler() Handler {
	return &waitHandler{}
}

func (h *waitHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p waitParams
	p.DurationMs = defaultWaitMs
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.DurationMs < 0 {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "durationMs must be >= 0"}
	}
	if p.DurationMs > maxWaitMs {
		p.DurationMs = maxWaitMs
	}

	timer := time.NewTimer(time.Duration(p.DurationMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return success(cfg.Type, map[string]interface{}{"waitedMs": p.DurationMs}, time.Now()), nil
	case <-ctx.Done():
		return Result{}, &TimeoutError{ActionType: cfg.Type, TimeoutMs: p.DurationMs}
	}
}
