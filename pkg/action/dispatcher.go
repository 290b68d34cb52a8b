package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// Dispatcher executes a single ActionConfig by looking up its handler in a
// Registry. An unknown type yields a failure Result; the dispatcher itself
// never panics out to its caller — a handler panic is recovered and turned
// into an InternalError result, consistent with the contract "it never
// throws."
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher builds a Dispatcher over registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Execute runs cfg against execCtx. It always returns a Result. The second
// return value is non-nil only when the handler raised a *TokenAuthError —
// that one error type is deliberately NOT folded into the Result, so the
// Rule Executor can propagate it past itself unabsorbed (invariant 10).
// Every other handler error is recorded in the returned Result and reported
// as nil here.
func (d *Dispatcher) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (result Result, tokenErr *TokenAuthError) {
	start := time.Now()

	handler, ok := d.registry.Lookup(cfg.Type)
	if !ok {
		return failure(cfg.Type, &ValidationError{ActionType: cfg.Type, Reason: "unknown action type"}, start), nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("action handler panicked", "action_type", cfg.Type, "panic", r)
			result = failure(cfg.Type, &InternalError{ActionType: cfg.Type, Cause: fmt.Errorf("panic: %v", r)}, start)
			tokenErr = nil
		}
	}()

	res, err := handler.Execute(ctx, execCtx, cfg)
	if err != nil {
		var te *TokenAuthError
		if errors.As(err, &te) {
			return Result{}, te
		}
		return failure(cfg.Type, err, start), nil
	}
	res.DurationMs = measure(start)
	res.ActionType = cfg.Type
	return res, nil
}
