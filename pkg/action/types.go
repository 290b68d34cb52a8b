// Package action implements the Action Dispatcher (C3): a polymorphic
// registry of action handlers sharing the contract
// execute(config, ctx) -> ActionResult. The dispatcher never panics out to
// its caller and always measures duration.
package action

import (
	"context"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// Type identifies an action handler in the registry.
type Type string

// All action types named in spec.md §2/§4.3.
const (
	TypeLLMInvoke          Type = "llm.invoke"
	TypeMessageSend         Type = "message.send"
	TypeStateTransition     Type = "state.transition"
	TypeContextUpdate       Type = "context.update"
	TypeWait                Type = "wait"
	TypeParallel            Type = "parallel"
	TypeCondition           Type = "condition"
	TypeLoop                Type = "loop"
	TypeAssistantRoute      Type = "assistant.route"
	TypeEmbeddingRoute      Type = "embedding.route"
	TypeHandoffCreate       Type = "handoff.create"
	TypeHandoffAssign       Type = "handoff.assign"
	TypeHandoffResolve      Type = "handoff.resolve"
	TypeIntegrationInvoke   Type = "integration.invoke"
	TypeWorkspaceCreate     Type = "workspace.create"
	TypeWorkspaceDestroy    Type = "workspace.destroy"
	TypeEmbeddingCreate     Type = "embedding.create"
	TypeEmbeddingSearch     Type = "embedding.search"
)

// Config is one action invocation inside a rule (ActionConfig in the data
// model). Params is intentionally untyped at this boundary — each handler
// decodes the subset of keys it understands via mapstructure.
type Config struct {
	Type   Type                   `json:"type" yaml:"type"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// Result is the uniform outcome of one action execution.
type Result struct {
	Success      bool                   `json:"success"`
	ActionType   Type                   `json:"actionType"`
	Output       map[string]interface{} `json:"output,omitempty"`
	Error        string                 `json:"error,omitempty"`
	DurationMs   int64                  `json:"durationMs"`
}

// Handler executes one action type. Implementations must not block the
// calling goroutine past ctx cancellation, and must never panic — the
// Dispatcher recovers defensively, but a well-behaved handler returns an
// error instead.
type Handler interface {
	Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	return f(ctx, execCtx, cfg)
}

func measure(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func success(actionType Type, output map[string]interface{}, start time.Time) Result {
	return Result{Success: true, ActionType: actionType, Output: output, DurationMs: measure(start)}
}

func failure(actionType Type, err error, start time.Time) Result {
	return Result{Success: false, ActionType: actionType, Error: err.Error(), DurationMs: measure(start)}
}
