package action

import (
	"context"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/condition"
	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

const defaultMaxIterations = 100

// loopParams decodes loop's params. The iterated array comes from
// itemsPath (a dotted path resolved against the execution context) when
// set, otherwise from the inline items list.
type loopParams struct {
	ItemsPath       string        `mapstructure:"itemsPath"`
	Items           []interface{} `mapstructure:"items"`
	As              string        `mapstructure:"as"`
	Index           string        `mapstructure:"index"`
	Actions         []Config      `mapstructure:"actions"`
	MaxIterations   int           `mapstructure:"maxIterations"`
	ContinueOnError bool          `mapstructure:"continueOnError"`
}

// loopHandler implements loop (§4.3): iterates an array resolved from a
// context path (or given inline), binding each element under the required
// "as" key and, if named, the iteration index under "index" — into a
// shallow-cloned execution context so the loop body doesn't leak bindings
// back into the enclosing run. Safety-capped at maxIterations (default,
// and hard ceiling, 100); continueOnError controls whether one iteration's
// action failure stops the whole loop.
type loopHandler struct {
	dispatcher *Dispatcher
}

// NewLoopHandler builds the loop handler over dispatcher.
func NewLoopHandler(dispatcher *Dispatcher) Handler {
	return &loopHandler{dispatcher: dispatcher}
}

func (h *loopHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p loopParams
	p.MaxIterations = defaultMaxIterations
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.As == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "as must be non-empty"}
	}
	if len(p.Actions) == 0 {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "actions must be non-empty"}
	}
	if p.MaxIterations <= 0 || p.MaxIterations > defaultMaxIterations {
		p.MaxIterations = defaultMaxIterations
	}

	items := p.Items
	if p.ItemsPath != "" {
		resolved := condition.Resolve(execCtx.ToMap(), p.ItemsPath)
		if condition.IsUndefined(resolved) {
			return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "itemsPath " + p.ItemsPath + " resolved to nothing"}
		}
		list, ok := resolved.([]interface{})
		if !ok {
			return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "itemsPath " + p.ItemsPath + " did not resolve to a list"}
		}
		items = list
	}

	iterations := 0
	var lastErr string
	perIteration := make([]map[string]interface{}, 0, len(items))

	for _, item := range items {
		if iterations >= p.MaxIterations {
			break
		}

		iterCtx := cloneExecutionContext(execCtx)
		iterCtx.Context[p.As] = item
		if p.Index != "" {
			iterCtx.Context[p.Index] = iterations
		}

		iterFailed := false
		for _, child := range p.Actions {
			res, tokenErr := h.dispatcher.Execute(ctx, iterCtx, child)
			if tokenErr != nil {
				return Result{}, tokenErr
			}
			if !res.Success {
				lastErr = res.Error
				iterFailed = true
				if !p.ContinueOnError {
					perIteration = append(perIteration, map[string]interface{}{"index": iterations, "success": false, "error": res.Error})
					return Result{
						Success:    false,
						ActionType: cfg.Type,
						Output:     map[string]interface{}{"iterations": iterations + 1, "results": perIteration},
						Error:      lastErr,
					}, nil
				}
				break
			}
		}

		perIteration = append(perIteration, map[string]interface{}{"index": iterations, "success": !iterFailed})
		iterations++
	}

	return success(cfg.Type, map[string]interface{}{
		"iterations": iterations,
		"results":    perIteration,
	}, time.Now()), nil
}

// cloneExecutionContext makes a shallow copy of execCtx with its own Context
// map, so loop iteration bindings (and any context.update inside the loop
// body) don't alias the enclosing run's context.
func cloneExecutionContext(execCtx *execctx.ExecutionContext) *execctx.ExecutionContext {
	clone := *execCtx
	clone.Context = make(map[string]interface{}, len(execCtx.Context)+2)
	for k, v := range execCtx.Context {
		clone.Context[k] = v
	}
	return &clone
}
