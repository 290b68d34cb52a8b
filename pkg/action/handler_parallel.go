package action

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// parallelParams decodes parallel's params.
type parallelParams struct {
	Actions []Config `mapstructure:"actions"`
}

// parallelHandler implements parallel (§4.3): fans its child actions out to
// the shared Dispatcher concurrently via errgroup, waits for all of them,
// and aggregates their failures with go-multierror. A child's
// TokenAuthError is not folded into the aggregate — once every child has
// finished, the first one in declaration order propagates out of parallel
// unabsorbed, same as it would from a single sequential action
// (invariant 10). Sibling children are not cancelled when one of them
// raises it.
//
// Children run against the same *execctx.ExecutionContext; they must not
// rely on a happens-before ordering between each other's effects. A child
// state.transition racing another child's is a rule-authoring bug, not
// something this handler arbitrates.
type parallelHandler struct {
	dispatcher *Dispatcher
}

// NewParallelHandler builds the parallel handler over dispatcher. dispatcher
// must already be constructed; parallel recurses back into it for each
// child action, so wire this handler into the registry after the dispatcher
// itself exists.
func NewParallelHandler(dispatcher *Dispatcher) Handler {
	return &parallelHandler{dispatcher: dispatcher}
}

func (h *parallelHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p parallelParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if len(p.Actions) == 0 {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "actions must be non-empty"}
	}

	results := make([]Result, len(p.Actions))
	tokenErrs := make([]*TokenAuthError, len(p.Actions))

	g, gctx := errgroup.WithContext(ctx)
	for i, child := range p.Actions {
		i, child := i, child
		g.Go(func() error {
			res, tokenErr := h.dispatcher.Execute(gctx, execCtx, child)
			results[i] = res
			tokenErrs[i] = tokenErr
			return nil
		})
	}
	_ = g.Wait() // child handlers never return an error here; failures live in results/tokenErrs

	for _, te := range tokenErrs {
		if te != nil {
			return Result{}, te
		}
	}

	var agg *multierror.Error
	allSucceeded := true
	outputs := make([]map[string]interface{}, len(results))
	for i, res := range results {
		outputs[i] = map[string]interface{}{
			"actionType": string(res.ActionType),
			"success":    res.Success,
			"output":     res.Output,
		}
		if !res.Success {
			allSucceeded = false
			agg = multierror.Append(agg, &ValidationError{ActionType: p.Actions[i].Type, Reason: res.Error})
		}
	}

	out := map[string]interface{}{"results": outputs}
	if allSucceeded {
		return success(cfg.Type, out, time.Now()), nil
	}
	return Result{
		Success:    false,
		ActionType: cfg.Type,
		Output:     out,
		Error:      agg.Error(),
		DurationMs: 0,
	}, nil
}
