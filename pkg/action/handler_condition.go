package action

import (
	"context"
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/condition"
	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// conditionParams decodes condition's params: an inline condition tree plus
// the action lists to run for each branch. The condition tree is parsed via
// a JSON round trip rather than mapstructure, because ConditionGroup's
// Entry elements are a hand-rolled tagged union with their own
// UnmarshalJSON — mapstructure's reflection-based decode doesn't know about
// it.
type conditionParams struct {
	Then []Config `mapstructure:"then"`
	Else []Config `mapstructure:"else"`
}

func decodeConditionGroup(raw interface{}) (condition.ConditionGroup, error) {
	var group condition.ConditionGroup
	if raw == nil {
		return group, nil
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return group, err
	}
	if err := json.Unmarshal(buf, &group); err != nil {
		return group, err
	}
	return group, nil
}

// conditionHandler implements condition (§4.3): evaluates an inline
// condition tree against the current execution context and runs the
// matching branch's actions in order, stopping at the first failure —
// the same first-failure-stops semantics as the outer rule's action
// sequence.
type conditionHandler struct {
	dispatcher *Dispatcher
}

// NewConditionHandler builds the condition handler over dispatcher.
func NewConditionHandler(dispatcher *Dispatcher) Handler {
	return &conditionHandler{dispatcher: dispatcher}
}

func (h *conditionHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p conditionParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	ifGroup, err := decodeConditionGroup(cfg.Params["if"])
	if err != nil {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "invalid if condition: " + err.Error()}
	}

	matched := condition.Evaluate(&ifGroup, execCtx.ToMap())
	branch := p.Else
	branchName := "else"
	if matched {
		branch = p.Then
		branchName = "then"
	}

	outputs := make([]map[string]interface{}, 0, len(branch))
	for _, child := range branch {
		res, tokenErr := h.dispatcher.Execute(ctx, execCtx, child)
		if tokenErr != nil {
			return Result{}, tokenErr
		}
		outputs = append(outputs, map[string]interface{}{
			"actionType": string(res.ActionType),
			"success":    res.Success,
			"output":     res.Output,
		})
		if !res.Success {
			return Result{
				Success:    false,
				ActionType: cfg.Type,
				Output:     map[string]interface{}{"matched": matched, "branch": branchName, "results": outputs},
				Error:      res.Error,
			}, nil
		}
	}

	return success(cfg.Type, map[string]interface{}{
		"matched": matched,
		"branch":  branchName,
		"results": outputs,
	}, time.Now()), nil
}
