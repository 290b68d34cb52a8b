package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/condition"
	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// Executor is the Rule Executor (C4): it walks one rule set in
// priority-descending order, evaluating conditions via pkg/condition and
// dispatching the first matching rule's actions via pkg/action.
type Executor struct {
	dispatcher *action.Dispatcher
	logger     *slog.Logger
}

// NewExecutor builds an Executor over dispatcher.
func NewExecutor(dispatcher *action.Dispatcher, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{dispatcher: dispatcher, logger: logger}
}

// Execute runs ruleSet against execCtx (§4.4). It returns a non-nil error
// only for a *action.TokenAuthError raised by an action — that is re-thrown
// past the rule engine, unabsorbed, so the Run Coordinator can refresh
// credentials and retry the run exactly once. Every other action or
// evaluation failure is recorded on the matched rule's RuleExecutionResult;
// Execute itself still returns a RunResult, not an error, for those.
func (e *Executor) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, runID string, ruleSet *RuleSet) (RunResult, error) {
	start := time.Now()
	startState := execCtx.ConversationState

	applicable := filterApplicable(ruleSet, execCtx.Trigger)
	sortByPriorityDescending(applicable)

	run := RunResult{
		RunID:          runID,
		OrgID:          execCtx.OrgID,
		ConversationID: execCtx.ConversationID,
		Trigger:        execCtx.Trigger,
		Results:        make([]RuleExecutionResult, 0, len(applicable)),
	}

	for _, rule := range applicable {
		run.RulesEvaluated++

		result, tokenErr := e.runRule(ctx, execCtx, rule)
		if tokenErr != nil {
			e.logger.Warn("token auth error propagating past rule executor",
				"rule_id", rule.ID, "conversation_id", execCtx.ConversationID)
			return RunResult{}, tokenErr
		}

		run.Results = append(run.Results, result)

		if result.Matched {
			run.RulesMatched = 1
			break // first-match-wins
		}
	}

	if execCtx.ConversationState != startState {
		newState := execCtx.ConversationState
		run.NewState = &newState
	}

	run.DurationMs = time.Since(start).Milliseconds()
	run.Timestamp = start
	return run, nil
}

// runRule evaluates one rule's conditions and, if they match, executes its
// actions sequentially, stopping at the first action failure (prior
// successes are preserved). A panic anywhere in this function — evaluation
// or dispatch — is recovered and reported as the rule's error, matched=false,
// conditionsEvaluated=false, matching the "every other exception is caught"
// contract; a *action.TokenAuthError is the one error this function never
// absorbs, returned via the second return value instead.
func (e *Executor) runRule(ctx context.Context, execCtx *execctx.ExecutionContext, rule Rule) (result RuleExecutionResult, tokenErr *action.TokenAuthError) {
	start := time.Now()
	result.RuleID = rule.ID
	result.RuleName = rule.Name

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule execution panicked", "rule_id", rule.ID, "panic", r)
			result = RuleExecutionResult{
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				Matched:    false,
				Error:      fmt.Sprintf("panic: %v", r),
				DurationMs: time.Since(start).Milliseconds(),
			}
			tokenErr = nil
		}
	}()

	matched := condition.Evaluate(&rule.Conditions, execCtx.ToMap())
	result.ConditionsEvaluated = true
	result.Matched = matched
	if !matched {
		result.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	executed := make([]action.Result, 0, len(rule.Actions))
	for _, cfg := range rule.Actions {
		res, te := e.dispatcher.Execute(ctx, execCtx, cfg)
		if te != nil {
			return RuleExecutionResult{}, te
		}
		executed = append(executed, res)
		if !res.Success {
			break // stop after first failure; prior successes preserved
		}
	}
	result.ActionsExecuted = executed
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// filterApplicable returns rules that are enabled and match trigger,
// preserving original order (sortByPriorityDescending breaks priority ties
// by this original order, per invariant: "ties broken by original rule
// order").
func filterApplicable(ruleSet *RuleSet, trigger execctx.Trigger) []Rule {
	if ruleSet == nil {
		return nil
	}
	out := make([]Rule, 0, len(ruleSet.Rules))
	for _, r := range ruleSet.Rules {
		if r.Enabled && r.Trigger == trigger {
			out = append(out, r)
		}
	}
	return out
}

// sortByPriorityDescending stable-sorts rules by Priority descending; the
// stability of sort.SliceStable preserves original-order ties.
func sortByPriorityDescending(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
}
