// Package rules implements the Rule Executor (C4): given a rule set and an
// execution context, it selects the first matching rule in priority order
// and runs its actions through the Action Dispatcher.
package rules

import (
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/condition"
	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// Rule is one entry in a RuleSet. Rule ids are unique within a rule set; a
// disabled rule is never evaluated.
type Rule struct {
	ID         string                   `json:"id" yaml:"id"`
	Name       string                   `json:"name" yaml:"name"`
	Priority   int                      `json:"priority" yaml:"priority"` // higher wins
	Enabled    bool                     `json:"enabled" yaml:"enabled"`
	Trigger    execctx.Trigger          `json:"trigger" yaml:"trigger"`
	Conditions condition.ConditionGroup `json:"conditions" yaml:"conditions"`
	Actions    []action.Config          `json:"actions" yaml:"actions"`
}

// RuleSet is a versioned collection of rules owned by one assistant, keyed
// "<assistant-key>:<org-id>" with a "<assistant-key>:default" fallback.
// A rule set edit produces a new Version; older versions are not retained
// by this package (the persistence layer may keep history for audit).
type RuleSet struct {
	AssistantKey string `json:"assistantKey" yaml:"assistantKey"`
	OrgID        string `json:"orgId" yaml:"orgId"` // empty for the ":default" fallback set
	Version      int    `json:"version" yaml:"version"`
	Rules        []Rule `json:"rules" yaml:"rules"`
}

// RuleExecutionResult is the per-rule outcome recorded in a RunResult.
type RuleExecutionResult struct {
	RuleID              string          `json:"ruleId"`
	RuleName            string          `json:"ruleName"`
	Matched             bool            `json:"matched"`
	ConditionsEvaluated bool            `json:"conditionsEvaluated"`
	ActionsExecuted     []action.Result `json:"actionsExecuted,omitempty"`
	Error               string          `json:"error,omitempty"`
	DurationMs          int64           `json:"durationMs"`
}

// RunResult is the append-only record of one Rule Executor invocation.
type RunResult struct {
	RunID          string                           `json:"runId"`
	OrgID          string                            `json:"orgId"`
	ConversationID string                            `json:"conversationId"`
	Trigger        execctx.Trigger                   `json:"trigger"`
	RulesEvaluated int                               `json:"rulesEvaluated"`
	RulesMatched   int                               `json:"rulesMatched"`
	Results        []RuleExecutionResult             `json:"results"`
	NewState       *execctx.ConversationState        `json:"newState,omitempty"`
	DurationMs     int64                             `json:"durationMs"`
	Timestamp      time.Time                         `json:"timestamp"`
}
