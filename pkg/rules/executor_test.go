package rules

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/condition"
	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

func newExecCtx(trigger execctx.Trigger, content string) *execctx.ExecutionContext {
	return &execctx.ExecutionContext{
		OrgID:             "org-1",
		ConversationID:    "conv-1",
		ConversationState: execctx.StateIdle,
		Trigger:           trigger,
		Message:           &execctx.Message{ID: "m1", Content: content},
		Context:           map[string]interface{}{},
		Metadata:          map[string]interface{}{},
	}
}

func contentContainsRule(id string, priority int, substr, reply string) Rule {
	return Rule{
		ID:       id,
		Name:     id,
		Priority: priority,
		Enabled:  true,
		Trigger:  execctx.TriggerMessageReceived,
		Conditions: condition.ConditionGroup{
			Logic: condition.LogicAnd,
			Conditions: []condition.Entry{
				{Condition: &condition.Condition{Field: "message.content", Operator: condition.OpContains, Value: substr}},
			},
		},
		Actions: []action.Config{
			{Type: action.TypeMessageSend, Params: map[string]interface{}{"content": reply}},
		},
	}
}

func newTestExecutor(t *testing.T, handlers map[action.Type]action.Handler) *Executor {
	t.Helper()
	registry := action.NewRegistry(handlers)
	dispatcher := action.NewDispatcher(registry, slog.Default())
	return NewExecutor(dispatcher, slog.Default())
}

type recordingSender struct {
	sent []string
}

func (r *recordingSender) SendMessage(ctx context.Context, conversationID string, msg action.OutboundMessage) error {
	r.sent = append(r.sent, msg.Content)
	return nil
}

// S1 — Simple match.
func TestExecute_S1_SimpleMatch(t *testing.T) {
	sender := &recordingSender{}
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeMessageSend: action.NewMessageSendHandler(sender),
	})

	ruleSet := &RuleSet{
		AssistantKey: "support-bot",
		Rules:        []Rule{contentContainsRule("r1", 10, "help", "here is help")},
	}
	execCtx := newExecCtx(execctx.TriggerMessageReceived, "I need help")

	run, err := executor.Execute(context.Background(), execCtx, "run-1", ruleSet)

	require.NoError(t, err)
	assert.Equal(t, 1, run.RulesMatched)
	require.Len(t, run.Results, 1)
	assert.True(t, run.Results[0].Matched)
	require.Len(t, run.Results[0].ActionsExecuted, 1)
	assert.True(t, run.Results[0].ActionsExecuted[0].Success)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "here is help", sender.sent[0])
	assert.Nil(t, run.NewState)
}

// S2 — Priority wins.
func TestExecute_S2_PriorityWins(t *testing.T) {
	sender := &recordingSender{}
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeMessageSend: action.NewMessageSendHandler(sender),
	})

	ruleSet := &RuleSet{
		Rules: []Rule{
			contentContainsRule("low", 5, "help", "low priority reply"),
			contentContainsRule("high", 10, "help", "high priority reply"),
		},
	}
	execCtx := newExecCtx(execctx.TriggerMessageReceived, "help me")

	run, err := executor.Execute(context.Background(), execCtx, "run-2", ruleSet)

	require.NoError(t, err)
	assert.Equal(t, 1, run.RulesMatched)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "high priority reply", sender.sent[0])
}

// S3 — State transition.
func TestExecute_S3_StateTransition(t *testing.T) {
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeStateTransition: action.NewStateTransitionHandler(),
	})

	ruleSet := &RuleSet{
		Rules: []Rule{{
			ID: "r1", Name: "r1", Priority: 1, Enabled: true,
			Trigger:    execctx.TriggerMessageReceived,
			Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
			Actions: []action.Config{
				{Type: action.TypeStateTransition, Params: map[string]interface{}{"newState": "ai_active"}},
			},
		}},
	}
	execCtx := newExecCtx(execctx.TriggerMessageReceived, "hi")

	run, err := executor.Execute(context.Background(), execCtx, "run-3", ruleSet)

	require.NoError(t, err)
	require.NotNil(t, run.NewState)
	assert.Equal(t, execctx.StateAIActive, *run.NewState)
	assert.Equal(t, execctx.StateAIActive, execCtx.ConversationState)
}

// S4 — Illegal transition.
func TestExecute_S4_IllegalTransition(t *testing.T) {
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeStateTransition: action.NewStateTransitionHandler(),
	})

	ruleSet := &RuleSet{
		Rules: []Rule{{
			ID: "r1", Name: "r1", Priority: 1, Enabled: true,
			Trigger:    execctx.TriggerMessageReceived,
			Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
			Actions: []action.Config{
				{Type: action.TypeStateTransition, Params: map[string]interface{}{"newState": "agent_active"}},
			},
		}},
	}
	execCtx := newExecCtx(execctx.TriggerMessageReceived, "hi")
	execCtx.ConversationState = execctx.StateIdle

	run, err := executor.Execute(context.Background(), execCtx, "run-4", ruleSet)

	require.NoError(t, err)
	assert.Nil(t, run.NewState)
	assert.Equal(t, execctx.StateIdle, execCtx.ConversationState)
	require.Len(t, run.Results[0].ActionsExecuted, 1)
	assert.False(t, run.Results[0].ActionsExecuted[0].Success)
}

// S6 — Loop with continue-on-error.
func TestExecute_S6_LoopContinueOnError(t *testing.T) {
	registry := action.NewRegistry(nil)
	dispatcher := action.NewDispatcher(registry, slog.Default())
	failOnB := action.HandlerFunc(func(ctx context.Context, execCtx *execctx.ExecutionContext, cfg action.Config) (action.Result, error) {
		item, _ := execCtx.Context["item"].(string)
		if item == "b" {
			return action.Result{}, &action.ValidationError{ActionType: cfg.Type, Reason: "item b always fails"}
		}
		return action.Result{Success: true, ActionType: cfg.Type}, nil
	})
	registry.Register("probe.step", failOnB)
	registry.Register(action.TypeLoop, action.NewLoopHandler(dispatcher))

	executor := NewExecutor(dispatcher, slog.Default())
	ruleSet := &RuleSet{
		Rules: []Rule{{
			ID: "r1", Name: "r1", Priority: 1, Enabled: true,
			Trigger:    execctx.TriggerMessageReceived,
			Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
			Actions: []action.Config{
				{Type: action.TypeLoop, Params: map[string]interface{}{
					"items":           []interface{}{"a", "b", "c"},
					"as":              "item",
					"continueOnError": true,
					"actions":         []interface{}{map[string]interface{}{"type": "probe.step"}},
				}},
			},
		}},
	}
	execCtx := newExecCtx(execctx.TriggerMessageReceived, "go")

	run, err := executor.Execute(context.Background(), execCtx, "run-6", ruleSet)

	require.NoError(t, err)
	require.Len(t, run.Results[0].ActionsExecuted, 1)
	loopResult := run.Results[0].ActionsExecuted[0]
	assert.True(t, loopResult.Success)
	assert.Equal(t, 3, loopResult.Output["iterations"])
}

// Invariant 1: first-match-wins — rulesMatched is always 0 or 1.
func TestExecute_Invariant1_RulesMatchedIsZeroOrOne(t *testing.T) {
	sender := &recordingSender{}
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeMessageSend: action.NewMessageSendHandler(sender),
	})

	ruleSet := &RuleSet{
		Rules: []Rule{
			contentContainsRule("r1", 1, "help", "reply 1"),
			contentContainsRule("r2", 2, "help", "reply 2"),
			contentContainsRule("r3", 3, "help", "reply 3"),
		},
	}
	execCtx := newExecCtx(execctx.TriggerMessageReceived, "help help help")

	run, err := executor.Execute(context.Background(), execCtx, "run-inv1", ruleSet)

	require.NoError(t, err)
	assert.Contains(t, []int{0, 1}, run.RulesMatched)
	assert.Equal(t, 1, run.RulesMatched)
	assert.Len(t, sender.sent, 1)
}

// Invariant 2: priority ordering with a stable tie-break on declaration order.
func TestExecute_Invariant2_StableTieBreak(t *testing.T) {
	sender := &recordingSender{}
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeMessageSend: action.NewMessageSendHandler(sender),
	})

	ruleSet := &RuleSet{
		Rules: []Rule{
			contentContainsRule("first", 5, "help", "first declared"),
			contentContainsRule("second", 5, "help", "second declared"),
		},
	}
	execCtx := newExecCtx(execctx.TriggerMessageReceived, "help")

	run, err := executor.Execute(context.Background(), execCtx, "run-inv2", ruleSet)

	require.NoError(t, err)
	assert.Equal(t, "first", run.Results[0].RuleID)
	assert.Equal(t, "first declared", sender.sent[0])
}

// Invariant 6: state-machine safety — already covered directly by S3/S4 but
// re-asserted here against an explicit terminal-state starting point.
func TestExecute_Invariant6_TerminalStateRejectsEveryTransition(t *testing.T) {
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeStateTransition: action.NewStateTransitionHandler(),
	})
	for _, target := range []string{"idle", "ai_active", "waiting_for_user", "handoff_pending", "agent_active", "resolved"} {
		ruleSet := &RuleSet{
			Rules: []Rule{{
				ID: "r1", Name: "r1", Priority: 1, Enabled: true,
				Trigger:    execctx.TriggerMessageReceived,
				Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
				Actions: []action.Config{
					{Type: action.TypeStateTransition, Params: map[string]interface{}{"newState": target}},
				},
			}},
		}
		execCtx := newExecCtx(execctx.TriggerMessageReceived, "hi")
		execCtx.ConversationState = execctx.StateArchived // terminal, no outbound transitions

		run, err := executor.Execute(context.Background(), execCtx, "run-term", ruleSet)
		require.NoError(t, err)
		assert.Nil(t, run.NewState)
		assert.Equal(t, execctx.StateArchived, execCtx.ConversationState)
	}
}

// Invariant 7: loop safety — processes at most maxIterations items.
func TestExecute_Invariant7_LoopRespectsMaxIterations(t *testing.T) {
	registry := action.NewRegistry(nil)
	dispatcher := action.NewDispatcher(registry, slog.Default())
	counter := 0
	registry.Register("probe.count", action.HandlerFunc(func(ctx context.Context, execCtx *execctx.ExecutionContext, cfg action.Config) (action.Result, error) {
		counter++
		return action.Result{Success: true, ActionType: cfg.Type}, nil
	}))
	registry.Register(action.TypeLoop, action.NewLoopHandler(dispatcher))

	items := make([]interface{}, 250)
	for i := range items {
		items[i] = i
	}
	cfg := action.Config{Type: action.TypeLoop, Params: map[string]interface{}{
		"items":         items,
		"as":            "item",
		"maxIterations": 500, // above the hard ceiling of 100
		"actions":       []interface{}{map[string]interface{}{"type": "probe.count"}},
	}}

	res, err := dispatcher.Execute(context.Background(), newExecCtx(execctx.TriggerMessageReceived, ""), cfg)
	require.Nil(t, err)
	assert.True(t, res.Success)
	assert.LessOrEqual(t, counter, 100)
	assert.Equal(t, counter, res.Output["iterations"])
}

// TokenAuthError raised by an action escapes Execute unabsorbed (invariant 10
// at the rule-executor boundary).
func TestExecute_TokenAuthErrorPropagatesUnabsorbed(t *testing.T) {
	registry := action.NewRegistry(nil)
	registry.Register("probe.tokenfail", action.HandlerFunc(func(ctx context.Context, execCtx *execctx.ExecutionContext, cfg action.Config) (action.Result, error) {
		return action.Result{}, &action.TokenAuthError{ActionType: cfg.Type, Cause: errors.New("expired")}
	}))
	dispatcher := action.NewDispatcher(registry, slog.Default())
	executor := NewExecutor(dispatcher, slog.Default())

	ruleSet := &RuleSet{
		Rules: []Rule{{
			ID: "r1", Name: "r1", Priority: 1, Enabled: true,
			Trigger:    execctx.TriggerMessageReceived,
			Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
			Actions:    []action.Config{{Type: "probe.tokenfail"}},
		}},
	}
	execCtx := newExecCtx(execctx.TriggerMessageReceived, "hi")

	_, err := executor.Execute(context.Background(), execCtx, "run-token", ruleSet)

	var te *action.TokenAuthError
	require.ErrorAs(t, err, &te)
}

func TestExecute_DisabledRuleNeverEvaluated(t *testing.T) {
	sender := &recordingSender{}
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeMessageSend: action.NewMessageSendHandler(sender),
	})
	rule := contentContainsRule("r1", 10, "help", "should not fire")
	rule.Enabled = false

	run, err := executor.Execute(context.Background(), newExecCtx(execctx.TriggerMessageReceived, "help"), "run-disabled", &RuleSet{Rules: []Rule{rule}})

	require.NoError(t, err)
	assert.Equal(t, 0, run.RulesMatched)
	assert.Empty(t, sender.sent)
	assert.Equal(t, 0, run.RulesEvaluated)
}

func TestExecute_TriggerMismatchNeverEvaluated(t *testing.T) {
	executor := newTestExecutor(t, nil)
	rule := contentContainsRule("r1", 10, "help", "should not fire")
	rule.Trigger = execctx.TriggerTimerElapsed

	run, err := executor.Execute(context.Background(), newExecCtx(execctx.TriggerMessageReceived, "help"), "run-mismatch", &RuleSet{Rules: []Rule{rule}})

	require.NoError(t, err)
	assert.Equal(t, 0, run.RulesEvaluated)
}

// Property-based: random condition trees over random rule sets never panic
// and always yield rulesMatched in {0,1} (invariants 1 and 5 combined at the
// rule-executor boundary).
func TestExecute_PropertyTotality(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	executor := newTestExecutor(t, map[action.Type]action.Handler{
		action.TypeMessageSend: action.NewMessageSendHandler(&recordingSender{}),
	})

	operators := []condition.Operator{condition.OpEq, condition.OpNeq, condition.OpContains, condition.OpExists, condition.OpGt}
	fields := []string{"message.content", "context.tier", "user.id", "does.not.exist"}

	randomGroup := func(depth int) condition.ConditionGroup {
		var build func(d int) condition.Entry
		build = func(d int) condition.Entry {
			if d <= 0 || rng.IntN(3) == 0 {
				return condition.Entry{Condition: &condition.Condition{
					Field:    fields[rng.IntN(len(fields))],
					Operator: operators[rng.IntN(len(operators))],
					Value:    rng.IntN(10),
				}}
			}
			n := 1 + rng.IntN(3)
			entries := make([]condition.Entry, n)
			for i := range entries {
				entries[i] = build(d - 1)
			}
			logic := condition.LogicAnd
			if rng.IntN(2) == 0 {
				logic = condition.LogicOr
			}
			return condition.Entry{Group: &condition.ConditionGroup{Logic: logic, Conditions: entries}}
		}
		root := build(depth)
		if root.Group != nil {
			return *root.Group
		}
		return condition.ConditionGroup{Logic: condition.LogicAnd, Conditions: []condition.Entry{root}}
	}

	for i := 0; i < 500; i++ {
		numRules := 1 + rng.IntN(5)
		rules := make([]Rule, numRules)
		for j := range rules {
			rules[j] = Rule{
				ID:         "r" + string(rune('a'+j)),
				Name:       "r" + string(rune('a'+j)),
				Priority:   rng.IntN(20),
				Enabled:    true,
				Trigger:    execctx.TriggerMessageReceived,
				Conditions: randomGroup(5),
				Actions:    []action.Config{{Type: action.TypeMessageSend, Params: map[string]interface{}{"content": "x"}}},
			}
		}
		ruleSet := &RuleSet{Rules: rules}
		execCtx := newExecCtx(execctx.TriggerMessageReceived, "help me please")
		execCtx.Context["tier"] = "gold"

		require.NotPanics(t, func() {
			run, err := executor.Execute(context.Background(), execCtx, "run-prop", ruleSet)
			require.NoError(t, err)
			assert.Contains(t, []int{0, 1}, run.RulesMatched)
		})
	}
}
