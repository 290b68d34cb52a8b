package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/condition"
	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

type fakeRuleSets struct {
	set *rules.RuleSet
}

func (f *fakeRuleSets) Resolve(ctx context.Context, assistantKey, orgID string) (*rules.RuleSet, error) {
	return f.set, nil
}

type fakeConvStore struct {
	mu      sync.Mutex
	records map[string]*ConversationRecord
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{records: map[string]*ConversationRecord{}}
}

func (f *fakeConvStore) Load(ctx context.Context, conversationID string) (*ConversationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.records[conversationID]; ok {
		clone := *r
		clone.Context = cloneContext(r.Context)
		return &clone, nil
	}
	return &ConversationRecord{ConversationID: conversationID, State: execctx.StateIdle, Context: map[string]interface{}{}}, nil
}

func (f *fakeConvStore) SaveState(ctx context.Context, conversationID string, state execctx.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.getOrInit(conversationID)
	r.State = state
	return nil
}

func (f *fakeConvStore) MergeContext(ctx context.Context, conversationID string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.getOrInit(conversationID)
	for k, v := range updates {
		r.Context[k] = v
	}
	return nil
}

func (f *fakeConvStore) getOrInit(conversationID string) *ConversationRecord {
	r, ok := f.records[conversationID]
	if !ok {
		r = &ConversationRecord{ConversationID: conversationID, State: execctx.StateIdle, Context: map[string]interface{}{}}
		f.records[conversationID] = r
	}
	return r
}

type fakeRunLog struct {
	mu      sync.Mutex
	entries []rules.RunResult
}

func (f *fakeRunLog) Append(ctx context.Context, result rules.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, result)
	return nil
}

type fakeCredentials struct {
	refreshCalls int
}

func (f *fakeCredentials) Refresh(ctx context.Context, orgID string) error {
	f.refreshCalls++
	return nil
}

func stateTransitionRule(id string, to string) rules.Rule {
	return rules.Rule{
		ID: id, Name: id, Priority: 1, Enabled: true,
		Trigger:    execctx.TriggerMessageReceived,
		Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
		Actions: []action.Config{
			{Type: action.TypeStateTransition, Params: map[string]interface{}{"newState": to}},
		},
	}
}

func newTestCoordinator(t *testing.T, ruleSet *rules.RuleSet, handlers map[action.Type]action.Handler, convStore ConversationStore, runLog RunLog, creds CredentialRefresher) *Coordinator {
	t.Helper()
	registry := action.NewRegistry(handlers)
	dispatcher := action.NewDispatcher(registry, slog.Default())
	executor := rules.NewExecutor(dispatcher, slog.Default())
	return New(Config{AssistantKey: "support-bot", MailboxDepth: 4, RunTimeout: time.Second}, &fakeRuleSets{set: ruleSet}, executor, convStore, runLog, creds, nil, slog.Default())
}

func TestCoordinator_PersistsNewStateAndRunLog(t *testing.T) {
	convStore := newFakeConvStore()
	runLog := &fakeRunLog{}
	ruleSet := &rules.RuleSet{Rules: []rules.Rule{stateTransitionRule("r1", "ai_active")}}
	coord := newTestCoordinator(t, ruleSet, map[action.Type]action.Handler{
		action.TypeStateTransition: action.NewStateTransitionHandler(),
	}, convStore, runLog, nil)

	evt := IngressEvent{ConversationID: "conv-1", Message: execctx.Message{ID: "m1", Content: "hi"}}
	run, err := coord.ProcessEvent(context.Background(), evt)

	require.NoError(t, err)
	require.NotNil(t, run.NewState)
	assert.Equal(t, execctx.StateAIActive, *run.NewState)

	rec, _ := convStore.Load(context.Background(), "conv-1")
	assert.Equal(t, execctx.StateAIActive, rec.State)
	assert.Len(t, runLog.entries, 1)
}

func TestCoordinator_MergesContextUpdateAcrossRuns(t *testing.T) {
	convStore := newFakeConvStore()
	runLog := &fakeRunLog{}
	ruleSet := &rules.RuleSet{Rules: []rules.Rule{{
		ID: "r1", Name: "r1", Priority: 1, Enabled: true,
		Trigger:    execctx.TriggerMessageReceived,
		Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
		Actions: []action.Config{
			{Type: action.TypeContextUpdate, Params: map[string]interface{}{"set": map[string]interface{}{"tier": "gold"}}},
		},
	}}}
	coord := newTestCoordinator(t, ruleSet, map[action.Type]action.Handler{
		action.TypeContextUpdate: action.NewContextUpdateHandler(),
	}, convStore, runLog, nil)

	_, err := coord.ProcessEvent(context.Background(), IngressEvent{ConversationID: "conv-2", Message: execctx.Message{ID: "m1", Content: "hi"}})
	require.NoError(t, err)

	rec, _ := convStore.Load(context.Background(), "conv-2")
	assert.Equal(t, "gold", rec.Context["tier"])
}

// Two events for the SAME conversation never interleave their state writes
// (invariant 9): drive many concurrent ProcessEvent calls for one
// conversation, each matching the same rule that transitions to ai_active
// (idle->ai_active first, ai_active->ai_active after), and assert every call
// succeeds, the final persisted state is ai_active and every run is logged,
// i.e. no lost updates.
func TestCoordinator_SerializesPerConversation(t *testing.T) {
	convStore := newFakeConvStore()
	runLog := &fakeRunLog{}
	ruleSet := &rules.RuleSet{Rules: []rules.Rule{stateTransitionRule("r1", "ai_active")}}
	coord := newTestCoordinator(t, ruleSet, map[action.Type]action.Handler{
		action.TypeStateTransition: action.NewStateTransitionHandler(),
	}, convStore, runLog, nil)

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := coord.ProcessEvent(context.Background(), IngressEvent{ConversationID: "conv-shared", Message: execctx.Message{ID: "m", Content: "hi"}})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	rec, _ := convStore.Load(context.Background(), "conv-shared")
	assert.Equal(t, execctx.StateAIActive, rec.State)
	assert.Len(t, runLog.entries, n)
}

func TestCoordinator_OverloadedMailboxReturnsError(t *testing.T) {
	convStore := newFakeConvStore()
	runLog := &fakeRunLog{}

	block := make(chan struct{})
	registry := action.NewRegistry(map[action.Type]action.Handler{
		"probe.block": action.HandlerFunc(func(ctx context.Context, execCtx *execctx.ExecutionContext, cfg action.Config) (action.Result, error) {
			<-block
			return action.Result{Success: true, ActionType: cfg.Type}, nil
		}),
	})
	dispatcher := action.NewDispatcher(registry, slog.Default())
	executor := rules.NewExecutor(dispatcher, slog.Default())
	ruleSet := &rules.RuleSet{Rules: []rules.Rule{{
		ID: "r1", Name: "r1", Priority: 1, Enabled: true,
		Trigger:    execctx.TriggerMessageReceived,
		Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
		Actions:    []action.Config{{Type: "probe.block"}},
	}}}
	coord := New(Config{AssistantKey: "support-bot", MailboxDepth: 1, RunTimeout: 10 * time.Second}, &fakeRuleSets{set: ruleSet}, executor, convStore, runLog, nil, nil, slog.Default())

	// First call occupies the mailbox's single consumer.
	go func() { _, _ = coord.ProcessEvent(context.Background(), IngressEvent{ConversationID: "conv-3", Message: execctx.Message{ID: "m1"}}) }()
	time.Sleep(20 * time.Millisecond)

	// Second and third fill (and overflow) the depth-1 queue behind it.
	_, err2 := coord.ProcessEvent(context.Background(), IngressEvent{ConversationID: "conv-3", Message: execctx.Message{ID: "m2"}})
	require.NoError(t, err2)
	_, err3 := coord.ProcessEvent(context.Background(), IngressEvent{ConversationID: "conv-3", Message: execctx.Message{ID: "m3"}})
	assert.ErrorIs(t, err3, ErrOverloaded)

	close(block)
}

func TestCoordinator_TokenAuthErrorRetriesExactlyOnceThenSurfaces(t *testing.T) {
	convStore := newFakeConvStore()
	runLog := &fakeRunLog{}
	creds := &fakeCredentials{}

	attempts := 0
	registry := action.NewRegistry(map[action.Type]action.Handler{
		"probe.tokenfail": action.HandlerFunc(func(ctx context.Context, execCtx *execctx.ExecutionContext, cfg action.Config) (action.Result, error) {
			attempts++
			return action.Result{}, &action.TokenAuthError{ActionType: cfg.Type, Cause: assertError("expired")}
		}),
	})
	dispatcher := action.NewDispatcher(registry, slog.Default())
	executor := rules.NewExecutor(dispatcher, slog.Default())
	ruleSet := &rules.RuleSet{Rules: []rules.Rule{{
		ID: "r1", Name: "r1", Priority: 1, Enabled: true,
		Trigger:    execctx.TriggerMessageReceived,
		Conditions: condition.ConditionGroup{Logic: condition.LogicAnd},
		Actions:    []action.Config{{Type: "probe.tokenfail"}},
	}}}
	coord := New(Config{AssistantKey: "support-bot", MailboxDepth: 4, RunTimeout: time.Second}, &fakeRuleSets{set: ruleSet}, executor, convStore, runLog, creds, nil, slog.Default())

	_, err := coord.ProcessEvent(context.Background(), IngressEvent{ConversationID: "conv-4", Message: execctx.Message{ID: "m1"}})

	var tokenErr *action.TokenAuthError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, 1, creds.refreshCalls)
	assert.Equal(t, 2, attempts)
}

func TestCoordinator_NoRuleSetReturnsEmptyRunResult(t *testing.T) {
	convStore := newFakeConvStore()
	runLog := &fakeRunLog{}
	coord := newTestCoordinator(t, nil, nil, convStore, runLog, nil)

	run, err := coord.ProcessEvent(context.Background(), IngressEvent{ConversationID: "conv-5", Message: execctx.Message{ID: "m1"}})

	require.NoError(t, err)
	assert.Equal(t, rules.RunResult{}, run)
	assert.Empty(t, runLog.entries)
}

type assertError string

func (e assertError) Error() string { return string(e) }
