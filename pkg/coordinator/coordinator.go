package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
	"github.com/codeready-toolchain/assistants-engine/pkg/llmconfig"
	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

// Config carries the Coordinator's tunables (§6 Configuration: "run
// timeout; mailbox depth").
type Config struct {
	AssistantKey   string
	AssistantAlias string
	MailboxDepth   int
	RunTimeout     time.Duration
}

// Coordinator is the Run Coordinator (C5) for one assistant. It fronts the
// Rule Executor with per-conversation serialization, rule set/context
// resolution, and state/context/run-log persistence.
type Coordinator struct {
	cfg         Config
	ruleSets    RuleSetResolver
	executor    *rules.Executor
	convStore   ConversationStore
	runLog      RunLog
	credentials CredentialRefresher
	resolveLLM  func(orgID string) llmconfig.ResolvedLLMConfig
	logger      *slog.Logger
	now         Clock

	mu        sync.Mutex
	mailboxes map[string]*mailbox
}

// New builds a Coordinator. resolveLLM resolves the per-org default LLM
// profile (C1) to seed ExecutionContext.LLMProfile; it may be nil, in
// which case the zero ResolvedLLMConfig is used.
func New(cfg Config, ruleSets RuleSetResolver, executor *rules.Executor, convStore ConversationStore, runLog RunLog, credentials CredentialRefresher, resolveLLM func(orgID string) llmconfig.ResolvedLLMConfig, logger *slog.Logger) *Coordinator {
	if cfg.MailboxDepth <= 0 {
		cfg.MailboxDepth = 256
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:         cfg,
		ruleSets:    ruleSets,
		executor:    executor,
		convStore:   convStore,
		runLog:      runLog,
		credentials: credentials,
		resolveLLM:  resolveLLM,
		logger:      logger.With("component", "coordinator", "assistant_key", cfg.AssistantKey),
		now:         time.Now,
		mailboxes:   make(map[string]*mailbox),
	}
}

// ProcessEvent is processEvent(event) -> RunResult (§4.5). It enqueues evt
// onto its conversation's mailbox, serializing it against every other
// event for the same conversationId, and blocks until the run completes or
// ctx is cancelled.
func (c *Coordinator) ProcessEvent(ctx context.Context, evt IngressEvent) (rules.RunResult, error) {
	mb := c.mailboxFor(evt.ConversationID)
	return mb.enqueue(ctx, evt)
}

// Evict stops and forgets a conversation's mailbox, e.g. once its state
// reaches StateArchived. Safe to call on a conversation with no mailbox.
func (c *Coordinator) Evict(conversationID string) {
	c.mu.Lock()
	mb, ok := c.mailboxes[conversationID]
	if ok {
		delete(c.mailboxes, conversationID)
	}
	c.mu.Unlock()
	if ok {
		mb.stop()
	}
}

// ActiveMailboxes reports how many conversations currently have a live
// mailbox, for health/occupancy reporting.
func (c *Coordinator) ActiveMailboxes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mailboxes)
}

func (c *Coordinator) mailboxFor(conversationID string) *mailbox {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mb, ok := c.mailboxes[conversationID]; ok {
		return mb
	}
	mb := newMailbox(c.cfg.MailboxDepth, c.processEvent, c.logger)
	c.mailboxes[conversationID] = mb
	return mb
}

// processEvent runs on the conversation's single mailbox consumer; it is
// the only place that ever reads-then-writes a conversation's state and
// context, so concurrent runs for distinct conversations never interleave
// with each other's persistence, and a single conversation's runs never
// interleave with themselves.
func (c *Coordinator) processEvent(ctx context.Context, evt IngressEvent) (rules.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.RunTimeout)
	defer cancel()

	ruleSet, err := c.ruleSets.Resolve(runCtx, c.cfg.AssistantKey, evt.OrgID)
	if err != nil {
		return rules.RunResult{}, fmt.Errorf("resolving rule set: %w", err)
	}
	if ruleSet == nil {
		c.logger.Warn("no active rule set for assistant/org", "org_id", evt.OrgID)
		return rules.RunResult{}, nil
	}

	record, err := c.convStore.Load(runCtx, evt.ConversationID)
	if err != nil {
		return rules.RunResult{}, fmt.Errorf("loading conversation record: %w", err)
	}
	if record == nil {
		record = &ConversationRecord{ConversationID: evt.ConversationID, State: execctx.StateIdle, Context: map[string]interface{}{}}
	}

	trigger := evt.Trigger
	if trigger == "" {
		trigger = execctx.TriggerMessageReceived
	}

	var llmProfile llmconfig.ResolvedLLMConfig
	if c.resolveLLM != nil {
		llmProfile = c.resolveLLM(evt.OrgID)
	}

	execCtx := &execctx.ExecutionContext{
		OrgID:             evt.OrgID,
		ConversationID:    evt.ConversationID,
		ConversationState: record.State,
		Trigger:           trigger,
		Event: execctx.Event{
			ID:        uuid.NewString(),
			Type:      trigger,
			Timestamp: c.now(),
		},
		Message:        &evt.Message,
		User:           evt.User,
		Context:        cloneContext(record.Context),
		Metadata:       map[string]interface{}{},
		LLMProfile:     llmProfile,
		AssistantKey:   c.cfg.AssistantKey,
		AssistantAlias: c.cfg.AssistantAlias,
	}

	runID := uuid.NewString()
	run, err := c.executeWithTokenRetry(runCtx, execCtx, runID, ruleSet, evt.OrgID)
	if err != nil {
		return rules.RunResult{}, err
	}

	if run.NewState != nil {
		if err := c.convStore.SaveState(runCtx, evt.ConversationID, *run.NewState); err != nil {
			c.logger.Error("persisting new conversation state failed", "error", err, "conversation_id", evt.ConversationID)
		}
	}

	if updates := collectContextUpdates(run); len(updates) > 0 {
		if err := c.convStore.MergeContext(runCtx, evt.ConversationID, updates); err != nil {
			c.logger.Error("merging context updates failed", "error", err, "conversation_id", evt.ConversationID)
		}
	}

	if err := c.runLog.Append(runCtx, run); err != nil {
		c.logger.Error("appending run log failed", "error", err, "run_id", runID)
	}

	return run, nil
}

// executeWithTokenRetry implements invariant 10: on a TokenAuthError
// during the first attempt, refresh credentials and re-drive the run
// exactly once; if the second attempt also raises TokenAuthError, it is
// surfaced to the caller.
func (c *Coordinator) executeWithTokenRetry(ctx context.Context, execCtx *execctx.ExecutionContext, runID string, ruleSet *rules.RuleSet, orgID string) (rules.RunResult, error) {
	run, err := c.executor.Execute(ctx, execCtx, runID, ruleSet)
	var tokenErr *action.TokenAuthError
	if !errors.As(err, &tokenErr) {
		return run, err
	}

	c.logger.Warn("token auth error on first attempt, refreshing credentials and retrying once",
		"run_id", runID, "org_id", orgID)

	if c.credentials == nil {
		return rules.RunResult{}, tokenErr
	}
	if refreshErr := c.credentials.Refresh(ctx, orgID); refreshErr != nil {
		return rules.RunResult{}, fmt.Errorf("refreshing credentials after token auth error: %w", refreshErr)
	}

	return c.executor.Execute(ctx, execCtx, runID, ruleSet)
}

// collectContextUpdates scans every executed context.update action across
// the run's matched rule and folds them into one last-writer-wins map
// (§4.5: "Extract context.update outputs across all executed actions and
// merge into the conversation context map").
func collectContextUpdates(run rules.RunResult) map[string]interface{} {
	merged := map[string]interface{}{}
	for _, ruleResult := range run.Results {
		for _, res := range ruleResult.ActionsExecuted {
			if res.ActionType != action.TypeContextUpdate || !res.Success {
				continue
			}
			set, ok := res.Output["set"].(map[string]interface{})
			if !ok {
				continue
			}
			for k, v := range set {
				merged[k] = v
			}
		}
	}
	return merged
}

func cloneContext(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
