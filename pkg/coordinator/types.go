// Package coordinator implements the Run Coordinator (C5): the ingress
// point for incoming events. It resolves a rule set, loads conversation
// state and context, builds an ExecutionContext, invokes the Rule
// Executor, and persists the resulting state/context/run record — all
// serialized per conversationId.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

// ErrOverloaded is returned when a conversation's mailbox is at capacity
// (§5 Backpressure: default depth 256). Callers should surface this to the
// event bus, which retries after backoff.
var ErrOverloaded = errors.New("coordinator: conversation mailbox overloaded")

// AssistantRef identifies one assistant participant carried on an ingress
// event's optional assistants list.
type AssistantRef struct {
	UserID   string `json:"userId"`
	Key      string `json:"key"`
	EntityID string `json:"entityId,omitempty"`
}

// AuthEnvelope carries the caller's bearer token, present on some ingress
// events per §6.
type AuthEnvelope struct {
	Token string `json:"token"`
}

// IngressEvent is the inbound message.new event (§6 Ingress event). A
// Coordinator is scoped to one assistant; AssistantKey/AssistantAlias are
// supplied at construction time, not per event, mirroring "an incoming
// message fans out as an event to each assistant's Run Coordinator."
type IngressEvent struct {
	ConversationID     string              `json:"conversationId"`
	Message            execctx.Message     `json:"message"`
	SenderEntityID     string              `json:"senderEntityId,omitempty"`
	RecipientEntityIDs []string            `json:"recipientEntityIds,omitempty"`
	Assistants         []AssistantRef      `json:"assistants,omitempty"`
	OrgID              string              `json:"orgId,omitempty"`
	Auth               *AuthEnvelope       `json:"_auth,omitempty"`
	Trigger            execctx.Trigger     `json:"-"`
	User               *execctx.User       `json:"-"`
}

// ConversationRecord is the persisted (conversationState, contextMap) pair
// for one conversation. A conversation with no record defaults to
// StateIdle with an empty context (§4.5: "Load conversation state (default
// idle) and context map").
type ConversationRecord struct {
	ConversationID string
	State          execctx.ConversationState
	Context        map[string]interface{}
	Version        int
}

// ConversationStore is C5's persistence boundary for conversation state
// and context. It is the sole writer per conversationId; the Coordinator's
// per-conversation mailbox is what makes that safe under concurrent
// events for different conversations.
type ConversationStore interface {
	Load(ctx context.Context, conversationID string) (*ConversationRecord, error)
	SaveState(ctx context.Context, conversationID string, state execctx.ConversationState) error
	MergeContext(ctx context.Context, conversationID string, updates map[string]interface{}) error
}

// RunLog is the append-only journal of processed runs (one row per
// processed event, §3 persistence mapping).
type RunLog interface {
	Append(ctx context.Context, result rules.RunResult) error
}

// RuleSetResolver is the subset of rules.Store the Coordinator depends on.
// *rules.Store satisfies this directly.
type RuleSetResolver interface {
	Resolve(ctx context.Context, assistantKey, orgID string) (*rules.RuleSet, error)
}

// CredentialRefresher refreshes the agent credential used for an org's
// outbound calls, invoked exactly once after a TokenAuthError (invariant
// 10) before the coordinator re-drives the same run.
type CredentialRefresher interface {
	Refresh(ctx context.Context, orgID string) error
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time
