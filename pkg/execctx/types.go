// Package execctx defines the ExecutionContext that flows through a single
// rule-engine run: the Condition Evaluator reads it, the Rule Executor
// assembles and partially mutates it, and Action handlers read and augment
// it. It exists for the duration of one run only (§3 Lifecycle).
package execctx

import (
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/llmconfig"
)

// Trigger identifies why a run was started.
type Trigger string

// Supported triggers.
const (
	TriggerMessageReceived    Trigger = "message.received"
	TriggerConversationCreate Trigger = "conversation.created"
	TriggerConversationUpdate Trigger = "conversation.updated"
	TriggerHandoffRequested   Trigger = "handoff.requested"
	TriggerHandoffCompleted   Trigger = "handoff.completed"
	TriggerContextUpdated     Trigger = "context.updated"
	TriggerTimerElapsed       Trigger = "timer.elapsed"
	TriggerCustom             Trigger = "custom"
)

// ConversationState is one of the states in the conversation state machine.
type ConversationState string

// Supported conversation states.
const (
	StateIdle            ConversationState = "idle"
	StateAIActive        ConversationState = "ai_active"
	StateWaitingForUser   ConversationState = "waiting_for_user"
	StateHandoffPending   ConversationState = "handoff_pending"
	StateAgentActive      ConversationState = "agent_active"
	StateResolved         ConversationState = "resolved"
	StateArchived         ConversationState = "archived"
)

// legalTransitions encodes the state machine diagram in spec.md §4.6. The
// transition to archived is listed explicitly for every state except
// archived itself, including resolved.
var legalTransitions = map[ConversationState]map[ConversationState]bool{
	StateIdle:          {StateAIActive: true, StateWaitingForUser: true, StateArchived: true},
	StateAIActive:      {StateAIActive: true, StateHandoffPending: true, StateArchived: true},
	StateWaitingForUser: {StateAIActive: true, StateArchived: true},
	StateHandoffPending: {StateAgentActive: true, StateArchived: true},
	StateAgentActive:   {StateResolved: true, StateArchived: true},
	StateResolved:      {StateArchived: true},
	StateArchived:      {},
}

// IsTerminal reports whether s is a terminal state (resolved or archived).
// resolved can still move to archived; archived has no outbound transitions.
func (s ConversationState) IsTerminal() bool {
	return s == StateResolved || s == StateArchived
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to ConversationState) bool {
	allowed, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// UserType distinguishes human participants from assistant (agent) ones.
type UserType string

// Supported participant types.
const (
	UserTypeUser  UserType = "user"
	UserTypeAgent UserType = "agent"
)

// ParticipantRole is a conversation participant's privilege level.
type ParticipantRole string

// Supported participant roles.
const (
	RoleOwner  ParticipantRole = "owner"
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Participant is one member of a conversation's ordered participant set.
type Participant struct {
	UserID   string          `json:"userId"`
	UserType UserType        `json:"userType"`
	Role     ParticipantRole `json:"role"`
	EntityID string          `json:"entityId,omitempty"`
}

// MessagePriority ranks how urgently an outbound message should be delivered.
type MessagePriority string

// Supported message priorities.
const (
	PriorityLow      MessagePriority = "low"
	PriorityNormal   MessagePriority = "normal"
	PriorityHigh     MessagePriority = "high"
	PriorityCritical MessagePriority = "critical"
)

// Message is the ingress/egress message payload (§6 message.new schema).
type Message struct {
	ID            string                 `json:"id"`
	SenderID      string                 `json:"sender_id"`
	SenderType    UserType               `json:"sender_type"`
	Content       string                 `json:"content"`
	ContentType   string                 `json:"content_type,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	Sequence      int64                  `json:"sequence,omitempty"`
	Priority      MessagePriority        `json:"priority,omitempty"`
	Interruptible bool                   `json:"interruptible,omitempty"`
	PreemptedBy   string                 `json:"preemptedBy,omitempty"`
}

// User is the caller identity resolved from Identity's token introspection.
type User struct {
	ID            string   `json:"id"`
	Type          UserType `json:"type"`
	OrgID         string   `json:"orgId,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	IsSuperAdmin  bool     `json:"isSuperAdmin,omitempty"`
}

// Event is the opaque envelope a run was started from.
type Event struct {
	ID        string                 `json:"id"`
	Type      Trigger                `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ExecutionContext is the immutable-from-the-rule-engine bag a run carries.
// The Context map is the only rule-visible mutable store, and even it is
// only mutated in place for the duration of a single action (handlers may
// read the snapshot freely); context.update's output is collected, not
// applied in place, and merged into persistent storage by the coordinator
// after the run completes. ConversationState IS mutated in place by a
// successful state.transition, for the remainder of this run only.
type ExecutionContext struct {
	OrgID             string
	ConversationID    string
	ConversationState ConversationState
	Trigger           Trigger
	Event             Event
	Message           *Message
	User              *User
	Context           map[string]interface{}
	Metadata          map[string]interface{}
	LLMProfile        llmconfig.ResolvedLLMConfig
	AssistantKey      string
	AssistantAlias    string

	// SuppressResponse is set true by a completed assistant.route/embedding.route
	// action so that a later message.send in the same rule becomes a no-op
	// (§4.3 message.send: "Respects suppressResponse in run context").
	SuppressResponse bool
}

// ToMap flattens the execution context into the generic nested map that
// condition.Evaluate's dotted-path resolver walks. The top-level map and
// the message/user/event sub-maps are fresh, but the context, metadata,
// event data and message metadata maps are the ExecutionContext's own maps,
// not copies, so mutating them through the result changes the context.
func (c *ExecutionContext) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"orgId":             c.OrgID,
		"conversationId":    c.ConversationID,
		"conversationState": string(c.ConversationState),
		"trigger":           string(c.Trigger),
		"event": map[string]interface{}{
			"id":        c.Event.ID,
			"type":      string(c.Event.Type),
			"timestamp": c.Event.Timestamp,
			"data":      toInterfaceMap(c.Event.Data),
		},
		"context":  toInterfaceMap(c.Context),
		"metadata": toInterfaceMap(c.Metadata),
	}
	if c.Message != nil {
		m["message"] = map[string]interface{}{
			"id":            c.Message.ID,
			"sender_id":     c.Message.SenderID,
			"sender_type":   string(c.Message.SenderType),
			"content":       c.Message.Content,
			"content_type":  c.Message.ContentType,
			"metadata":      toInterfaceMap(c.Message.Metadata),
			"created_at":    c.Message.CreatedAt,
			"sequence":      c.Message.Sequence,
			"priority":      string(c.Message.Priority),
			"interruptible": c.Message.Interruptible,
		}
	}
	if c.User != nil {
		m["user"] = map[string]interface{}{
			"id":            c.User.ID,
			"type":          string(c.User.Type),
			"orgId":         c.User.OrgID,
			"organizations": c.User.Organizations,
			"isSuperAdmin":  c.User.IsSuperAdmin,
		}
	}
	return m
}

func toInterfaceMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
