package router

import "context"

// AssistantDescription is one catalog entry used both for direct lookup
// and as an embedding.route candidate.
type AssistantDescription struct {
	Key         string
	EntityID    string
	Description string
	Embedding   []float64
}

// Catalog resolves assistant keys to their catalog entry and enumerates
// the candidate set embedding.route scores against.
type Catalog interface {
	Lookup(ctx context.Context, key string) (*AssistantDescription, bool, error)
	Candidates(ctx context.Context) ([]AssistantDescription, error)
}

// ConversationJoiner is the Messaging collaborator call C6 makes before
// emitting a forwarded message.new (§4.6 step 2).
type ConversationJoiner interface {
	JoinConversation(ctx context.Context, conversationID, asUserID string) error
}

// LLMChooser is consulted when an embedding.route's best similarity falls
// below the configured threshold (§4.1 should_use_llm_fallback). It may
// be nil — a Router without one simply takes the best embedding match
// whatever its score, rather than escalating to an LLM.
type LLMChooser interface {
	ChooseAssistant(ctx context.Context, messageText string, candidates []AssistantDescription) (key string, reason string, err error)
}
