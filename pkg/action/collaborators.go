package action

import (
	"context"
	"time"
)

// The handlers in this package depend only on these narrow collaborator
// interfaces, never on the concrete HTTP clients in pkg/integrations,
// pkg/messaging, or the routing logic in pkg/router — those packages
// implement these interfaces and are wired together in cmd/assistants-engine.

// LLMRequest is the normalized llm.invoke request (§6 Integrations surface).
type LLMRequest struct {
	Provider  string
	Model     string
	Operation string
	Params    map[string]interface{}
	Timeout   time.Duration
}

// LLMResponse is the normalized llm.invoke response.
type LLMResponse struct {
	Provider     string                 `json:"provider"`
	Model        string                 `json:"model"`
	Content      string                 `json:"content"`
	Usage        map[string]interface{} `json:"usage,omitempty"`
	FinishReason string                 `json:"finishReason"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Normalized finish reasons (§6).
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
	FinishToolCalls     = "tool_calls"
	FinishError         = "error"
	FinishIncomplete    = "incomplete"
)

// LLMInvoker calls the Integrations collaborator's llm.invoke contract.
type LLMInvoker interface {
	Invoke(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// EmbeddingRequest is the normalized embedding.create request.
type EmbeddingRequest struct {
	Provider string
	Model    string
	Texts    []string
}

// EmbeddingResponse is the normalized embedding.create response.
type EmbeddingResponse struct {
	Provider   string                 `json:"provider"`
	Model      string                 `json:"model"`
	Embeddings [][]float64            `json:"embeddings"`
	Usage      map[string]interface{} `json:"usage,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// EmbeddingCreator calls the Integrations collaborator's embedding.create contract.
type EmbeddingCreator interface {
	CreateEmbeddings(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)
}

// OutboundMessage is what message.send posts to the Messaging collaborator.
type OutboundMessage struct {
	ID            string
	Content       string
	ContentType   string
	Priority      string
	Interruptible bool
	RunID         string
	TraceID       string
}

// MessageSender posts an outbound message to the Messaging collaborator.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID string, msg OutboundMessage) error
}

// RouteRequest carries everything the router needs to resolve and dispatch
// an assistant.route / embedding.route action.
type RouteRequest struct {
	CallerAssistant string
	TargetHint      string // explicit targetAssistant, or resolved context value
	UseEmbedding    bool
	MessageText     string
	Reason          string
	ConversationID  string
	OrgID           string
	Message         map[string]interface{}
}

// RouteResult is the outcome of a successful route dispatch.
type RouteResult struct {
	TargetAssistant string
	Reason          string
}

// Router resolves and dispatches an inter-assistant routing action (C6).
type Router interface {
	Route(ctx context.Context, req RouteRequest) (RouteResult, error)
}

// IntegrationInvoker dispatches integration.invoke by dotted namespace
// (e.g. "openai.chat.completions") to the Integrations collaborator.
type IntegrationInvoker interface {
	InvokeIntegration(ctx context.Context, namespace string, params map[string]interface{}, timeout time.Duration) (map[string]interface{}, error)
}
