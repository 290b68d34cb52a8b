package action

import "log/slog"

// Collaborators bundles every external collaborator the built-in handlers
// need. NewDefaultDispatcher wires one handler per action type over these.
type Collaborators struct {
	LLM           LLMInvoker
	Embedding     EmbeddingCreator
	EmbeddingSize int
	Messages      MessageSender
	Router        Router
	Integrations  IntegrationInvoker
}

// NewDefaultDispatcher builds a Dispatcher with every built-in handler
// registered, wired over collaborators. parallel/condition/loop are
// registered last since they close over the dispatcher itself.
func NewDefaultDispatcher(collaborators Collaborators, logger *slog.Logger) (*Dispatcher, error) {
	embeddingHandler, err := NewEmbeddingHandler(collaborators.Embedding, collaborators.EmbeddingSize)
	if err != nil {
		return nil, err
	}

	handlers := map[Type]Handler{
		TypeLLMInvoke:         NewLLMInvokeHandler(collaborators.LLM),
		TypeEmbeddingCreate:   embeddingHandler,
		TypeEmbeddingSearch:   embeddingHandler,
		TypeMessageSend:       NewMessageSendHandler(collaborators.Messages),
		TypeStateTransition:   NewStateTransitionHandler(),
		TypeContextUpdate:     NewContextUpdateHandler(),
		TypeWait:              NewWaitHandler(),
		TypeAssistantRoute:    NewRouteHandler(collaborators.Router),
		TypeEmbeddingRoute:    NewRouteHandler(collaborators.Router),
		TypeHandoffCreate:     NewHandoffHandler(),
		TypeHandoffAssign:     NewHandoffHandler(),
		TypeHandoffResolve:    NewHandoffHandler(),
		TypeIntegrationInvoke: NewIntegrationInvokeHandler(collaborators.Integrations),
		TypeWorkspaceCreate:   NewWorkspaceHandler(),
		TypeWorkspaceDestroy:  NewWorkspaceHandler(),
	}

	registry := NewRegistry(handlers)
	dispatcher := NewDispatcher(registry, logger)

	registry.Register(TypeParallel, NewParallelHandler(dispatcher))
	registry.Register(TypeCondition, NewConditionHandler(dispatcher))
	registry.Register(TypeLoop, NewLoopHandler(dispatcher))

	return dispatcher, nil
}
