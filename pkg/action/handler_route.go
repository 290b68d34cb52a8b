package action

import (
	"context"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
)

// routeParams decodes assistant.route / embedding.route's params.
type routeParams struct {
	TargetAssistant string `mapstructure:"targetAssistant"`
	FromContext     bool   `mapstructure:"fromContext"`
	ContextKey      string `mapstructure:"contextKey"`
	Reason          string `mapstructure:"reason"`
}

const defaultRouteContextKey = "routeTarget"

// resolveContextTarget reads params.targetAssistant, or — when
// fromContext=true — ctx.context[params.contextKey || 'routeTarget']
// (§4.6). The context value may be a bare string or an object carrying
// one of assistant/target/key.
func resolveContextTarget(p routeParams, context map[string]interface{}) (string, error) {
	if !p.FromContext {
		return p.TargetAssistant, nil
	}

	key := p.ContextKey
	if key == "" {
		key = defaultRouteContextKey
	}
	raw, ok := context[key]
	if !ok {
		return "", &ValidationError{ActionType: TypeAssistantRoute, Reason: "context key " + key + " is not set"}
	}

	switch v := raw.(type) {
	case string:
		return v, nil
	case map[string]interface{}:
		for _, field := range []string{"assistant", "target", "key"} {
			if s, ok := v[field].(string); ok && s != "" {
				return s, nil
			}
		}
		return "", &ValidationError{ActionType: TypeAssistantRoute, Reason: "context value at " + key + " has no assistant/target/key field"}
	default:
		return "", &ValidationError{ActionType: TypeAssistantRoute, Reason: "context value at " + key + " is neither a string nor an object"}
	}
}

// routeHandler implements assistant.route and embedding.route (§4.3): it
// resolves the real target through the Router collaborator (alias
// normalization, or embedding-similarity ranking for embedding.route) and,
// on success, sets SuppressResponse so a later message.send in the same
// rule becomes a no-op — this assistant has handed the conversation off, it
// doesn't also reply to it.
type routeHandler struct {
	router Router
}

// NewRouteHandler builds the shared assistant.route/embedding.route handler.
func NewRouteHandler(router Router) Handler {
	return &routeHandler{router: router}
}

func (h *routeHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p routeParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}

	useEmbedding := cfg.Type == TypeEmbeddingRoute

	targetHint := p.TargetAssistant
	if !useEmbedding {
		resolved, err := resolveContextTarget(p, execCtx.Context)
		if err != nil {
			return Result{}, err
		}
		targetHint = resolved
		if targetHint == "" {
			return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "targetAssistant must be non-empty"}
		}
	}

	messageText := ""
	var messageMap map[string]interface{}
	if execCtx.Message != nil {
		messageText = execCtx.Message.Content
		if m, ok := execCtx.ToMap()["message"].(map[string]interface{}); ok {
			messageMap = m
		}
	}

	result, err := h.router.Route(ctx, RouteRequest{
		CallerAssistant: execCtx.AssistantKey,
		TargetHint:      targetHint,
		UseEmbedding:    useEmbedding,
		MessageText:     messageText,
		Reason:          p.Reason,
		ConversationID:  execCtx.ConversationID,
		OrgID:           execCtx.OrgID,
		Message:         messageMap,
	})
	if err != nil {
		return Result{}, err
	}

	execCtx.SuppressResponse = true

	return success(cfg.Type, map[string]interface{}{
		"targetAssistant": result.TargetAssistant,
		"reason":          result.Reason,
	}, time.Now()), nil
}
