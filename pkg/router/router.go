package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/eventbus"
)

const defaultEmbeddingProvider = "default"
const defaultEmbeddingModel = "default"

// Config carries Router's tunables.
type Config struct {
	// SimilarityThreshold is embedding.route's maxSimilarity cutoff
	// (§4.6: "chosen if maxSimilarity >= similarityThreshold").
	SimilarityThreshold float64
	EmbeddingProvider   string
	EmbeddingModel      string
}

// Router implements action.Router: it normalizes/resolves a routing
// target via the alias map, rule hint, or embedding similarity, then
// drives the downstream join + emit effect (§4.6).
type Router struct {
	cfg      Config
	aliases  *AliasMap
	catalog  Catalog
	joiner   ConversationJoiner
	bus      *eventbus.Bus
	embedder action.EmbeddingCreator
	chooser  LLMChooser
	logger   *slog.Logger
}

// New builds a Router. embedder and chooser may be nil if embedding.route
// is never used by any loaded rule set.
func New(cfg Config, aliases *AliasMap, catalog Catalog, joiner ConversationJoiner, bus *eventbus.Bus, embedder action.EmbeddingCreator, chooser LLMChooser, logger *slog.Logger) *Router {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.75
	}
	if cfg.EmbeddingProvider == "" {
		cfg.EmbeddingProvider = defaultEmbeddingProvider
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{cfg: cfg, aliases: aliases, catalog: catalog, joiner: joiner, bus: bus, embedder: embedder, chooser: chooser, logger: logger.With("component", "router")}
}

// Route implements action.Router.
func (r *Router) Route(ctx context.Context, req action.RouteRequest) (action.RouteResult, error) {
	var (
		targetKey string
		reason    string
		err       error
	)

	if req.UseEmbedding {
		targetKey, reason, err = r.resolveByEmbedding(ctx, req)
	} else {
		targetKey = r.aliases.Normalize(req.TargetHint)
		reason = req.Reason
	}
	if err != nil {
		return action.RouteResult{}, err
	}

	desc, found, err := r.catalog.Lookup(ctx, targetKey)
	if err != nil {
		return action.RouteResult{}, fmt.Errorf("looking up target assistant %q: %w", targetKey, err)
	}
	if !found {
		return action.RouteResult{}, &action.NotFoundError{ActionType: routeActionType(req), Subject: fmt.Sprintf("Assistant '%s' not found", targetKey)}
	}

	asUserID := "assistant:" + targetKey
	if err := r.joiner.JoinConversation(ctx, req.ConversationID, asUserID); err != nil && !isAlreadyJoined(err) {
		return action.RouteResult{}, fmt.Errorf("joining %s to conversation %s: %w", asUserID, req.ConversationID, err)
	}

	message := cloneMessage(req.Message)
	message["metadata"] = mergeMetadata(message["metadata"], req.CallerAssistant, reason)

	r.bus.Emit(ctx, desc.EntityID, eventbus.Envelope{
		Event:          "message.new",
		ConversationID: req.ConversationID,
		Message:        message,
		Target:         targetKey,
		Reason:         reason,
		EffectiveAt:    time.Now(),
	})

	return action.RouteResult{TargetAssistant: targetKey, Reason: reason}, nil
}

func routeActionType(req action.RouteRequest) action.Type {
	if req.UseEmbedding {
		return action.TypeEmbeddingRoute
	}
	return action.TypeAssistantRoute
}

// resolveByEmbedding scores req.MessageText's embedding against every
// catalog candidate's precomputed embedding and returns the best match if
// it clears SimilarityThreshold; otherwise it falls back to the LLM
// chooser, if one is configured, and finally to the best match regardless
// of score (§4.6: "otherwise falls back per should_use_llm_fallback").
func (r *Router) resolveByEmbedding(ctx context.Context, req action.RouteRequest) (string, string, error) {
	if r.embedder == nil {
		return "", "", &action.InternalError{ActionType: action.TypeEmbeddingRoute, Cause: errors.New("embedding.route used but no embedder is configured")}
	}

	candidates, err := r.catalog.Candidates(ctx)
	if err != nil {
		return "", "", fmt.Errorf("listing routing candidates: %w", err)
	}
	if len(candidates) == 0 {
		return "", "", &action.NotFoundError{ActionType: action.TypeEmbeddingRoute, Subject: "no routing candidates configured"}
	}

	resp, err := r.embedder.CreateEmbeddings(ctx, action.EmbeddingRequest{
		Provider: r.cfg.EmbeddingProvider,
		Model:    r.cfg.EmbeddingModel,
		Texts:    []string{req.MessageText},
	})
	if err != nil {
		return "", "", err
	}
	if len(resp.Embeddings) == 0 {
		return "", "", &action.InternalError{ActionType: action.TypeEmbeddingRoute, Cause: errors.New("embedding provider returned no vectors")}
	}
	query := resp.Embeddings[0]

	bestKey := ""
	bestScore := -1.0
	for _, c := range candidates {
		score := cosineSimilarity(query, c.Embedding)
		if score > bestScore {
			bestScore = score
			bestKey = c.Key
		}
	}

	if bestScore >= r.cfg.SimilarityThreshold {
		return bestKey, req.Reason, nil
	}

	if r.chooser != nil {
		key, reason, err := r.chooser.ChooseAssistant(ctx, req.MessageText, candidates)
		if err == nil && key != "" {
			return key, reason, nil
		}
		r.logger.Warn("LLM routing fallback failed, using best embedding match", "error", err)
	}

	return bestKey, req.Reason, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func isAlreadyJoined(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already")
}

func cloneMessage(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	return out
}

func mergeMetadata(existing interface{}, routedFrom, reason string) map[string]interface{} {
	meta := map[string]interface{}{}
	if m, ok := existing.(map[string]interface{}); ok {
		for k, v := range m {
			meta[k] = v
		}
	}
	meta["routedFrom"] = routedFrom
	meta["routeReason"] = reason
	return meta
}
