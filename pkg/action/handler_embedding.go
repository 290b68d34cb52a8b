package action

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/codeready-toolchain/assistants-engine/pkg/execctx"
	"github.com/codeready-toolchain/assistants-engine/pkg/llmconfig"
)

var errEmbeddingCountMismatch = errors.New("embedding provider returned a different number of embeddings than requested")

const (
	defaultEmbeddingCacheSize = 4096
	defaultEmbeddingTimeout   = 30 * time.Second
)

// embeddingCreateParams decodes embedding.create's params.
type embeddingCreateParams struct {
	Texts []string `mapstructure:"texts"`
}

// embeddingSearchParams decodes embedding.search's params. Candidates may
// already carry a precomputed embedding (skips the provider round trip);
// any candidate missing one gets its embedding computed and cached.
type embeddingSearchParams struct {
	Query      string               `mapstructure:"query"`
	Candidates []embeddingCandidate `mapstructure:"candidates"`
	TopK       int                  `mapstructure:"topK"`
}

type embeddingCandidate struct {
	ID        string    `mapstructure:"id"`
	Text      string    `mapstructure:"text"`
	Embedding []float64 `mapstructure:"embedding"`
}

// embeddingHandler implements embedding.create and embedding.search,
// sharing one LRU cache keyed by provider+model+text so repeated lookups
// (a route decision re-evaluated across rules, or a recurring candidate
// set) skip the provider round trip.
type embeddingHandler struct {
	creator EmbeddingCreator
	cache   *lru.Cache
}

// NewEmbeddingHandler builds the shared embedding.create/embedding.search
// handler. cacheSize <= 0 uses a sane default.
func NewEmbeddingHandler(creator EmbeddingCreator, cacheSize int) (Handler, error) {
	if cacheSize <= 0 {
		cacheSize = defaultEmbeddingCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &embeddingHandler{creator: creator, cache: cache}, nil
}

func (h *embeddingHandler) Execute(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	switch cfg.Type {
	case TypeEmbeddingCreate:
		return h.create(ctx, execCtx, cfg)
	case TypeEmbeddingSearch:
		return h.search(ctx, execCtx, cfg)
	default:
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "embedding handler does not serve " + string(cfg.Type)}
	}
}

func (h *embeddingHandler) create(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p embeddingCreateParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if len(p.Texts) == 0 {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "texts must be non-empty"}
	}

	emb := execCtx.LLMProfile.Embedding
	embeddings, err := h.embedMany(ctx, cfg.Type, emb.Provider, emb.Model, p.Texts, emb.CacheEmbeddings, execCtx.LLMProfile.Reliability)
	if err != nil {
		return Result{}, err
	}

	return success(cfg.Type, map[string]interface{}{
		"provider":   emb.Provider,
		"model":      emb.Model,
		"embeddings": embeddings,
	}, time.Now()), nil
}

func (h *embeddingHandler) search(ctx context.Context, execCtx *execctx.ExecutionContext, cfg Config) (Result, error) {
	var p embeddingSearchParams
	if err := decodeParams(cfg.Type, cfg.Params, &p); err != nil {
		return Result{}, err
	}
	if p.Query == "" {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "query must be non-empty"}
	}
	if len(p.Candidates) == 0 {
		return Result{}, &ValidationError{ActionType: cfg.Type, Reason: "candidates must be non-empty"}
	}

	emb := execCtx.LLMProfile.Embedding
	reliability := execCtx.LLMProfile.Reliability
	queryEmbedding, err := h.embedOne(ctx, cfg.Type, emb.Provider, emb.Model, p.Query, emb.CacheEmbeddings, reliability)
	if err != nil {
		return Result{}, err
	}

	type scored struct {
		ID         string  `json:"id"`
		Similarity float64 `json:"similarity"`
	}
	results := make([]scored, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		candEmbedding := c.Embedding
		if len(candEmbedding) == 0 {
			if c.Text == "" {
				continue
			}
			candEmbedding, err = h.embedOne(ctx, cfg.Type, emb.Provider, emb.Model, c.Text, emb.CacheEmbeddings, reliability)
			if err != nil {
				return Result{}, err
			}
		}
		results = append(results, scored{ID: c.ID, Similarity: cosineSimilarity(queryEmbedding, candEmbedding)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	topK := p.TopK
	if topK <= 0 || topK > len(results) {
		topK = len(results)
	}
	results = results[:topK]

	matches := make([]map[string]interface{}, len(results))
	for i, r := range results {
		matches[i] = map[string]interface{}{"id": r.ID, "similarity": r.Similarity}
	}

	return success(cfg.Type, map[string]interface{}{
		"provider": emb.Provider,
		"model":    emb.Model,
		"matches":  matches,
	}, time.Now()), nil
}

func (h *embeddingHandler) embedOne(ctx context.Context, actionType Type, provider, model, text string, useCache bool, reliability llmconfig.ReliabilityConfig) ([]float64, error) {
	embeddings, err := h.embedMany(ctx, actionType, provider, model, []string{text}, useCache, reliability)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// embedMany resolves each text's embedding from cache where possible and
// asks the provider for a single batch covering the cache misses, in
// original order. The provider round trip is retried with backoff the
// same way llm.invoke retries Invoke (§7: NetworkError retried up to
// MaxRetries).
func (h *embeddingHandler) embedMany(ctx context.Context, actionType Type, provider, model string, texts []string, useCache bool, reliability llmconfig.ReliabilityConfig) ([][]float64, error) {
	result := make([][]float64, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if useCache {
			if cached, ok := h.cache.Get(embeddingCacheKey(provider, model, text)); ok {
				result[i] = cached.([]float64)
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		timeout := reliability.Timeout()
		if timeout <= 0 {
			timeout = defaultEmbeddingTimeout
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var resp EmbeddingResponse
		err := withRetry(callCtx, timeout, reliability.MaxRetries, func() error {
			var createErr error
			resp, createErr = h.creator.CreateEmbeddings(callCtx, EmbeddingRequest{Provider: provider, Model: model, Texts: missTexts})
			return createErr
		})
		if err != nil {
			if callCtx.Err() != nil {
				return nil, &TimeoutError{ActionType: actionType, TimeoutMs: int(timeout.Milliseconds())}
			}
			return nil, err
		}
		if len(resp.Embeddings) != len(missTexts) {
			return nil, &InternalError{Cause: errEmbeddingCountMismatch}
		}
		for k, idx := range missIdx {
			result[idx] = resp.Embeddings[k]
			if useCache {
				h.cache.Add(embeddingCacheKey(provider, model, missTexts[k]), resp.Embeddings[k])
			}
		}
	}

	return result, nil
}

func embeddingCacheKey(provider, model, text string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
