package llmconfig

// ShouldUseEmbeddingRouting reports whether the resolved routing strategy
// relies on embedding similarity at all (either alone or as the first pass
// of a hybrid strategy).
func ShouldUseEmbeddingRouting(resolved ResolvedLLMConfig) bool {
	switch resolved.Routing.Strategy {
	case RoutingStrategyEmbedding, RoutingStrategyHybrid:
		return true
	default:
		return false
	}
}

// ShouldUseLLMFallback decides whether an LLM call should be used to pick a
// routing target, given the best embedding similarity seen so far (nil if
// no embedding candidate was scored at all).
//
//   - strategy "llm" or unrecognized: always true.
//   - strategy "embedding" or "rules": always false — those strategies
//     never fall back to an LLM call.
//   - strategy "hybrid": true iff similarity < confidenceThreshold
//     (default 0.85); true if no similarity was computed.
func ShouldUseLLMFallback(resolved ResolvedLLMConfig, similarity *float64) bool {
	switch resolved.Routing.Strategy {
	case RoutingStrategyEmbedding, RoutingStrategyRules:
		return false
	case RoutingStrategyHybrid:
		if similarity == nil {
			return true
		}
		threshold := resolved.Routing.ConfidenceThreshold
		if threshold == 0 {
			threshold = SystemDefaults.Routing.ConfidenceThreshold
		}
		return *similarity < threshold
	case RoutingStrategyLLM:
		return true
	default:
		return true
	}
}
