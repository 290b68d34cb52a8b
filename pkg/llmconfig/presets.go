package llmconfig

// SystemDefaults is the base profile every resolution starts from (step 0
// of Resolve: "Starts from SYSTEM_DEFAULTS").
var SystemDefaults = ResolvedLLMConfig{
	Generation: GenerationConfig{
		Temperature:     0.7,
		MaxOutputTokens: 2048,
		ResponseFormat:  "text",
		TopP:            1.0,
	},
	Provider: ProviderConfig{
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		EnableFallbacks: false,
	},
	Embedding: EmbeddingConfig{
		Provider:        "openai",
		Model:           "text-embedding-3-small",
		CacheEmbeddings: true,
	},
	Routing: RoutingConfig{
		Strategy:            RoutingStrategyLLM,
		ConfidenceThreshold: 0.85,
		SimilarityThreshold: 0.75,
	},
	Safety: SafetyConfig{},
	Reliability: ReliabilityConfig{
		TimeoutMs:  45_000,
		MaxRetries: 1,
	},
	Context: ContextConfig{
		MaxContextTokens:   8_000,
		TruncationStrategy: TruncationNone,
	},
	Observability: ObservabilityConfig{
		PropagateTraceID: true,
	},
}

// presetOverrides returns the named preset's overlay. Unknown preset names
// degrade gracefully: callers get (Overrides{}, false) and resolution
// proceeds with defaults only.
//
// Once a preset sets a section, every field in that section is taken
// literally (applyOverrides merges with mergo.WithOverwriteWithEmptyValue),
// so a preset that only cares about one field of a section — e.g.
// "reasoning" forcing Provider.EnableFallbacks off — must still spell out
// the section's other fields, or it will blank them.
func presetOverrides(name string) (Overrides, bool) {
	switch name {
	case "routing":
		return Overrides{
			Generation: &GenerationConfig{Temperature: 0.1, MaxOutputTokens: 512, ResponseFormat: "json", TopP: 1.0},
			Context:    &ContextConfig{MaxContextTokens: 2_000, TruncationStrategy: TruncationNone},
			Reliability: &ReliabilityConfig{TimeoutMs: 10_000, MaxRetries: 2},
		}, true
	case "conversational":
		return Overrides{
			Generation: &GenerationConfig{Temperature: 0.7, MaxOutputTokens: 2048, ResponseFormat: "text", TopP: 1.0},
			Provider:   &ProviderConfig{Provider: SystemDefaults.Provider.Provider, Model: SystemDefaults.Provider.Model, EnableFallbacks: true},
		}, true
	case "code":
		return Overrides{
			Generation: &GenerationConfig{Temperature: 0.1, MaxOutputTokens: 4096, ResponseFormat: "text", TopP: 1.0},
			Context:    &ContextConfig{MaxContextTokens: 16_000, TruncationStrategy: TruncationSlidingWindow},
		}, true
	case "reasoning":
		return Overrides{
			Generation:  &GenerationConfig{Temperature: 1, MaxOutputTokens: 4096, ResponseFormat: "text", TopP: 1.0},
			Provider:    &ProviderConfig{Provider: SystemDefaults.Provider.Provider, Model: SystemDefaults.Provider.Model, EnableFallbacks: false},
			Context:     &ContextConfig{MaxContextTokens: 32_000, TruncationStrategy: TruncationSummarize},
			Reliability: &ReliabilityConfig{TimeoutMs: 120_000, MaxRetries: 1},
		}, true
	default:
		return Overrides{}, false
	}
}
