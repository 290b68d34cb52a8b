// Package llmconfig implements the Configuration Resolver (C1): it produces
// a fully-populated effective LLM profile by deep-merging system defaults, a
// preset, org defaults, assistant overrides, and per-action overrides.
package llmconfig

import "time"

// RoutingStrategy selects how inter-assistant routing decides its target.
type RoutingStrategy string

// Supported routing strategies.
const (
	RoutingStrategyRules     RoutingStrategy = "rules"
	RoutingStrategyEmbedding RoutingStrategy = "embedding"
	RoutingStrategyLLM       RoutingStrategy = "llm"
	RoutingStrategyHybrid    RoutingStrategy = "hybrid"
)

// TruncationStrategy controls how an over-long conversation is shortened
// before being sent to the LLM.
type TruncationStrategy string

// Supported truncation strategies.
const (
	TruncationNone          TruncationStrategy = "none"
	TruncationSlidingWindow TruncationStrategy = "sliding_window"
	TruncationSummarize     TruncationStrategy = "summarize"
)

// GenerationConfig controls the shape of LLM output.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens" yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	ResponseFormat  string  `json:"responseFormat" yaml:"response_format" mapstructure:"response_format"` // "text" | "json"
	TopP            float64 `json:"topP" yaml:"top_p" mapstructure:"top_p"`
}

// ProviderConfig selects and configures the LLM backend.
type ProviderConfig struct {
	Provider        string   `json:"provider" yaml:"provider"`
	Model           string   `json:"model" yaml:"model"`
	FallbackModels  []string `json:"fallbackModels,omitempty" yaml:"fallback_models,omitempty"`
	EnableFallbacks bool     `json:"enableFallbacks" yaml:"enable_fallbacks"`
}

// EmbeddingConfig controls embedding.create / embedding.search behavior.
type EmbeddingConfig struct {
	Provider        string `json:"provider" yaml:"provider"`
	Model           string `json:"model" yaml:"model"`
	CacheEmbeddings bool   `json:"cacheEmbeddings" yaml:"cache_embeddings"`
}

// RoutingConfig controls assistant.route / embedding.route fallback policy.
type RoutingConfig struct {
	Strategy             RoutingStrategy `json:"strategy" yaml:"strategy"`
	ConfidenceThreshold   float64         `json:"confidenceThreshold" yaml:"confidence_threshold"`
	SimilarityThreshold   float64         `json:"similarityThreshold" yaml:"similarity_threshold"`
}

// SafetyConfig carries content-safety knobs passed through to Integrations.
type SafetyConfig struct {
	ContentFilter string `json:"contentFilter,omitempty" yaml:"content_filter,omitempty"`
}

// ReliabilityConfig controls timeouts and retries for outbound action calls.
type ReliabilityConfig struct {
	TimeoutMs  int `json:"timeoutMs" yaml:"timeout_ms"`
	MaxRetries int `json:"maxRetries" yaml:"max_retries"`
}

// Timeout returns ReliabilityConfig.TimeoutMs as a time.Duration.
func (r ReliabilityConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// ContextConfig controls conversation-history truncation before invoking the LLM.
type ContextConfig struct {
	MaxContextTokens   int                `json:"maxContextTokens" yaml:"max_context_tokens"`
	TruncationStrategy TruncationStrategy `json:"truncationStrategy" yaml:"truncation_strategy"`
}

// ObservabilityConfig controls what gets attached to outbound calls for
// correlation. Shipping telemetry itself is the out-of-scope Observability
// pipe collaborator; this only controls whether trace headers are attached.
type ObservabilityConfig struct {
	PropagateTraceID bool `json:"propagateTraceId" yaml:"propagate_trace_id"`
}

// ResolvedLLMConfig is the fully-populated effective profile produced by
// Resolve. Every field is always present after resolution (invariant 3:
// resolving the same inputs twice yields a byte-equal result).
type ResolvedLLMConfig struct {
	Generation    GenerationConfig    `json:"generation" yaml:"generation"`
	Provider      ProviderConfig      `json:"provider" yaml:"provider"`
	Embedding     EmbeddingConfig     `json:"embedding" yaml:"embedding"`
	Routing       RoutingConfig       `json:"routing" yaml:"routing"`
	Safety        SafetyConfig        `json:"safety" yaml:"safety"`
	Reliability   ReliabilityConfig   `json:"reliability" yaml:"reliability"`
	Context       ContextConfig       `json:"context" yaml:"context"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// Overrides is the section-by-section overlay supplied by a ConfigRef. Every
// field is a pointer (or nil-map) so "unset" is distinguishable from "zero
// value" — undefined is treated as absent during merge.
type Overrides struct {
	Generation    *GenerationConfig    `json:"generation,omitempty" yaml:"generation,omitempty"`
	Provider      *ProviderConfig      `json:"provider,omitempty" yaml:"provider,omitempty"`
	Embedding     *EmbeddingConfig     `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	Routing       *RoutingConfig       `json:"routing,omitempty" yaml:"routing,omitempty"`
	Safety        *SafetyConfig        `json:"safety,omitempty" yaml:"safety,omitempty"`
	Reliability   *ReliabilityConfig   `json:"reliability,omitempty" yaml:"reliability,omitempty"`
	Context       *ContextConfig       `json:"context,omitempty" yaml:"context,omitempty"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"`
}

// ConfigRef names a preset and carries assistant/action-level overrides.
// Preset == "" or "custom" means "defaults only, no named preset".
type ConfigRef struct {
	Preset    string    `json:"preset,omitempty" yaml:"preset,omitempty"`
	Overrides Overrides `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// OrgDefaults is an org-wide overlay applied before the preset and
// assistant overrides. Same shape as Overrides: every section optional.
type OrgDefaults = Overrides
