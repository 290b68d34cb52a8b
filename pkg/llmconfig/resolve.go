package llmconfig

import (
	"fmt"

	"dario.cat/mergo"
)

// Resolve builds the effective LLM profile for one rule/action invocation.
//
// Merge order (spec §4.1):
//  1. SystemDefaults
//  2. orgDefaults (may be nil)
//  3. the named preset, if configRef.Preset is set and not "custom"
//  4. configRef.Overrides, section by section
//
// Merge semantics: map-valued fields recurse; scalar and array fields have
// later-wins semantics; an unset (nil pointer) override section is treated
// as entirely absent. Resolve has no side effects and is safe to call
// concurrently — invariant 3 (config idempotence) requires that resolving
// the same (configRef, orgDefaults) pair twice yields a byte-equal result.
func Resolve(configRef *ConfigRef, orgDefaults *OrgDefaults) (ResolvedLLMConfig, error) {
	result := SystemDefaults // struct copy

	if orgDefaults != nil {
		if err := applyOverrides(&result, *orgDefaults); err != nil {
			return ResolvedLLMConfig{}, fmt.Errorf("llmconfig: applying org defaults: %w", err)
		}
	}

	if configRef != nil && configRef.Preset != "" && configRef.Preset != "custom" {
		if preset, ok := presetOverrides(configRef.Preset); ok {
			if err := applyOverrides(&result, preset); err != nil {
				return ResolvedLLMConfig{}, fmt.Errorf("llmconfig: applying preset %q: %w", configRef.Preset, err)
			}
		}
		// Unknown preset names degrade gracefully: defaults (+ org defaults) only.
	}

	if configRef != nil {
		if err := applyOverrides(&result, configRef.Overrides); err != nil {
			return ResolvedLLMConfig{}, fmt.Errorf("llmconfig: applying overrides: %w", err)
		}
	}

	return result, nil
}

// applyOverrides deep-merges each populated section of o into dst, later
// wins. Each section is merged independently (Design Note: "deep-merge of
// heterogeneous objects... section-dispatched merge: known sections get
// explicit merge functions; no generic reflective merge").
//
// "Unset" is tracked at section granularity only (a nil *GenerationConfig
// etc.) — once a section pointer is non-nil every field in it is
// considered explicitly set, including Go zero values like
// EnableFallbacks: false. WithOverwriteWithEmptyValue is required so those
// zero values actually win; plain WithOverride only overwrites a
// destination field when the source field is non-zero, which would make a
// preset's EnableFallbacks: false unable to turn off a true value set by
// an earlier layer.
func applyOverrides(dst *ResolvedLLMConfig, o Overrides) error {
	if o.Generation != nil {
		if err := mergo.Merge(&dst.Generation, *o.Generation, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return fmt.Errorf("generation section: %w", err)
		}
	}
	if o.Provider != nil {
		if err := mergo.Merge(&dst.Provider, *o.Provider, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return fmt.Errorf("provider section: %w", err)
		}
	}
	if o.Embedding != nil {
		if err := mergo.Merge(&dst.Embedding, *o.Embedding, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return fmt.Errorf("embedding section: %w", err)
		}
	}
	if o.Routing != nil {
		if err := mergo.Merge(&dst.Routing, *o.Routing, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return fmt.Errorf("routing section: %w", err)
		}
	}
	if o.Safety != nil {
		if err := mergo.Merge(&dst.Safety, *o.Safety, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return fmt.Errorf("safety section: %w", err)
		}
	}
	if o.Reliability != nil {
		if err := mergo.Merge(&dst.Reliability, *o.Reliability, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return fmt.Errorf("reliability section: %w", err)
		}
	}
	if o.Context != nil {
		if err := mergo.Merge(&dst.Context, *o.Context, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return fmt.Errorf("context section: %w", err)
		}
	}
	if o.Observability != nil {
		if err := mergo.Merge(&dst.Observability, *o.Observability, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return fmt.Errorf("observability section: %w", err)
		}
	}
	return nil
}

// ActionConfig overlays per-invocation action params on top of resolved's
// generation + provider sections, producing the profile an individual
// llm.invoke call should use. actionParams keys match GenerationConfig's
// mapstructure tags (temperature, max_output_tokens, ...); ProviderConfig
// has no mapstructure tags, so its keys match its field names
// case-insensitively (provider, model, enableFallbacks, ...).
func ActionConfig(resolved ResolvedLLMConfig, actionParams map[string]interface{}) (GenerationConfig, ProviderConfig, error) {
	gen := resolved.Generation
	prov := resolved.Provider

	if actionParams == nil {
		return gen, prov, nil
	}

	if err := decodeInto(actionParams, &gen); err != nil {
		return gen, prov, fmt.Errorf("llmconfig: decoding action generation overrides: %w", err)
	}
	if err := decodeInto(actionParams, &prov); err != nil {
		return gen, prov, fmt.Errorf("llmconfig: decoding action provider overrides: %w", err)
	}
	return gen, prov, nil
}
