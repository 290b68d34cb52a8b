package config

import (
	"fmt"
	"time"

	"dario.cat/mergo"
)

// mergeCoordinatorSettings merges YAML-supplied coordinator tunables onto
// the built-in defaults; zero/unset YAML fields keep the default.
func mergeCoordinatorSettings(yamlCfg CoordinatorYAMLConfig) (CoordinatorSettings, error) {
	result := CoordinatorSettings{
		MailboxDepth: DefaultMailboxDepth,
		RunTimeout:   DefaultRunTimeout,
	}

	override := CoordinatorSettings{MailboxDepth: yamlCfg.MailboxDepth}
	if yamlCfg.RunTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.RunTimeout)
		if err != nil {
			return result, fmt.Errorf("run_timeout: %w", err)
		}
		override.RunTimeout = d
	}

	if err := mergo.Merge(&result, override, mergo.WithOverride); err != nil {
		return result, fmt.Errorf("failed to merge coordinator settings: %w", err)
	}
	return result, nil
}

// mergeRoutingSettings merges YAML-supplied routing tunables onto the
// built-in defaults.
func mergeRoutingSettings(yamlCfg RoutingYAMLConfig) (RoutingSettings, error) {
	result := RoutingSettings{
		SimilarityThreshold: DefaultSimilarityThreshold,
		CatalogRefresh:      DefaultCatalogRefresh,
	}

	override := RoutingSettings{SimilarityThreshold: yamlCfg.SimilarityThreshold}
	if yamlCfg.CatalogRefresh != "" {
		d, err := time.ParseDuration(yamlCfg.CatalogRefresh)
		if err != nil {
			return result, fmt.Errorf("catalog_refresh_interval: %w", err)
		}
		override.CatalogRefresh = d
	}

	if err := mergo.Merge(&result, override, mergo.WithOverride); err != nil {
		return result, fmt.Errorf("failed to merge routing settings: %w", err)
	}
	return result, nil
}

// mergeAliasOverrides copies user-supplied alias overrides over a fresh map;
// router.NewAliasMap already seeds its own built-in aliases underneath, so
// this is a defensive copy rather than a real merge.
func mergeAliasOverrides(overrides map[string]string) map[string]string {
	result := make(map[string]string, len(overrides))
	for k, v := range overrides {
		result[k] = v
	}
	return result
}
