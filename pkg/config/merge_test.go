package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCoordinatorSettings_AppliesDefaultsWhenUnset(t *testing.T) {
	got, err := mergeCoordinatorSettings(CoordinatorYAMLConfig{})

	require.NoError(t, err)
	assert.Equal(t, DefaultMailboxDepth, got.MailboxDepth)
	assert.Equal(t, DefaultRunTimeout, got.RunTimeout)
}

func TestMergeCoordinatorSettings_YAMLOverridesWin(t *testing.T) {
	got, err := mergeCoordinatorSettings(CoordinatorYAMLConfig{MailboxDepth: 512, RunTimeout: "90s"})

	require.NoError(t, err)
	assert.Equal(t, 512, got.MailboxDepth)
	assert.Equal(t, 90*time.Second, got.RunTimeout)
}

func TestMergeCoordinatorSettings_InvalidDurationErrors(t *testing.T) {
	_, err := mergeCoordinatorSettings(CoordinatorYAMLConfig{RunTimeout: "not-a-duration"})

	assert.Error(t, err)
}

func TestMergeRoutingSettings_AppliesDefaultsWhenUnset(t *testing.T) {
	got, err := mergeRoutingSettings(RoutingYAMLConfig{})

	require.NoError(t, err)
	assert.Equal(t, DefaultSimilarityThreshold, got.SimilarityThreshold)
	assert.Equal(t, DefaultCatalogRefresh, got.CatalogRefresh)
}

func TestMergeRoutingSettings_YAMLOverridesWin(t *testing.T) {
	got, err := mergeRoutingSettings(RoutingYAMLConfig{SimilarityThreshold: 0.9, CatalogRefresh: "2m"})

	require.NoError(t, err)
	assert.Equal(t, 0.9, got.SimilarityThreshold)
	assert.Equal(t, 2*time.Minute, got.CatalogRefresh)
}

func TestMergeAliasOverrides_CopiesIndependently(t *testing.T) {
	src := map[string]string{"logs": "custom-log-analyst"}

	got := mergeAliasOverrides(src)
	got["logs"] = "mutated"

	assert.Equal(t, "custom-log-analyst", src["logs"])
}
