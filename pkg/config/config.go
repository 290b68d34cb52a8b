package config

import "github.com/codeready-toolchain/assistants-engine/pkg/llmconfig"

// Config is the process-level configuration for one assistants-engine
// instance. It holds everything cmd/assistants-engine needs to build its
// collaborator graph; per-org/per-rule LLM profile resolution is owned by
// pkg/llmconfig, not duplicated here.
type Config struct {
	configDir string

	AssistantKey   string
	AssistantAlias string
	EntityID       string
	OrgID          string
	HTTPAddr       string

	AliasOverrides map[string]string

	Database     DatabaseConfig
	Messaging    ServiceEndpoint
	Integrations ServiceEndpoint
	Identity     IdentityConfig

	Coordinator CoordinatorSettings
	Routing     RoutingSettings

	RuleSetsDir string

	// OrgDefaults is the org-wide LLM overlay map, keyed by org id, applied
	// before any assistant- or rule-level ConfigRef during resolution.
	OrgDefaults map[string]llmconfig.OrgDefaults
}

// ConfigDir returns the configuration directory path used to load this
// Config.
func (c *Config) ConfigDir() string {
	return c.configDir
}
