package config

import "time"

// Shared types used across configuration structs.

// DatabaseConfig carries Postgres connection settings, mirroring
// store.Config's fields so assistants.yaml can populate it directly.
// Kept as a distinct type rather than an import of pkg/store so pkg/config
// has no compile-time dependency in that direction; cmd/assistants-engine
// copies the fields across when constructing store.Config.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
	MaxConns int32  `yaml:"max_conns,omitempty"`
}

// ServiceEndpoint is the base URL of one out-of-scope HTTP collaborator
// (Messaging or Integrations).
type ServiceEndpoint struct {
	BaseURL string `yaml:"base_url"`
}

// IdentityConfig carries this process's own service identity for
// outbound auth: the serviceId and agent credential that Identity's
// token endpoint exchanges for a bearer token (§6 propagated headers).
type IdentityConfig struct {
	BaseURL             string `yaml:"base_url"`
	ServiceID           string `yaml:"service_id"`
	AgentCredentialEnv  string `yaml:"agent_credential_env"`
	TokenRefreshBeforeS int    `yaml:"token_refresh_before_seconds,omitempty"`
}

// CoordinatorYAMLConfig is the raw YAML shape for the Run Coordinator's
// tunables; RunTimeout is read as a duration string (yaml.v3 has no
// built-in time.Duration support) and parsed during load.
type CoordinatorYAMLConfig struct {
	MailboxDepth int    `yaml:"mailbox_depth,omitempty"`
	RunTimeout   string `yaml:"run_timeout,omitempty"`
}

// RoutingYAMLConfig is the raw YAML shape for the Semantic Router's
// tunables (§5).
type RoutingYAMLConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`
	CatalogRefresh      string  `yaml:"catalog_refresh_interval,omitempty"`
}

// CoordinatorSettings is the resolved (duration-parsed) form of
// CoordinatorYAMLConfig.
type CoordinatorSettings struct {
	MailboxDepth int
	RunTimeout   time.Duration
}

// RoutingSettings is the resolved form of RoutingYAMLConfig.
type RoutingSettings struct {
	SimilarityThreshold float64
	CatalogRefresh      time.Duration
}
