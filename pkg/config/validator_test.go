package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		AssistantKey: "log-analyst",
		EntityID:     "assistant:log-analyst",
		OrgID:        "org-1",
		Database:     DatabaseConfig{Host: "localhost", Database: "assistants", MaxConns: 5},
		Messaging:    ServiceEndpoint{BaseURL: "http://messaging.internal"},
		Integrations: ServiceEndpoint{BaseURL: "http://integrations.internal"},
		Identity:     IdentityConfig{BaseURL: "http://identity.internal", ServiceID: "svc-1"},
		Coordinator:  CoordinatorSettings{MailboxDepth: DefaultMailboxDepth, RunTimeout: DefaultRunTimeout},
		Routing:      RoutingSettings{SimilarityThreshold: 0.8, CatalogRefresh: DefaultCatalogRefresh},
	}
}

func TestValidateAll_AcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, NewValidator(validConfig()).ValidateAll())
}

func TestValidateAll_RejectsMissingAssistantKey(t *testing.T) {
	cfg := validConfig()
	cfg.AssistantKey = ""

	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidateAll_RejectsMissingServiceEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Messaging.BaseURL = ""

	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidateAll_RejectsZeroRunTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Coordinator.RunTimeout = 0

	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidateAll_RejectsOutOfRangeSimilarityThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Routing.SimilarityThreshold = 1.5

	assert.Error(t, NewValidator(cfg).ValidateAll())
}
