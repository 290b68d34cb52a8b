package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/assistants-engine/pkg/llmconfig"
	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

// AssistantsYAMLConfig is the raw shape of assistants.yaml, before defaults
// and env-expansion are resolved into Config.
type AssistantsYAMLConfig struct {
	AssistantKey   string                          `yaml:"assistant_key"`
	AssistantAlias string                          `yaml:"assistant_alias,omitempty"`
	EntityID       string                          `yaml:"entity_id"`
	OrgID          string                          `yaml:"org_id"`
	HTTPAddr       string                          `yaml:"http_addr,omitempty"`
	AliasOverrides map[string]string               `yaml:"assistant_aliases,omitempty"`
	Database       DatabaseConfig                  `yaml:"database"`
	Messaging      ServiceEndpoint                 `yaml:"messaging"`
	Integrations   ServiceEndpoint                 `yaml:"integrations"`
	Identity       IdentityConfig                  `yaml:"identity"`
	Coordinator    CoordinatorYAMLConfig           `yaml:"coordinator,omitempty"`
	Routing        RoutingYAMLConfig               `yaml:"routing,omitempty"`
	RuleSetsDir    string                          `yaml:"rulesets_dir,omitempty"`
	OrgDefaults    map[string]llmconfig.OrgDefaults `yaml:"org_defaults,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load assistants.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into AssistantsYAMLConfig
//  4. Apply built-in defaults and merge duration/tunable settings
//  5. Validate
//  6. Return Config ready for use
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized successfully",
		"assistant_key", cfg.AssistantKey,
		"org_id", cfg.OrgID)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	raw, err := loader.loadAssistantsYAML()
	if err != nil {
		return nil, NewLoadError("assistants.yaml", err)
	}

	coordinatorSettings, err := mergeCoordinatorSettings(raw.Coordinator)
	if err != nil {
		return nil, NewLoadError("assistants.yaml", err)
	}

	routingSettings, err := mergeRoutingSettings(raw.Routing)
	if err != nil {
		return nil, NewLoadError("assistants.yaml", err)
	}

	assistantAlias := raw.AssistantAlias
	if assistantAlias == "" {
		assistantAlias = defaultAssistantAlias
	}

	httpAddr := raw.HTTPAddr
	if httpAddr == "" {
		httpAddr = DefaultHTTPAddr
	}

	ruleSetsDir := raw.RuleSetsDir
	if ruleSetsDir == "" {
		ruleSetsDir = DefaultRuleSetsDir
	}

	database := raw.Database
	if database.MaxConns <= 0 {
		database.MaxConns = DefaultDBMaxConns
	}

	return &Config{
		configDir:      configDir,
		AssistantKey:   raw.AssistantKey,
		AssistantAlias: assistantAlias,
		EntityID:       raw.EntityID,
		OrgID:          raw.OrgID,
		HTTPAddr:       httpAddr,
		AliasOverrides: mergeAliasOverrides(raw.AliasOverrides),
		Database:       database,
		Messaging:      raw.Messaging,
		Integrations:   raw.Integrations,
		Identity:       raw.Identity,
		Coordinator:    coordinatorSettings,
		Routing:        routingSettings,
		RuleSetsDir:    ruleSetsDir,
		OrgDefaults:    raw.OrgDefaults,
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadAssistantsYAML() (*AssistantsYAMLConfig, error) {
	var cfg AssistantsYAMLConfig
	if err := l.loadYAML("assistants.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRuleSets reads every *.yaml and *.yml file in dir, in file-name order,
// into a rules.RuleSet, for cmd/assistants-engine to seed into Postgres at
// startup. A missing dir yields no rule sets and no error. Each file holds
// exactly one rule set; file names are not otherwise meaningful.
func LoadRuleSets(dir string) ([]rules.RuleSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading rulesets dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	result := make([]rules.RuleSet, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading ruleset %s: %w", path, err)
		}
		data = ExpandEnv(data)

		var rs rules.RuleSet
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("%w: ruleset %s: %v", ErrInvalidYAML, path, err)
		}
		result = append(result, rs)
	}

	return result, nil
}
