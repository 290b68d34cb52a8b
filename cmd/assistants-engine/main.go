// Command assistants-engine runs one Rule/Routing Engine process for a
// single assistant: it resolves rule sets, coordinates per-conversation
// runs, dispatches actions against Messaging/Integrations/Identity, and
// serves the HTTP ingress surface (health, debug, webhook fallback).
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/api"
	"github.com/codeready-toolchain/assistants-engine/pkg/config"
	"github.com/codeready-toolchain/assistants-engine/pkg/coordinator"
	"github.com/codeready-toolchain/assistants-engine/pkg/eventbus"
	"github.com/codeready-toolchain/assistants-engine/pkg/identity"
	"github.com/codeready-toolchain/assistants-engine/pkg/integrations"
	"github.com/codeready-toolchain/assistants-engine/pkg/llmconfig"
	"github.com/codeready-toolchain/assistants-engine/pkg/messaging"
	"github.com/codeready-toolchain/assistants-engine/pkg/router"
	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
	"github.com/codeready-toolchain/assistants-engine/pkg/store"
	"github.com/codeready-toolchain/assistants-engine/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

const defaultEmbeddingCacheSize = 1024

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	logger := slog.Default()
	logger.Info("starting", "version", version.Full())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	logger.Info("configuration initialized", "assistant_key", cfg.AssistantKey, "org_id", cfg.OrgID)

	dbClient, err := store.NewClient(ctx, store.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	logger.Info("connected to postgres, migrations applied")

	agentCredential := os.Getenv(cfg.Identity.AgentCredentialEnv)
	identityClient := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.ServiceID, agentCredential)
	tokenStore := identity.NewTokenStore(identityClient, "")
	if err := tokenStore.Refresh(ctx, cfg.OrgID); err != nil {
		logger.Warn("initial token refresh failed, will retry on first use", "error", err)
	}

	messagingClient := messaging.NewClient(cfg.Messaging.BaseURL, cfg.OrgID, cfg.Identity.ServiceID, tokenStore)
	integrationsClient := integrations.NewClient(cfg.Integrations.BaseURL, cfg.OrgID, cfg.Identity.ServiceID, tokenStore)
	catalogClient := integrations.NewCatalogClient(cfg.Integrations.BaseURL, cfg.OrgID, cfg.Identity.ServiceID, tokenStore)
	catalogCache := integrations.NewCatalogCache(catalogClient, cfg.Routing.CatalogRefresh, logger)
	if err := catalogCache.Start(ctx); err != nil {
		log.Fatalf("failed initial catalog fetch: %v", err)
	}
	defer catalogCache.Stop()

	breakerStore := store.NewCircuitBreakerStore(dbClient.Pool)
	breakers := coordinator.NewBreakerRegistry(breakerStore, logger)

	llmInvoker := breakerLLMInvoker{inner: integrationsClient, guard: breakerGuard{breakers, "integrations"}}
	embeddingCreator := breakerEmbeddingCreator{inner: integrationsClient, guard: breakerGuard{breakers, "integrations"}}
	integrationInvoker := breakerIntegrationInvoker{inner: integrationsClient, guard: breakerGuard{breakers, "integrations"}}
	messageSender := breakerMessageSender{inner: messagingClient, guard: breakerGuard{breakers, "messaging"}}
	joiner := breakerConversationJoiner{inner: messagingClient, guard: breakerGuard{breakers, "messaging"}}
	credentials := breakerCredentialRefresher{inner: tokenStore, guard: breakerGuard{breakers, "identity"}}

	meshClient := eventbus.NewMeshClient(dbClient.Pool)
	webhookClient := eventbus.NewWebhookClient(catalogCache)
	bus := eventbus.NewBus(meshClient, webhookClient, logger)

	aliasMap := router.NewAliasMap(cfg.AliasOverrides)
	rtr := router.New(
		router.Config{SimilarityThreshold: cfg.Routing.SimilarityThreshold},
		aliasMap, catalogCache, joiner, bus, embeddingCreator, nil, logger,
	)

	dispatcher, err := action.NewDefaultDispatcher(action.Collaborators{
		LLM:           llmInvoker,
		Embedding:     embeddingCreator,
		EmbeddingSize: defaultEmbeddingCacheSize,
		Messages:      messageSender,
		Router:        rtr,
		Integrations:  integrationInvoker,
	}, logger)
	if err != nil {
		log.Fatalf("failed to wire action dispatcher: %v", err)
	}

	ruleLoader := store.NewRuleLoader(dbClient.Pool)
	ruleStore := rules.NewStore(ruleLoader)
	if err := seedRuleSets(ctx, ruleLoader, cfg); err != nil {
		log.Fatalf("failed to seed rule sets: %v", err)
	}

	executor := rules.NewExecutor(dispatcher, logger)
	convStore := coordinator.NewPgConversationStore(dbClient.Pool)
	runLog := coordinator.NewPgRunLog(dbClient.Pool)

	orgDefaults := cfg.OrgDefaults
	resolveLLM := func(orgID string) llmconfig.ResolvedLLMConfig {
		var defaults *llmconfig.OrgDefaults
		if od, ok := orgDefaults[orgID]; ok {
			defaults = &od
		}
		resolved, err := llmconfig.Resolve(nil, defaults)
		if err != nil {
			logger.Warn("failed to resolve default LLM profile, using zero value", "org_id", orgID, "error", err)
			return llmconfig.ResolvedLLMConfig{}
		}
		return resolved
	}

	coord := coordinator.New(
		coordinator.Config{
			AssistantKey:   cfg.AssistantKey,
			AssistantAlias: cfg.AssistantAlias,
			MailboxDepth:   cfg.Coordinator.MailboxDepth,
			RunTimeout:     cfg.Coordinator.RunTimeout,
		},
		ruleStore, executor, convStore, runLog, credentials, resolveLLM, logger,
	)

	durableDedupe := store.NewDedupe(dbClient.Pool)
	ingress := &ingressAdapter{coordinator: coord, dedupe: durableDedupe, logger: logger}

	if err := meshClient.Subscribe(ctx, cfg.EntityID, ingress.handleMesh); err != nil {
		log.Fatalf("failed to subscribe to mesh inbox: %v", err)
	}

	meshDedupe := eventbus.NewDedupe()
	dbHealth := func(ctx context.Context) error {
		return dbClient.Pool.Ping(ctx)
	}
	server := api.NewServer(ruleStore, breakers, coord.ActiveMailboxes, ingress, meshDedupe, dbHealth, logger)

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during http server shutdown", "error", err)
	}
}

// seedRuleSets loads rule sets authored as YAML under
// cfg.ConfigDir()/cfg.RuleSetsDir and upserts each into the durable store,
// so a freshly provisioned assistant boots with its configured rules
// already resolvable.
func seedRuleSets(ctx context.Context, loader *store.RuleLoader, cfg *config.Config) error {
	dir := filepath.Join(cfg.ConfigDir(), cfg.RuleSetsDir)
	ruleSets, err := config.LoadRuleSets(dir)
	if err != nil {
		return err
	}

	for i := range ruleSets {
		rs := ruleSets[i]
		key := rules.DefaultCacheKey(rs.AssistantKey)
		if rs.OrgID != "" {
			key = rules.CacheKey(rs.AssistantKey, rs.OrgID)
		}
		if err := loader.Put(ctx, key, &rs); err != nil {
			return err
		}
	}
	return nil
}
