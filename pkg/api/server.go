// Package api is the thin HTTP ingress surface: a health endpoint, a
// debug rule-set inspection endpoint, and the webhook-fallback ingress
// for the mesh (§4.6, §9's "webhook fallback is a compatibility shim").
// Everything else about the full platform's HTTP front-end is an
// out-of-scope collaborator.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/assistants-engine/pkg/coordinator"
	"github.com/codeready-toolchain/assistants-engine/pkg/eventbus"
	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

// IngressDispatcher processes one inbound envelope for a locally hosted
// assistant entity id. Implemented by a thin adapter over
// coordinator.Coordinator (see cmd/assistants-engine).
type IngressDispatcher interface {
	Dispatch(ctx context.Context, entityID string, env eventbus.Envelope) error
}

// Server is the HTTP ingress surface. Construct with NewServer, register
// routes are set up automatically.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger

	ruleStore  *rules.Store
	breakers   *coordinator.BreakerRegistry
	targets    []string
	occupancy  func() int
	dispatcher IngressDispatcher
	dedupe     Dedupe
	dbHealth   func(ctx context.Context) error
}

// wellKnownBreakerTargets are the outbound collaborators §5's shared
// resources names a circuit breaker for. Assistant-specific webhook
// targets are not listed here — they're created lazily and would clutter
// the health response; this list is the "always present" set.
var wellKnownBreakerTargets = []string{"messaging", "integrations", "identity"}

// Dedupe is the narrow collaborator interface the webhook handler uses to
// reject already-processed messages (invariant 8, the at-least-once/
// idempotent-by-message.id contract in §6). Satisfied by eventbus.Dedupe,
// the same in-memory LRU the mesh path checks; the durable
// store.Dedupe ledger is consulted further downstream, in the dispatcher
// adapter that turns an Envelope into a coordinator.IngressEvent.
type Dedupe interface {
	SeenBefore(messageID string) bool
}

// NewServer builds a Server. dbHealth may be nil to skip the DB check
// (e.g. in tests); dispatcher and dedupe are required for the webhook
// route to do anything useful, but a nil dispatcher only degrades that
// one route to a 503, not the whole server.
func NewServer(ruleStore *rules.Store, breakers *coordinator.BreakerRegistry, occupancy func() int, dispatcher IngressDispatcher, dedupe Dedupe, dbHealth func(ctx context.Context) error, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:     gin.New(),
		logger:     logger.With("component", "api"),
		ruleStore:  ruleStore,
		breakers:   breakers,
		targets:    wellKnownBreakerTargets,
		occupancy:  occupancy,
		dispatcher: dispatcher,
		dedupe:     dedupe,
		dbHealth:   dbHealth,
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/debug/ruleset/:key", s.debugRuleSetHandler)
	s.engine.POST("/webhooks/:entityId", s.webhookHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by tests serving on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
