package main

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/coordinator"
)

// errCircuitOpen is returned in place of the wrapped collaborator's own
// error when its breaker is open, so callers never block on a target
// already known to be failing.
var errCircuitOpen = errors.New("assistants-engine: circuit breaker open")

// breakerGuard runs fn through target's circuit breaker: short-circuits
// when open, records the outcome, and persists the updated snapshot
// (coordinator.BreakerRegistry's Get/Persist pair) so a process restart
// doesn't silently reopen a broken circuit.
type breakerGuard struct {
	registry *coordinator.BreakerRegistry
	target   string
}

func (g breakerGuard) run(ctx context.Context, fn func() error) error {
	breaker := g.registry.Get(ctx, g.target)
	if !breaker.Allow() {
		return errCircuitOpen
	}
	err := fn()
	if err != nil {
		breaker.RecordFailure()
	} else {
		breaker.RecordSuccess()
	}
	g.registry.Persist(ctx, g.target)
	return err
}

// breakerLLMInvoker wraps an action.LLMInvoker with a circuit breaker.
type breakerLLMInvoker struct {
	inner action.LLMInvoker
	guard breakerGuard
}

func (w breakerLLMInvoker) Invoke(ctx context.Context, req action.LLMRequest) (action.LLMResponse, error) {
	var resp action.LLMResponse
	err := w.guard.run(ctx, func() error {
		var invokeErr error
		resp, invokeErr = w.inner.Invoke(ctx, req)
		return invokeErr
	})
	return resp, err
}

// breakerEmbeddingCreator wraps an action.EmbeddingCreator with a circuit
// breaker.
type breakerEmbeddingCreator struct {
	inner action.EmbeddingCreator
	guard breakerGuard
}

func (w breakerEmbeddingCreator) CreateEmbeddings(ctx context.Context, req action.EmbeddingRequest) (action.EmbeddingResponse, error) {
	var resp action.EmbeddingResponse
	err := w.guard.run(ctx, func() error {
		var createErr error
		resp, createErr = w.inner.CreateEmbeddings(ctx, req)
		return createErr
	})
	return resp, err
}

// breakerIntegrationInvoker wraps an action.IntegrationInvoker with a
// circuit breaker.
type breakerIntegrationInvoker struct {
	inner action.IntegrationInvoker
	guard breakerGuard
}

func (w breakerIntegrationInvoker) InvokeIntegration(ctx context.Context, namespace string, params map[string]interface{}, timeout time.Duration) (map[string]interface{}, error) {
	var resp map[string]interface{}
	err := w.guard.run(ctx, func() error {
		var invokeErr error
		resp, invokeErr = w.inner.InvokeIntegration(ctx, namespace, params, timeout)
		return invokeErr
	})
	return resp, err
}

// breakerMessageSender wraps an action.MessageSender with a circuit
// breaker.
type breakerMessageSender struct {
	inner action.MessageSender
	guard breakerGuard
}

func (w breakerMessageSender) SendMessage(ctx context.Context, conversationID string, msg action.OutboundMessage) error {
	return w.guard.run(ctx, func() error {
		return w.inner.SendMessage(ctx, conversationID, msg)
	})
}

// conversationJoiner is the narrow interface router.ConversationJoiner
// names; defined here (rather than importing pkg/router just for the
// type) to keep the wrapper symmetric with the others in this file.
type conversationJoiner interface {
	JoinConversation(ctx context.Context, conversationID, asUserID string) error
}

// breakerConversationJoiner wraps a conversationJoiner with a circuit
// breaker.
type breakerConversationJoiner struct {
	inner conversationJoiner
	guard breakerGuard
}

func (w breakerConversationJoiner) JoinConversation(ctx context.Context, conversationID, asUserID string) error {
	return w.guard.run(ctx, func() error {
		return w.inner.JoinConversation(ctx, conversationID, asUserID)
	})
}

// credentialRefresher is coordinator.CredentialRefresher's shape.
type credentialRefresher interface {
	Refresh(ctx context.Context, orgID string) error
}

// breakerCredentialRefresher wraps a credentialRefresher with a circuit
// breaker for the Identity target.
type breakerCredentialRefresher struct {
	inner credentialRefresher
	guard breakerGuard
}

func (w breakerCredentialRefresher) Refresh(ctx context.Context, orgID string) error {
	return w.guard.run(ctx, func() error {
		return w.inner.Refresh(ctx, orgID)
	})
}
