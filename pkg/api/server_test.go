package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/assistants-engine/pkg/coordinator"
	"github.com/codeready-toolchain/assistants-engine/pkg/eventbus"
	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

type fakeDedupe struct {
	seen map[string]bool
}

func newFakeDedupe() *fakeDedupe { return &fakeDedupe{seen: map[string]bool{}} }

func (d *fakeDedupe) SeenBefore(messageID string) bool {
	if d.seen[messageID] {
		return true
	}
	d.seen[messageID] = true
	return false
}

type fakeDispatcher struct {
	calls   int
	lastEnv eventbus.Envelope
	err     error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, entityID string, env eventbus.Envelope) error {
	d.calls++
	d.lastEnv = env
	return d.err
}

func TestHealthHandler_ReportsHealthyWithNoCollaborators(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusHealthy, resp.Status)
}

func TestHealthHandler_ReportsDegradedOnOpenBreaker(t *testing.T) {
	breakers := coordinator.NewBreakerRegistry(nil, nil)
	breaker := breakers.Get(context.Background(), "messaging")
	for i := 0; i < 5; i++ {
		breaker.RecordFailure()
	}
	s := NewServer(nil, breakers, nil, nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	s.engine.ServeHTTP(rec, req)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusDegraded, resp.Status)
	assert.Equal(t, "open", resp.CircuitBreakers["messaging"])
}

func TestDebugRuleSetHandler_UncachedKeyReturnsNotFound(t *testing.T) {
	store := rules.NewStore(noopLoader{})
	s := NewServer(store, nil, nil, nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/ruleset/log-analyst:default", nil)

	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp RuleSetInspectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Found)
}

type noopLoader struct{}

func (noopLoader) Load(ctx context.Context, key string) (*rules.RuleSet, error) { return nil, nil }

func TestWebhookHandler_DispatchesNewMessage(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	s := NewServer(nil, nil, nil, dispatcher, newFakeDedupe(), nil, nil)

	env := eventbus.Envelope{Event: "message.new", ConversationID: "conv-1", Message: map[string]interface{}{"id": "m-1"}}
	body, err := json.Marshal(env)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/assistant:log-analyst", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, "conv-1", dispatcher.lastEnv.ConversationID)
}

func TestWebhookHandler_DuplicateMessageSkipsDispatch(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	dedupe := newFakeDedupe()
	s := NewServer(nil, nil, nil, dispatcher, dedupe, nil, nil)

	env := eventbus.Envelope{Event: "message.new", ConversationID: "conv-1", Message: map[string]interface{}{"id": "m-1"}}
	body, err := json.Marshal(env)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/assistant:log-analyst", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		s.engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1, dispatcher.calls)
}

func TestWebhookHandler_DispatcherErrorReturns500(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("coordinator unavailable")}
	s := NewServer(nil, nil, nil, dispatcher, newFakeDedupe(), nil, nil)

	env := eventbus.Envelope{Event: "message.new", ConversationID: "conv-1", Message: map[string]interface{}{"id": "m-2"}}
	body, err := json.Marshal(env)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/assistant:log-analyst", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookHandler_NoDispatcherConfiguredReturns503(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/assistant:log-analyst", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
