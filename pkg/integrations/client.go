// Package integrations is a thin HTTP client for the out-of-scope
// Integrations service: the normalized llm.invoke / embedding.create
// contract and the dotted-namespace integration.invoke proxy (§6
// Integrations HTTP surface consumed).
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/action"
	"github.com/codeready-toolchain/assistants-engine/pkg/identity"
)

// Client implements action.LLMInvoker, action.EmbeddingCreator, and
// action.IntegrationInvoker against the Integrations service's REST
// surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	orgID      string
	serviceID  string
	tokens     identity.TokenSource
}

// NewClient builds an Integrations client scoped to one org.
func NewClient(baseURL, orgID, serviceID string, tokens identity.TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		orgID:      orgID,
		serviceID:  serviceID,
		tokens:     tokens,
	}
}

func (c *Client) newRequest(ctx context.Context, path string, traceID string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-Id", c.orgID)
	req.Header.Set("X-Service-Id", c.serviceID)
	if token := c.tokens.CurrentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}
	return req, nil
}

// llmInvokeBody is the wire shape for POST /api/invoke (§6).
type llmInvokeBody struct {
	Provider  string                 `json:"provider"`
	Model     string                 `json:"model"`
	Operation string                 `json:"operation"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Timeout   int64                  `json:"timeout,omitempty"`
}

// tokenAuthStatusCode is the status the Integrations service returns when
// the caller's bearer token has expired or was revoked (§4.3: "If the
// first attempt fails because the caller's token is expired/invalid, it
// raises a distinguished TokenAuthError").
const tokenAuthStatusCode = http.StatusUnauthorized

// Invoke implements action.LLMInvoker: "llm.invoke: POST /api/invoke with
// {provider, model, operation, params, timeout}; returns normalized
// {provider, model, content, usage, finishReason, metadata}" (§6).
func (c *Client) Invoke(ctx context.Context, req action.LLMRequest) (action.LLMResponse, error) {
	httpReq, err := c.newRequest(ctx, "/api/invoke", "", llmInvokeBody{
		Provider:  req.Provider,
		Model:     req.Model,
		Operation: req.Operation,
		Params:    req.Params,
		Timeout:   req.Timeout.Milliseconds(),
	})
	if err != nil {
		return action.LLMResponse{}, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return action.LLMResponse{}, &action.NetworkError{ActionType: "llm.invoke", Cause: fmt.Errorf("llm.invoke call: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == tokenAuthStatusCode {
		return action.LLMResponse{}, &action.TokenAuthError{ActionType: "llm.invoke", Cause: fmt.Errorf("integrations rejected the caller's token")}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(resp.Body)
		return action.LLMResponse{}, &action.NetworkError{ActionType: "llm.invoke", Cause: fmt.Errorf("llm.invoke returned HTTP %d: %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return action.LLMResponse{}, fmt.Errorf("llm.invoke returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var out action.LLMResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return action.LLMResponse{}, fmt.Errorf("decode llm.invoke response: %w", err)
	}
	return out, nil
}

// embeddingCreateBody is the wire shape for the embedding.create call.
type embeddingCreateBody struct {
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Texts    []string `json:"texts"`
}

// CreateEmbeddings implements action.EmbeddingCreator: "embedding.create:
// returns {provider, model, embeddings:[[float]], usage, metadata}" (§6).
func (c *Client) CreateEmbeddings(ctx context.Context, req action.EmbeddingRequest) (action.EmbeddingResponse, error) {
	httpReq, err := c.newRequest(ctx, "/api/embeddings", "", embeddingCreateBody{
		Provider: req.Provider,
		Model:    req.Model,
		Texts:    req.Texts,
	})
	if err != nil {
		return action.EmbeddingResponse{}, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return action.EmbeddingResponse{}, &action.NetworkError{ActionType: "embedding.create", Cause: fmt.Errorf("embedding.create call: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == tokenAuthStatusCode {
		return action.EmbeddingResponse{}, &action.TokenAuthError{ActionType: "embedding.create", Cause: fmt.Errorf("integrations rejected the caller's token")}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(resp.Body)
		return action.EmbeddingResponse{}, &action.NetworkError{ActionType: "embedding.create", Cause: fmt.Errorf("embedding.create returned HTTP %d: %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return action.EmbeddingResponse{}, fmt.Errorf("embedding.create returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var out action.EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return action.EmbeddingResponse{}, fmt.Errorf("decode embedding.create response: %w", err)
	}
	return out, nil
}

// integrationInvokeBody is the wire shape for a dotted-namespace
// integration.invoke call (e.g. "openai.chat.completions").
type integrationInvokeBody struct {
	Namespace string                 `json:"namespace"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Timeout   int64                  `json:"timeout,omitempty"`
}

// InvokeIntegration implements action.IntegrationInvoker.
func (c *Client) InvokeIntegration(ctx context.Context, namespace string, params map[string]interface{}, timeout time.Duration) (map[string]interface{}, error) {
	httpReq, err := c.newRequest(ctx, "/api/integrations/invoke", "", integrationInvokeBody{
		Namespace: namespace,
		Params:    params,
		Timeout:   timeout.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &action.NetworkError{ActionType: "integration.invoke", Cause: fmt.Errorf("integration.invoke call to %s: %w", namespace, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == tokenAuthStatusCode {
		return nil, &action.TokenAuthError{ActionType: "integration.invoke", Cause: fmt.Errorf("integrations rejected the caller's token")}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(resp.Body)
		return nil, &action.NetworkError{ActionType: "integration.invoke", Cause: fmt.Errorf("integration.invoke %s returned HTTP %d: %s", namespace, resp.StatusCode, string(body))}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("integration.invoke %s returned HTTP %d: %s", namespace, resp.StatusCode, string(body))
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode integration.invoke response: %w", err)
	}
	return out, nil
}
