// Package identity is a thin HTTP client for the out-of-scope Identity
// service: token introspection and the service-to-service credential this
// engine presents on every other outbound call (§6 Identity dependency).
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// IntrospectResult is Identity's normalized introspection envelope (§6).
type IntrospectResult struct {
	Active        bool     `json:"active"`
	Sub           string   `json:"sub"`
	Type          string   `json:"type"` // "user" or "agent"
	OrgID         string   `json:"orgId,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Entitlements  []string `json:"entitlements,omitempty"`
	IsSuperAdmin  bool     `json:"isSuperAdmin,omitempty"`
}

// Client talks to the Identity service's introspection and agent-token
// endpoints. It also doubles as the source of the engine's own bearer
// token (see TokenStore) since refreshing that token is itself an Identity
// call.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	serviceID       string
	agentCredential string
}

// NewClient builds an Identity client. agentCredential is this engine's own
// service credential, used to mint/refresh its outbound bearer token; it is
// always read from the environment by the caller, never hard-coded.
func NewClient(baseURL, serviceID, agentCredential string) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		baseURL:         baseURL,
		serviceID:       serviceID,
		agentCredential: agentCredential,
	}
}

// Introspect validates a caller-presented token (§6: "POST
// /api/auth/introspect {token}").
func (c *Client) Introspect(ctx context.Context, token string) (IntrospectResult, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return IntrospectResult{}, fmt.Errorf("marshal introspect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/introspect", bytes.NewReader(body))
	if err != nil {
		return IntrospectResult{}, fmt.Errorf("build introspect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Id", c.serviceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return IntrospectResult{}, fmt.Errorf("introspect call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return IntrospectResult{}, fmt.Errorf("identity introspect returned HTTP %d", resp.StatusCode)
	}

	var out IntrospectResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return IntrospectResult{}, fmt.Errorf("decode introspect response: %w", err)
	}
	return out, nil
}

// refreshResponse is the token-minting endpoint's response body.
type refreshResponse struct {
	Token string `json:"token"`
}

// refreshToken exchanges this engine's agent credential for a fresh bearer
// token, scoped to orgID.
func (c *Client) refreshToken(ctx context.Context, orgID string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"credential": c.agentCredential,
		"orgId":      orgID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Id", c.serviceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("identity token refresh returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("identity token refresh returned an empty token")
	}
	return out.Token, nil
}

// TokenSource is what the Messaging/Integrations clients depend on to
// attach an Authorization header — never the concrete identity.Client, to
// keep those packages' collaborator surface narrow.
type TokenSource interface {
	CurrentToken() string
}

// TokenStore holds this engine's current outbound bearer token behind an
// atomic pointer (copy-on-write, per §5's shared-resources model) and
// implements coordinator.CredentialRefresher: on a TokenAuthError, the
// coordinator calls Refresh exactly once before retrying the run.
type TokenStore struct {
	client  *Client
	current atomic.Pointer[string]
}

// NewTokenStore seeds the store with an initial token (may be empty; the
// first Refresh call will populate it).
func NewTokenStore(client *Client, initial string) *TokenStore {
	s := &TokenStore{client: client}
	s.current.Store(&initial)
	return s
}

// CurrentToken returns the last token Refresh installed.
func (s *TokenStore) CurrentToken() string {
	return *s.current.Load()
}

// Refresh implements coordinator.CredentialRefresher.
func (s *TokenStore) Refresh(ctx context.Context, orgID string) error {
	token, err := s.client.refreshToken(ctx, orgID)
	if err != nil {
		return err
	}
	s.current.Store(&token)
	return nil
}
