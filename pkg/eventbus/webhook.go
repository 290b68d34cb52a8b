package eventbus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookResolver maps a target entity id to its assistant's webhook URL
// (§4.6: "fall back to direct HTTP webhooks to each assistant's webhook
// URL"). Missing entries mean the target has no webhook fallback
// configured.
type WebhookResolver interface {
	WebhookURL(targetEntityID string) (string, bool)
}

// WebhookClient is the at-most-once-per-run compatibility shim used only
// when the mesh publish returns an error. Each target is
// independent: one target's timeout never blocks another (§4.5 Failure
// semantics: "Webhook fallback timeout: per-target independent; other
// targets are still attempted").
type WebhookClient struct {
	httpClient *http.Client
	resolver   WebhookResolver
	timeout    time.Duration
}

// NewWebhookClient builds a WebhookClient with the default 5s per-call
// timeout.
func NewWebhookClient(resolver WebhookResolver) *WebhookClient {
	return &WebhookClient{
		httpClient: &http.Client{Timeout: defaultWebhookTimeout},
		resolver:   resolver,
		timeout:    defaultWebhookTimeout,
	}
}

// Emit posts env to targetEntityID's webhook URL. Returns an error if no
// webhook is configured for the target, or on a non-2xx response / I/O
// failure.
func (c *WebhookClient) Emit(ctx context.Context, targetEntityID string, env Envelope) error {
	url, ok := c.resolver.WebhookURL(targetEntityID)
	if !ok {
		return fmt.Errorf("no webhook configured for target %q", targetEntityID)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding webhook envelope: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request to %q failed: %w", targetEntityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook to %q returned status %d", targetEntityID, resp.StatusCode)
	}
	return nil
}
