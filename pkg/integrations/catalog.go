package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/codeready-toolchain/assistants-engine/pkg/identity"
	"github.com/codeready-toolchain/assistants-engine/pkg/router"
)

// CatalogEntry is one assistant's catalog record, as fetched from the
// out-of-scope Catalog service.
type CatalogEntry struct {
	Key         string    `json:"key"`
	EntityID    string    `json:"entityId"`
	Description string    `json:"description"`
	Embedding   []float64 `json:"embedding,omitempty"`
	WebhookURL  string    `json:"webhookUrl,omitempty"`
}

// CatalogClient fetches the full assistant catalog over HTTP.
type CatalogClient struct {
	httpClient *http.Client
	baseURL    string
	orgID      string
	serviceID  string
	tokens     identity.TokenSource
}

// NewCatalogClient builds a Catalog HTTP client.
func NewCatalogClient(baseURL, orgID, serviceID string, tokens identity.TokenSource) *CatalogClient {
	return &CatalogClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		orgID:      orgID,
		serviceID:  serviceID,
		tokens:     tokens,
	}
}

// FetchAll retrieves every assistant catalog entry visible to this org.
func (c *CatalogClient) FetchAll(ctx context.Context) ([]CatalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/assistants", nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("X-Org-Id", c.orgID)
	req.Header.Set("X-Service-Id", c.serviceID)
	if token := c.tokens.CurrentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned HTTP %d", resp.StatusCode)
	}

	var entries []CatalogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	return entries, nil
}

// CatalogCache is a read-mostly, copy-on-write in-memory mirror of the
// Catalog service's assistant entries (Design Note: "in-process mutable
// registries... wrap in a copy-on-write holder with atomic pointer swap;
// background reloads never block the hot path"). It implements both
// router.Catalog (live lookups during routing) and eventbus.WebhookResolver
// (synchronous, no round-trip, for the webhook fallback path).
type CatalogCache struct {
	source   *CatalogClient
	interval time.Duration
	logger   *slog.Logger

	entries atomic.Pointer[map[string]CatalogEntry]

	stopCh chan struct{}
}

// NewCatalogCache builds a cache backed by source, refreshed every
// interval once Start is called.
func NewCatalogCache(source *CatalogClient, interval time.Duration, logger *slog.Logger) *CatalogCache {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &CatalogCache{source: source, interval: interval, logger: logger.With("component", "catalog-cache"), stopCh: make(chan struct{})}
	empty := map[string]CatalogEntry{}
	c.entries.Store(&empty)
	return c
}

// Start performs an initial synchronous fetch, then refreshes on interval
// in the background until ctx is cancelled.
func (c *CatalogCache) Start(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("initial catalog fetch: %w", err)
	}
	go c.refreshLoop(ctx)
	return nil
}

// Stop halts the background refresh loop.
func (c *CatalogCache) Stop() {
	close(c.stopCh)
}

func (c *CatalogCache) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.refresh(ctx); err != nil {
				c.logger.Warn("catalog refresh failed, keeping prior snapshot", "error", err)
			}
		}
	}
}

func (c *CatalogCache) refresh(ctx context.Context) error {
	entries, err := c.source.FetchAll(ctx)
	if err != nil {
		return err
	}
	byKey := make(map[string]CatalogEntry, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}
	c.entries.Store(&byKey)
	return nil
}

// Lookup implements router.Catalog.
func (c *CatalogCache) Lookup(ctx context.Context, key string) (*router.AssistantDescription, bool, error) {
	snapshot := *c.entries.Load()
	entry, ok := snapshot[key]
	if !ok {
		return nil, false, nil
	}
	desc := toDescription(entry)
	return &desc, true, nil
}

// Candidates implements router.Catalog.
func (c *CatalogCache) Candidates(ctx context.Context) ([]router.AssistantDescription, error) {
	snapshot := *c.entries.Load()
	out := make([]router.AssistantDescription, 0, len(snapshot))
	for _, e := range snapshot {
		out = append(out, toDescription(e))
	}
	return out, nil
}

// WebhookURL implements eventbus.WebhookResolver.
func (c *CatalogCache) WebhookURL(targetEntityID string) (string, bool) {
	snapshot := *c.entries.Load()
	for _, e := range snapshot {
		if e.EntityID == targetEntityID && e.WebhookURL != "" {
			return e.WebhookURL, true
		}
	}
	return "", false
}

func toDescription(e CatalogEntry) router.AssistantDescription {
	return router.AssistantDescription{
		Key:         e.Key,
		EntityID:    e.EntityID,
		Description: e.Description,
		Embedding:   e.Embedding,
	}
}
