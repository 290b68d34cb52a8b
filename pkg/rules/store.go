package rules

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Loader fetches one rule set by its exact cache key ("<assistant-key>:<org-id>"
// or "<assistant-key>:default") from durable storage. Load returns
// (nil, nil) when no rule set exists for that key — not an error, the
// fallback lookup continues.
type Loader interface {
	Load(ctx context.Context, key string) (*RuleSet, error)
}

// CacheKey builds the storage/cache key for an assistant+org pair.
func CacheKey(assistantKey, orgID string) string {
	return fmt.Sprintf("%s:%s", assistantKey, orgID)
}

// DefaultCacheKey builds the fallback key used when no org-specific rule
// set exists.
func DefaultCacheKey(assistantKey string) string {
	return fmt.Sprintf("%s:default", assistantKey)
}

// Store is the copy-on-write rule-set cache sitting in front of Loader
// (Design Note: "in-process mutable registries... atomic.Pointer CAS loop;
// background reloads never block the hot path" — the same shape as
// action.Registry). Resolve never
// blocks on a lock; only a cache miss pays the Loader round trip.
type Store struct {
	loader Loader
	cache  atomic.Pointer[map[string]*RuleSet]
}

// NewStore builds a Store over loader with an empty cache.
func NewStore(loader Loader) *Store {
	s := &Store{loader: loader}
	empty := make(map[string]*RuleSet)
	s.cache.Store(&empty)
	return s
}

// Resolve implements the Run Coordinator's rule set lookup (§4.5): try
// "<assistant-key>:<org-id>" first, then "<assistant-key>:default". Returns
// (nil, nil) if neither exists.
func (s *Store) Resolve(ctx context.Context, assistantKey, orgID string) (*RuleSet, error) {
	key := CacheKey(assistantKey, orgID)
	if rs, ok := s.get(key); ok {
		return rs, nil
	}
	rs, err := s.loader.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rs != nil {
		s.put(key, rs)
		return rs, nil
	}

	fallbackKey := DefaultCacheKey(assistantKey)
	if rs, ok := s.get(fallbackKey); ok {
		return rs, nil
	}
	rs, err = s.loader.Load(ctx, fallbackKey)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, nil
	}
	s.put(fallbackKey, rs)
	return rs, nil
}

// Invalidate drops a cached entry — call after a rule set edit so the next
// Resolve re-fetches the new version from the Loader.
func (s *Store) Invalidate(assistantKey, orgID string) {
	s.delete(CacheKey(assistantKey, orgID))
}

// InvalidateDefault drops the cached "<assistant-key>:default" entry.
func (s *Store) InvalidateDefault(assistantKey string) {
	s.delete(DefaultCacheKey(assistantKey))
}

// Inspect returns the currently cached rule set for key, for the debug
// ingress endpoint. The second return value is false on a cache miss; it
// never triggers a Loader round trip.
func (s *Store) Inspect(key string) (*RuleSet, bool) {
	return s.get(key)
}

func (s *Store) get(key string) (*RuleSet, bool) {
	snapshot := s.cache.Load()
	if snapshot == nil {
		return nil, false
	}
	rs, ok := (*snapshot)[key]
	return rs, ok
}

func (s *Store) put(key string, rs *RuleSet) {
	for {
		old := s.cache.Load()
		next := make(map[string]*RuleSet, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[key] = rs
		if s.cache.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (s *Store) delete(key string) {
	for {
		old := s.cache.Load()
		if _, ok := (*old)[key]; !ok {
			return
		}
		next := make(map[string]*RuleSet, len(*old))
		for k, v := range *old {
			if k != key {
				next[k] = v
			}
		}
		if s.cache.CompareAndSwap(old, &next) {
			return
		}
	}
}
