package eventbus

import lru "github.com/hashicorp/golang-lru"

const defaultDedupeSize = 8192

// Dedupe is the inbound idempotency ledger keyed by message.id (invariant
// 8: "duplicates observed by a subscriber with the same message.id are
// no-ops"). It is an in-memory LRU rather than a persisted set — a
// process restart may reprocess a message already seen by the previous
// instance, which is acceptable under the at-least-once contract since
// downstream handlers are themselves expected to be idempotent by id.
type Dedupe struct {
	seen *lru.Cache
}

// NewDedupe builds a Dedupe with the default 8192-entry window.
func NewDedupe() *Dedupe {
	cache, _ := lru.New(defaultDedupeSize) // New only errors on size <= 0
	return &Dedupe{seen: cache}
}

// SeenBefore reports whether messageID was already observed, and records
// it as seen either way. The first call for a given id returns false.
func (d *Dedupe) SeenBefore(messageID string) bool {
	if messageID == "" {
		return false
	}
	_, existed := d.seen.Get(messageID)
	d.seen.Add(messageID, struct{}{})
	return existed
}
