package action

import "sync/atomic"

// Registry maps an action Type to its Handler. It is copy-on-write
// (Design Note: "in-process mutable registries... wrap in a copy-on-write
// holder with atomic pointer swap; background reloads never block the hot
// path") so the hot dispatch path never takes a lock.
type Registry struct {
	handlers atomic.Pointer[map[Type]Handler]
}

// NewRegistry builds a Registry from an initial set of handlers.
func NewRegistry(initial map[Type]Handler) *Registry {
	r := &Registry{}
	snapshot := make(map[Type]Handler, len(initial))
	for k, v := range initial {
		snapshot[k] = v
	}
	r.handlers.Store(&snapshot)
	return r
}

// Register adds or replaces a handler, atomically swapping in a new
// snapshot. Safe to call concurrently with Lookup.
func (r *Registry) Register(actionType Type, h Handler) {
	for {
		old := r.handlers.Load()
		next := make(map[Type]Handler, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[actionType] = h
		if r.handlers.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Lookup returns the handler for actionType, or (nil, false) if unknown.
func (r *Registry) Lookup(actionType Type) (Handler, bool) {
	snapshot := r.handlers.Load()
	if snapshot == nil {
		return nil, false
	}
	h, ok := (*snapshot)[actionType]
	return h, ok
}
