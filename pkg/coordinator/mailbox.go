package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/assistants-engine/pkg/rules"
)

// mailboxTask is one unit of work queued for a conversation's single
// consumer: process evt and report the outcome on done.
type mailboxTask struct {
	ctx  context.Context
	evt  IngressEvent
	done chan mailboxResult
}

type mailboxResult struct {
	run rules.RunResult
	err error
}

// mailbox is the per-conversation serialization primitive (§5: "a
// per-conversation mailbox (mutex or single-consumer queue keyed by
// conversationId)"). Exactly one goroutine ever calls process, so writes to
// (conversationState, contextMap) for this conversation never interleave.
// A mailbox lives for as long as its conversationId is tracked by the
// owning Coordinator; Coordinator.Evict stops it explicitly (e.g. once a conversation is
// archived) rather than on an idle timer, so there is no race between a
// self-terminating consumer and a concurrent enqueue.
type mailbox struct {
	tasks   chan mailboxTask
	process func(context.Context, IngressEvent) (rules.RunResult, error)
	logger  *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

func newMailbox(depth int, process func(context.Context, IngressEvent) (rules.RunResult, error), logger *slog.Logger) *mailbox {
	if depth <= 0 {
		depth = 256
	}
	m := &mailbox{
		tasks:   make(chan mailboxTask, depth),
		process: process,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go m.run()
	return m
}

// enqueue submits evt for processing and blocks until its result is ready
// or ctx is cancelled. It returns ErrOverloaded immediately if the mailbox
// is at capacity — it never blocks waiting for queue space.
func (m *mailbox) enqueue(ctx context.Context, evt IngressEvent) (rules.RunResult, error) {
	done := make(chan mailboxResult, 1)
	select {
	case m.tasks <- mailboxTask{ctx: ctx, evt: evt, done: done}:
	default:
		return rules.RunResult{}, ErrOverloaded
	}

	select {
	case res := <-done:
		return res.run, res.err
	case <-ctx.Done():
		return rules.RunResult{}, ctx.Err()
	}
}

// run is the single consumer loop: it drains tasks strictly in arrival
// order (§5 ordering guarantee: "events observed by this assistant are
// processed in arrival order") until stop is signalled, at which point it
// finishes the task already in flight (there is none, since stop only
// follows enqueue completing) and returns.
func (m *mailbox) run() {
	defer close(m.doneCh)
	for {
		select {
		case <-m.stopCh:
			return
		case task := <-m.tasks:
			run, err := m.process(task.ctx, task.evt)
			task.done <- mailboxResult{run: run, err: err}
		}
	}
}

// stop signals the consumer to exit and waits for it to do so. Safe to
// call multiple times.
func (m *mailbox) stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}
