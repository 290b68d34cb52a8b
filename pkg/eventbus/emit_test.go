package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeEmitter struct {
	err   error
	calls []string
}

func (f *fakeEmitter) Emit(ctx context.Context, targetEntityID string, env Envelope) error {
	f.calls = append(f.calls, targetEntityID)
	return f.err
}

func TestBus_FallsBackToWebhookOnMeshFailure(t *testing.T) {
	mesh := &fakeEmitter{err: errors.New("no subscriber")}
	webhook := &fakeEmitter{}
	bus := NewBus(mesh, webhook, slog.Default())

	bus.Emit(context.Background(), "assistant:log-analyst", Envelope{Event: "message.new", EffectiveAt: time.Now()})

	assert.Len(t, mesh.calls, 1)
	assert.Len(t, webhook.calls, 1)
}

func TestBus_SkipsWebhookOnMeshSuccess(t *testing.T) {
	mesh := &fakeEmitter{}
	webhook := &fakeEmitter{}
	bus := NewBus(mesh, webhook, slog.Default())

	bus.Emit(context.Background(), "assistant:log-analyst", Envelope{Event: "message.new", EffectiveAt: time.Now()})

	assert.Len(t, mesh.calls, 1)
	assert.Empty(t, webhook.calls)
}

func TestBus_NoPanicWhenBothPathsMissingOrFail(t *testing.T) {
	mesh := &fakeEmitter{err: errors.New("down")}
	bus := NewBus(mesh, nil, slog.Default())

	assert.NotPanics(t, func() {
		bus.Emit(context.Background(), "assistant:log-analyst", Envelope{Event: "message.new", EffectiveAt: time.Now()})
	})
}

func TestDedupe_SecondObservationOfSameIDIsDuplicate(t *testing.T) {
	d := NewDedupe()

	assert.False(t, d.SeenBefore("msg-1"))
	assert.True(t, d.SeenBefore("msg-1"))
	assert.False(t, d.SeenBefore("msg-2"))
}
