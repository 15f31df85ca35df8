package shardcoord_test

import (
	"context"
	"sync"

	"github.com/illmade-knight/go-gateway-state/pkg/broker"
)

// memBus is an in-process broker.Bus: publishes are delivered synchronously
// to every handler subscribed to the exact subject, and recorded for
// assertions.
type memBus struct {
	mu        sync.Mutex
	handlers  map[string][]broker.MsgHandler
	published []memMsg
}

type memMsg struct {
	Subject       string
	CorrelationID string
	Payload       []byte
}

func newMemBus() *memBus {
	return &memBus{handlers: make(map[string][]broker.MsgHandler)}
}

func (b *memBus) Publish(ctx context.Context, subject string, payload []byte) error {
	return b.PublishWithCorrelation(ctx, subject, "", payload)
}

func (b *memBus) PublishWithCorrelation(ctx context.Context, subject, correlationID string, payload []byte) error {
	b.mu.Lock()
	b.published = append(b.published, memMsg{Subject: subject, CorrelationID: correlationID, Payload: payload})
	handlers := append([]broker.MsgHandler(nil), b.handlers[subject]...)
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, correlationID, payload)
	}
	return nil
}

func (b *memBus) Subscribe(_ context.Context, subject string, handler broker.MsgHandler) (broker.Unsubscribe, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = append(b.handlers[subject], handler)
	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, subject)
		return nil
	}, nil
}

func (b *memBus) Published() []memMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]memMsg, len(b.published))
	copy(out, b.published)
	return out
}
