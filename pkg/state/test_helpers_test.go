package state_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-gateway-state/pkg/dispatch"
	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
	"github.com/illmade-knight/go-gateway-state/pkg/state"
)

// publishedMsg is one message captured by the fake publisher.
type publishedMsg struct {
	Subject       string
	CorrelationID string
	Payload       []byte
}

// fakePublisher records published messages for assertions.
type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMsg
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, payload []byte) error {
	return p.PublishWithCorrelation(context.Background(), subject, "", payload)
}

func (p *fakePublisher) PublishWithCorrelation(_ context.Context, subject, correlationID string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	p.messages = append(p.messages, publishedMsg{Subject: subject, CorrelationID: correlationID, Payload: stored})
	return nil
}

func (p *fakePublisher) Published() []publishedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMsg, len(p.messages))
	copy(out, p.messages)
	return out
}

// newTestMirror wires a Syncer over an in-memory store and fake publisher,
// registered on a fresh dispatcher, the way the gateway assembles them.
func newTestMirror(t *testing.T, opts state.Options) (*dispatch.Dispatcher, *keystore.MemoryStore, *fakePublisher) {
	t.Helper()
	store := keystore.NewMemoryStore()
	publisher := &fakePublisher{}
	syncer := state.NewSyncer(store, publisher, "nezu", opts, zerolog.Nop())
	dispatcher := dispatch.NewDispatcher(zerolog.Nop())
	dispatcher.Register(syncer.Listeners()...)
	return dispatcher, store, publisher
}

// lastEnvelope parses the most recently published envelope.
func lastEnvelope(t *testing.T, publisher *fakePublisher) (publishedMsg, map[string]json.RawMessage) {
	t.Helper()
	published := publisher.Published()
	require.NotEmpty(t, published, "expected at least one published event")
	last := published[len(published)-1]
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(last.Payload, &envelope))
	return last, envelope
}
