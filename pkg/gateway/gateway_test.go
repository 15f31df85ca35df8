package gateway_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-gateway-state/pkg/broker"
	"github.com/illmade-knight/go-gateway-state/pkg/dispatch"
	"github.com/illmade-knight/go-gateway-state/pkg/gateway"
	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
	"github.com/illmade-knight/go-gateway-state/pkg/shardcoord"
	"github.com/illmade-knight/go-gateway-state/pkg/state"
)

// memBus is an in-process broker.Bus for wiring tests.
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
	return func() error { return nil }, nil
}

func (b *memBus) Published() []memMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]memMsg, len(b.published))
	copy(out, b.published)
	return out
}

func newTestGateway(t *testing.T, cfg gateway.Config) (*gateway.Gateway, *keystore.MemoryStore, *memBus) {
	t.Helper()
	store := keystore.NewMemoryStore()
	bus := newMemBus()
	g, err := gateway.New(cfg, store, bus, prometheus.NewRegistry(), zerolog.Nop())
	require.NoError(t, err)
	return g, store, bus
}

func defaultConfig() gateway.Config {
	return gateway.Config{
		ClientID:        "nezu",
		ReplicaID:       "replica-0",
		ShardCount:      4,
		ShardsPerWorker: 2,
		WorkerIndex:     0,
		Resume:          true,
		State:           state.DefaultOptions(),
	}
}

func TestGateway_DispatchFlowsToCacheAndBroker(t *testing.T) {
	// Arrange
	g, store, bus := newTestGateway(t, defaultConfig())
	ctx := context.Background()

	// Act
	g.Dispatch(ctx, dispatch.GuildRoleCreate, 1, json.RawMessage(`{"guild_id":"1","role":{"id":"9","name":"mod"}}`))

	// Assert
	value, ok, err := store.Get(ctx, "role:1:9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"9","name":"mod"}`, string(value))

	published := bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "nezu.1", published[0].Subject)
}

func TestGateway_StartInitializesOwnedRangeAndServesStats(t *testing.T) {
	// Arrange: worker 1 owns shards [2,4).
	cfg := defaultConfig()
	cfg.WorkerIndex = 1
	cfg.ReplicaID = "replica-1"
	g, store, bus := newTestGateway(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Act
	require.NoError(t, g.Start(ctx))
	t.Cleanup(g.Stop)

	// Assert: only shards 2 and 3 were reset.
	for _, shardID := range []int{2, 3} {
		_, ok, err := store.Get(ctx, keystore.StatusKey(shardID))
		require.NoError(t, err)
		assert.True(t, ok, "owned shard %d should have a status", shardID)
	}
	for _, shardID := range []int{0, 1} {
		_, ok, err := store.Get(ctx, keystore.StatusKey(shardID))
		require.NoError(t, err)
		assert.False(t, ok, "shard %d belongs to another replica", shardID)
	}

	// The statistics plane answers on the shared subject.
	replies, err := shardcoord.RequestStats(ctx, bus, "nezu", "replica-1", time.Second)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "replica-1", replies[0].ReplicaID)
	assert.Equal(t, 4, replies[0].ShardCount)
	require.Len(t, replies[0].Shards, 2)
}

func TestGateway_SessionCallbacksRoundtrip(t *testing.T) {
	g, _, _ := newTestGateway(t, defaultConfig())
	ctx := context.Background()

	info := &shardcoord.SessionInfo{SessionID: "s1", Sequence: 10, ResumeURL: "wss://x"}
	g.Coordinator().UpdateSessionInfo(ctx, 0, info)

	assert.Equal(t, info, g.Coordinator().RetrieveSessionInfo(ctx, 0))
}

func TestGateway_RejectsOutOfRangeWorkerIndex(t *testing.T) {
	cfg := defaultConfig()
	cfg.WorkerIndex = 9

	_, err := gateway.New(cfg, keystore.NewMemoryStore(), newMemBus(), prometheus.NewRegistry(), zerolog.Nop())

	require.Error(t, err)
}

func TestGateway_RejectsEmptyClientID(t *testing.T) {
	cfg := defaultConfig()
	cfg.ClientID = ""

	_, err := gateway.New(cfg, keystore.NewMemoryStore(), newMemBus(), prometheus.NewRegistry(), zerolog.Nop())

	require.Error(t, err)
}
