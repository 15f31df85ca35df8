package shardcoord_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
	"github.com/illmade-knight/go-gateway-state/pkg/shardcoord"
)

func newTestCoordinator(t *testing.T, cfg shardcoord.Config, store keystore.Store) *shardcoord.Coordinator {
	t.Helper()
	return shardcoord.NewCoordinator(cfg, store, newMemBus(), zerolog.Nop())
}

func TestSessionInfo_Roundtrip(t *testing.T) {
	// Arrange
	store := keystore.NewMemoryStore()
	c := newTestCoordinator(t, shardcoord.Config{ClientID: "nezu", Resume: true, Shards: shardcoord.Range{Start: 0, End: 2}}, store)
	ctx := context.Background()
	info := &shardcoord.SessionInfo{
		SessionID:  "abc123",
		Sequence:   99,
		ResumeURL:  "wss://gateway.example/resume",
		ShardID:    1,
		ShardCount: 2,
	}

	// Act
	c.UpdateSessionInfo(ctx, 1, info)
	retrieved := c.RetrieveSessionInfo(ctx, 1)

	// Assert
	require.NotNil(t, retrieved)
	assert.Equal(t, info, retrieved)
}

func TestRetrieveSessionInfo_ResumeDisabled(t *testing.T) {
	store := keystore.NewMemoryStore()
	c := newTestCoordinator(t, shardcoord.Config{ClientID: "nezu", Resume: false}, store)
	ctx := context.Background()

	c.UpdateSessionInfo(ctx, 0, &shardcoord.SessionInfo{SessionID: "abc"})

	// Resume disabled always reports absent, forcing a fresh session.
	assert.Nil(t, c.RetrieveSessionInfo(ctx, 0))
}

func TestRetrieveSessionInfo_AbsentOrCorrupt(t *testing.T) {
	store := keystore.NewMemoryStore()
	c := newTestCoordinator(t, shardcoord.Config{ClientID: "nezu", Resume: true}, store)
	ctx := context.Background()

	assert.Nil(t, c.RetrieveSessionInfo(ctx, 5), "absent session reports nil")

	require.NoError(t, store.Set(ctx, keystore.SessionKey(5), []byte("{not json")))
	assert.Nil(t, c.RetrieveSessionInfo(ctx, 5), "corrupt session reports nil")
}

func TestInitStatuses_OnlyOwnedRange(t *testing.T) {
	// Arrange: shard 2 belongs to another replica and already has a status.
	store := keystore.NewMemoryStore()
	ctx := context.Background()
	otherStatus, err := json.Marshal(shardcoord.ShardStatus{Status: shardcoord.StateReady, Latency: 8})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, keystore.StatusKey(2), otherStatus))

	c := newTestCoordinator(t, shardcoord.Config{
		ClientID:   "nezu",
		ReplicaID:  "replica-0",
		ShardCount: 4,
		Shards:     shardcoord.Range{Start: 0, End: 2},
	}, store)

	// Act
	require.NoError(t, c.InitStatuses(ctx))

	// Assert: owned shards reset to Connecting with latency -1.
	for shardID := 0; shardID < 2; shardID++ {
		status, ok := c.ShardStatusFor(ctx, shardID)
		require.True(t, ok, "shard %d should have a status", shardID)
		assert.Equal(t, shardcoord.StateConnecting, status.Status)
		assert.Equal(t, float64(-1), status.Latency)
		assert.NotZero(t, status.StartAt)
	}

	// The other replica's shard is untouched.
	status, ok := c.ShardStatusFor(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, shardcoord.StateReady, status.Status)

	// The global shard count is recorded.
	raw, ok, err := store.Get(ctx, keystore.ShardCountKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `4`, string(raw))
}

func TestSetStatus_ReadBack(t *testing.T) {
	store := keystore.NewMemoryStore()
	c := newTestCoordinator(t, shardcoord.Config{ClientID: "nezu", Shards: shardcoord.Range{Start: 0, End: 1}}, store)
	ctx := context.Background()

	c.SetStatus(ctx, 0, shardcoord.ShardStatus{Status: shardcoord.StateReady, Latency: 12, StartAt: 1000})

	status, ok := c.ShardStatusFor(ctx, 0)
	require.True(t, ok)
	assert.Equal(t, shardcoord.StateReady, status.Status)
	assert.Equal(t, float64(12), status.Latency)
}

func TestShardStatusFor_AbsentReportsNegativeLatency(t *testing.T) {
	store := keystore.NewMemoryStore()
	c := newTestCoordinator(t, shardcoord.Config{ClientID: "nezu"}, store)

	status, ok := c.ShardStatusFor(context.Background(), 9)
	assert.False(t, ok)
	assert.Equal(t, float64(-1), status.Latency)
}
