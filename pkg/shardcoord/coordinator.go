// Package shardcoord is the shard session and status coordination plane:
// resume-token persistence, per-shard status publication, and the
// cross-process statistics request/reply served over the broker.
package shardcoord

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-gateway-state/pkg/broker"
	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
)

// ShardState is the lifecycle state of one shard connection.
type ShardState int

const (
	StateIdle ShardState = iota
	StateConnecting
	StateResuming
	StateReady
	StateDisconnected
)

// String returns the string representation of ShardState.
func (s ShardState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateResuming:
		return "resuming"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SessionInfo is the resume state persisted per shard. It is overwritten on
// every session-relevant transport event and read once at shard startup.
type SessionInfo struct {
	SessionID  string `json:"sessionId"`
	Sequence   int64  `json:"sequence"`
	ResumeURL  string `json:"resumeURL"`
	ShardID    int    `json:"shardId"`
	ShardCount int    `json:"shardCount"`
}

// ShardStatus is the continuously-refreshed live status of one shard.
type ShardStatus struct {
	Status  ShardState `json:"status"`
	Latency float64    `json:"latency"`
	StartAt int64      `json:"startAt"`
}

// Config identifies this replica and the shard range it owns.
type Config struct {
	ClientID  string
	ReplicaID string
	// ShardCount is the total logical shard count across all replicas.
	ShardCount int
	// Shards is the contiguous range owned by this replica; other replicas'
	// shard ids are never touched.
	Shards Range
	// Resume enables reading persisted session info on shard startup. When
	// false RetrieveSessionInfo always reports absent and every connect
	// starts a fresh session.
	Resume bool
}

// Coordinator persists and serves shard coordination state. Session and
// status writes are best effort: failures are logged, never raised, because
// a lost write only costs one resume.
type Coordinator struct {
	cfg     Config
	store   keystore.Store
	bus     broker.Bus
	logger  zerolog.Logger
	startAt time.Time

	unsubs []broker.Unsubscribe
}

// NewCoordinator creates a Coordinator for this replica's shard range.
func NewCoordinator(cfg Config, store keystore.Store, bus broker.Bus, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		logger:  logger.With().Str("component", "Coordinator").Str("replica_id", cfg.ReplicaID).Logger(),
		startAt: time.Now(),
	}
}

// UpdateSessionInfo persists a shard's resume state. A failed write means
// the next connect for that shard starts a fresh session instead of
// resuming; it is logged and never surfaced to the transport layer.
func (c *Coordinator) UpdateSessionInfo(ctx context.Context, shardID int, info *SessionInfo) {
	payload, err := json.Marshal(info)
	if err != nil {
		c.logger.Error().Err(err).Int("shard_id", shardID).Msg("Failed to marshal session info.")
		return
	}
	if err := c.store.Set(ctx, keystore.SessionKey(shardID), payload); err != nil {
		c.logger.Error().Err(err).Int("shard_id", shardID).Msg("Failed to update session info.")
	}
}

// RetrieveSessionInfo returns the persisted resume state for a shard, or nil
// when resume is disabled, the key is absent, or the read fails. A nil
// result makes the transport layer start a fresh session.
func (c *Coordinator) RetrieveSessionInfo(ctx context.Context, shardID int) *SessionInfo {
	if !c.cfg.Resume {
		return nil
	}
	raw, ok, err := c.store.Get(ctx, keystore.SessionKey(shardID))
	if err != nil {
		c.logger.Error().Err(err).Int("shard_id", shardID).Msg("Failed to retrieve session info.")
		return nil
	}
	if !ok {
		return nil
	}
	var info SessionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		c.logger.Error().Err(err).Int("shard_id", shardID).Msg("Failed to parse stored session info.")
		return nil
	}
	return &info
}

// SetStatus records a shard's live status, called from the transport layer's
// status callback. Best effort.
func (c *Coordinator) SetStatus(ctx context.Context, shardID int, status ShardStatus) {
	payload, err := json.Marshal(status)
	if err != nil {
		c.logger.Error().Err(err).Int("shard_id", shardID).Msg("Failed to marshal shard status.")
		return
	}
	if err := c.store.Set(ctx, keystore.StatusKey(shardID), payload); err != nil {
		c.logger.Error().Err(err).Int("shard_id", shardID).Msg("Failed to update shard status.")
	}
}

// ShardStatusFor reads one shard's recorded status. Absent or unreadable
// statuses report ok=false.
func (c *Coordinator) ShardStatusFor(ctx context.Context, shardID int) (ShardStatus, bool) {
	raw, ok, err := c.store.Get(ctx, keystore.StatusKey(shardID))
	if err != nil {
		c.logger.Error().Err(err).Int("shard_id", shardID).Msg("Failed to read shard status.")
		return ShardStatus{Latency: -1}, false
	}
	if !ok {
		return ShardStatus{Latency: -1}, false
	}
	var status ShardStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		c.logger.Warn().Int("shard_id", shardID).Msg("Stored shard status is malformed, treating as absent.")
		return ShardStatus{Latency: -1}, false
	}
	return status, true
}

// InitStatuses resets the replica-owned shard range to Connecting and
// records the global shard count. Shard ids owned by other replicas are left
// untouched so one replica never clobbers another's live status.
func (c *Coordinator) InitStatuses(ctx context.Context) error {
	now := time.Now().UnixMilli()
	for shardID := c.cfg.Shards.Start; shardID < c.cfg.Shards.End; shardID++ {
		payload, err := json.Marshal(ShardStatus{Status: StateConnecting, Latency: -1, StartAt: now})
		if err != nil {
			return err
		}
		if err := c.store.Set(ctx, keystore.StatusKey(shardID), payload); err != nil {
			return err
		}
	}
	countPayload, err := json.Marshal(c.cfg.ShardCount)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, keystore.ShardCountKey, countPayload); err != nil {
		return err
	}
	c.logger.Info().
		Int("shard_start", c.cfg.Shards.Start).
		Int("shard_end", c.cfg.Shards.End).
		Int("shard_count", c.cfg.ShardCount).
		Msg("Initialized shard statuses for owned range.")
	return nil
}

// Stop tears down the statistics subscriptions.
func (c *Coordinator) Stop() {
	for _, unsub := range c.unsubs {
		if err := unsub(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to unsubscribe statistics consumer.")
		}
	}
	c.unsubs = nil
}
