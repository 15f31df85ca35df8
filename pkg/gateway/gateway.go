// Package gateway wires the state mirror together: one shared store and
// broker connection, the listener registry, the shard coordinator for this
// replica's range, and the metrics collector. The transport layer drives it
// through Dispatch and the session/status callbacks on the Coordinator.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-gateway-state/pkg/broker"
	"github.com/illmade-knight/go-gateway-state/pkg/dispatch"
	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
	"github.com/illmade-knight/go-gateway-state/pkg/metrics"
	"github.com/illmade-knight/go-gateway-state/pkg/shardcoord"
	"github.com/illmade-knight/go-gateway-state/pkg/state"
)

// Config describes one replica of the logical client.
type Config struct {
	// ClientID is the logical client identity shared by every replica; it
	// prefixes all published routing keys.
	ClientID string
	// ReplicaID distinguishes this process among the client's replicas.
	ReplicaID string
	// ShardCount is the total logical shard count.
	ShardCount int
	// ShardsPerWorker sizes the contiguous range each worker owns.
	ShardsPerWorker int
	// WorkerIndex selects this process's range within the partition.
	WorkerIndex int
	// Resume enables session resumption from persisted tokens.
	Resume bool
	// State toggles caching per entity kind.
	State state.Options
	// Metrics configures the collector; a zero Interval uses the default.
	Metrics metrics.Config
}

// Gateway owns the mirror's components for one replica.
type Gateway struct {
	cfg         Config
	dispatcher  *dispatch.Dispatcher
	coordinator *shardcoord.Coordinator
	collector   *metrics.Collector
	logger      zerolog.Logger
}

// New builds a Gateway over the shared store and broker clients. The
// replica's shard range is computed from the partition; an out-of-range
// WorkerIndex is a configuration error.
func New(
	cfg Config,
	store keystore.Store,
	bus broker.Bus,
	registry prometheus.Registerer,
	logger zerolog.Logger,
) (*Gateway, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id cannot be empty")
	}
	shards, ok := shardcoord.WorkerRange(cfg.ShardCount, cfg.ShardsPerWorker, cfg.WorkerIndex)
	if !ok {
		return nil, fmt.Errorf("worker index %d is outside the partition of %d shards by %d per worker",
			cfg.WorkerIndex, cfg.ShardCount, cfg.ShardsPerWorker)
	}

	gatewayLogger := logger.With().
		Str("client_id", cfg.ClientID).
		Str("replica_id", cfg.ReplicaID).
		Logger()

	syncer := state.NewSyncer(store, bus, cfg.ClientID, cfg.State, gatewayLogger)
	dispatcher := dispatch.NewDispatcher(gatewayLogger)
	dispatcher.Register(syncer.Listeners()...)

	coordinator := shardcoord.NewCoordinator(shardcoord.Config{
		ClientID:   cfg.ClientID,
		ReplicaID:  cfg.ReplicaID,
		ShardCount: cfg.ShardCount,
		Shards:     shards,
		Resume:     cfg.Resume,
	}, store, bus, gatewayLogger)

	metricsCfg := cfg.Metrics
	metricsCfg.Shards = shards
	collector := metrics.NewCollector(metricsCfg, registry, store, coordinator, gatewayLogger)

	return &Gateway{
		cfg:         cfg,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		collector:   collector,
		logger:      gatewayLogger,
	}, nil
}

// Start initializes this replica's shard statuses, begins answering
// statistics requests, and starts the metrics refresh loop.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.coordinator.InitStatuses(ctx); err != nil {
		return fmt.Errorf("initialize shard statuses: %w", err)
	}
	if err := g.coordinator.ServeStats(ctx); err != nil {
		return fmt.Errorf("serve statistics requests: %w", err)
	}
	g.collector.Start(ctx)
	g.logger.Info().Msg("Gateway state mirror started.")
	return nil
}

// Stop tears down the statistics subscriptions. The metrics loop exits with
// the context passed to Start.
func (g *Gateway) Stop() {
	g.coordinator.Stop()
	g.logger.Info().Msg("Gateway state mirror stopped.")
}

// Dispatch is the single typed entry point the transport layer calls for
// every inbound gateway event.
func (g *Gateway) Dispatch(ctx context.Context, eventType dispatch.EventType, shardID int, payload json.RawMessage) {
	g.dispatcher.Dispatch(ctx, eventType, shardID, payload)
}

// Coordinator exposes the session/status plane for the transport layer's
// callbacks.
func (g *Gateway) Coordinator() *shardcoord.Coordinator {
	return g.coordinator
}
