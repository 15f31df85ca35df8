// Package metrics exports the gauges this core maintains: entity counts from
// index-set cardinality and per-shard connection health from stored
// statuses. Serving the registry over HTTP is left to the bootstrap layer.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
	"github.com/illmade-knight/go-gateway-state/pkg/shardcoord"
)

// Config holds the configuration for the metrics collector.
type Config struct {
	// Interval between refreshes; defaults to 10 seconds.
	Interval time.Duration
	// Shards is the replica-owned shard range whose statuses are exported.
	Shards shardcoord.Range
}

// Collector refreshes the exported gauges from cache state on a fixed
// interval.
type Collector struct {
	cfg         Config
	store       keystore.Store
	coordinator *shardcoord.Coordinator
	logger      zerolog.Logger

	guildCount   prometheus.Gauge
	channelCount prometheus.Gauge
	userCount    prometheus.Gauge
	shardLatency *prometheus.GaugeVec
	shardStatus  *prometheus.GaugeVec

	done chan struct{}
}

// NewCollector constructs and registers the collector's gauges.
// A nil registerer falls back to prometheus.DefaultRegisterer.
func NewCollector(
	cfg Config,
	reg prometheus.Registerer,
	store keystore.Store,
	coordinator *shardcoord.Coordinator,
	logger zerolog.Logger,
) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}

	c := &Collector{
		cfg:         cfg,
		store:       store,
		coordinator: coordinator,
		logger:      logger.With().Str("component", "MetricsCollector").Logger(),
		guildCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guild_count",
			Help: "Cached guild count",
		}),
		channelCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "channel_count",
			Help: "Cached channel count",
		}),
		userCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "user_count",
			Help: "Cached user count",
		}),
		shardLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ws_ping",
			Help: "Websocket ping",
		}, []string{"shardId"}),
		shardStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ws_status",
			Help: "Websocket status",
		}, []string{"shardId"}),
		done: make(chan struct{}),
	}
	reg.MustRegister(c.guildCount, c.channelCount, c.userCount, c.shardLatency, c.shardStatus)
	return c
}

// Start runs the refresh loop until the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Refresh(ctx)
			}
		}
	}()
}

// Done reports when the refresh loop has exited.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// Refresh recomputes every gauge once. Store failures are logged and leave
// the previous gauge values in place.
func (c *Collector) Refresh(ctx context.Context) {
	c.refreshCount(ctx, keystore.KindGuild, c.guildCount)
	c.refreshCount(ctx, keystore.KindChannel, c.channelCount)
	c.refreshCount(ctx, keystore.KindUser, c.userCount)

	for _, shardID := range c.cfg.Shards.ShardIDs() {
		status, ok := c.coordinator.ShardStatusFor(ctx, shardID)
		if !ok {
			continue
		}
		label := strconv.Itoa(shardID)
		c.shardLatency.WithLabelValues(label).Set(status.Latency)
		c.shardStatus.WithLabelValues(label).Set(float64(status.Status))
	}
	c.logger.Debug().Int("shard_count", c.cfg.Shards.Count()).Msg("Refreshed metrics for owned shards.")
}

// refreshCount exports one kind's global index cardinality. Channel counts
// use the global index, which only tracks unscoped channels when channels
// are guild-scoped; per-guild channel totals come from the per-guild sets.
func (c *Collector) refreshCount(ctx context.Context, kind keystore.Kind, gauge prometheus.Gauge) {
	size, err := c.store.IndexSize(ctx, keystore.IndexKey(kind, ""))
	if err != nil {
		c.logger.Error().Err(err).Str("kind", string(kind)).Msg("Failed to read index cardinality.")
		return
	}
	gauge.Set(float64(size))
}
