package shardcoord

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/illmade-knight/go-gateway-state/pkg/broker"
)

// statsRequest is the body of one statistics request: the subject the
// requester wants the reply published on. The correlation token travels at
// the message level, not in the body.
type statsRequest struct {
	Route string `json:"route"`
}

// ShardStat is one shard's entry in a statistics reply.
type ShardStat struct {
	ShardID int        `json:"shardId"`
	Status  ShardState `json:"status"`
	Latency float64    `json:"latency"`
}

// MemoryUsage reports the replying process's heap occupancy.
type MemoryUsage struct {
	Alloc uint64 `json:"alloc"`
	Sys   uint64 `json:"sys"`
}

// CPUUsage reports accumulated CPU seconds for the replying process.
type CPUUsage struct {
	User   float64 `json:"user"`
	System float64 `json:"system"`
}

// StatsReply is the summary one replica publishes in answer to a statistics
// request.
type StatsReply struct {
	Shards      []ShardStat `json:"shards"`
	ReplicaID   string      `json:"replicaId"`
	ClientID    string      `json:"clientId"`
	MemoryUsage MemoryUsage `json:"memoryUsage"`
	CPUUsage    CPUUsage    `json:"cpuUsage"`
	Uptime      float64     `json:"uptime"`
	ShardCount  int         `json:"shardCount"`
}

// ServeStats binds this replica to the shared statistics subjects: one
// reaching every replica of the client, one pinning this replica. Each
// request is answered with a summary of the locally-owned shards, published
// to the request's route and stamped with its correlation token. There is no
// server-side timeout; the requester owns timing out and filtering replies.
func (c *Coordinator) ServeStats(ctx context.Context) error {
	subjects := []string{
		broker.StatsSubjectAll(c.cfg.ClientID),
		broker.StatsSubjectReplica(c.cfg.ClientID, c.cfg.ReplicaID),
	}
	for _, subject := range subjects {
		unsub, err := c.bus.Subscribe(ctx, subject, c.answerStats)
		if err != nil {
			return fmt.Errorf("subscribe statistics subject %s: %w", subject, err)
		}
		c.unsubs = append(c.unsubs, unsub)
	}
	c.logger.Info().Strs("subjects", subjects).Msg("Serving statistics requests.")
	return nil
}

// answerStats handles one statistics request.
func (c *Coordinator) answerStats(ctx context.Context, correlationID string, payload []byte) {
	var req statsRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Route == "" {
		c.logger.Warn().Msg("Ignoring statistics request without a reply route.")
		return
	}

	stats := make([]ShardStat, 0, c.cfg.Shards.Count())
	for _, shardID := range c.cfg.Shards.ShardIDs() {
		status, _ := c.ShardStatusFor(ctx, shardID)
		stats = append(stats, ShardStat{ShardID: shardID, Status: status.Status, Latency: status.Latency})
	}

	reply, err := json.Marshal(StatsReply{
		Shards:      stats,
		ReplicaID:   c.cfg.ReplicaID,
		ClientID:    c.cfg.ClientID,
		MemoryUsage: readMemoryUsage(),
		CPUUsage:    readCPUUsage(),
		Uptime:      time.Since(c.startAt).Seconds(),
		ShardCount:  c.cfg.ShardCount,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal statistics reply.")
		return
	}

	if err := c.bus.PublishWithCorrelation(ctx, req.Route, correlationID, reply); err != nil {
		c.logger.Error().Err(err).Str("route", req.Route).Msg("Failed to publish statistics reply.")
	}
}

// RequestStats publishes a statistics request and collects correlated
// replies. An empty replicaID broadcasts to every replica and waits out the
// whole timeout; a specific replicaID returns on the first matching reply. A
// missing reply is not an error: replicas that do not answer in time are
// simply absent from the result.
func RequestStats(ctx context.Context, bus broker.Bus, clientID, replicaID string, timeout time.Duration) ([]StatsReply, error) {
	token := uuid.NewString()
	route := "gateway.stats.reply." + token

	var mu sync.Mutex
	var replies []StatsReply
	first := make(chan struct{}, 1)

	unsub, err := bus.Subscribe(ctx, route, func(_ context.Context, correlationID string, payload []byte) {
		if correlationID != token {
			return
		}
		var reply StatsReply
		if err := json.Unmarshal(payload, &reply); err != nil {
			return
		}
		mu.Lock()
		replies = append(replies, reply)
		mu.Unlock()
		select {
		case first <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe reply route: %w", err)
	}
	defer func() { _ = unsub() }()

	subject := broker.StatsSubjectAll(clientID)
	if replicaID != "" {
		subject = broker.StatsSubjectReplica(clientID, replicaID)
	}
	request, err := json.Marshal(statsRequest{Route: route})
	if err != nil {
		return nil, err
	}
	if err := bus.PublishWithCorrelation(ctx, subject, token, request); err != nil {
		return nil, fmt.Errorf("publish statistics request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return snapshotReplies(&mu, &replies), ctx.Err()
		case <-timer.C:
			return snapshotReplies(&mu, &replies), nil
		case <-first:
			if replicaID != "" {
				return snapshotReplies(&mu, &replies), nil
			}
		}
	}
}

func snapshotReplies(mu *sync.Mutex, replies *[]StatsReply) []StatsReply {
	mu.Lock()
	defer mu.Unlock()
	out := make([]StatsReply, len(*replies))
	copy(out, *replies)
	return out
}

func readMemoryUsage() MemoryUsage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemoryUsage{Alloc: ms.Alloc, Sys: ms.Sys}
}

func readCPUUsage() CPUUsage {
	var usage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &usage); err != nil {
		return CPUUsage{}
	}
	return CPUUsage{
		User:   float64(usage.Utime.Sec) + float64(usage.Utime.Usec)/1e6,
		System: float64(usage.Stime.Sec) + float64(usage.Stime.Usec)/1e6,
	}
}
