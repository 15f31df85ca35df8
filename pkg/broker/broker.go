// Package broker provides the message broker client used to re-publish
// processed gateway events and to serve the statistics request/reply plane.
package broker

import (
	"context"
	"strconv"
)

// CorrelationHeader carries the requester's correlation token on statistics
// requests and replies.
const CorrelationHeader = "Correlation-Id"

// Publisher defines the fire-and-forget publishing contract. Delivery is
// non-persistent; a broker restart may drop in-flight messages, and
// downstream consumers rely on the cache, not the event stream, for durable
// point-in-time state.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	// PublishWithCorrelation stamps the message with a correlation token so a
	// requester can match replies among concurrent responders.
	PublishWithCorrelation(ctx context.Context, subject, correlationID string, payload []byte) error
}

// MsgHandler processes one consumed message. correlationID is empty when the
// message carried no correlation token.
type MsgHandler func(ctx context.Context, correlationID string, payload []byte)

// Unsubscribe tears down one subscription.
type Unsubscribe func() error

// Subscriber is the consuming side of the broker contract.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler MsgHandler) (Unsubscribe, error)
}

// Bus is the full broker surface a coordinator needs.
type Bus interface {
	Publisher
	Subscriber
}

// EventSubject builds the routing key one processed event is published
// under: the logical client identity joined with the originating shard id.
// Consumers bind clientID.* for all shards or pin one shard id.
func EventSubject(clientID string, shardID int) string {
	return clientID + "." + strconv.Itoa(shardID)
}

// statsPrefix roots the statistics request subjects.
const statsPrefix = "gateway.stats."

// StatsSubjectAll is the subject a requester uses to reach every replica of
// a client.
func StatsSubjectAll(clientID string) string {
	return statsPrefix + clientID + ".all"
}

// StatsSubjectReplica is the subject a requester uses to reach one replica.
func StatsSubjectReplica(clientID, replicaID string) string {
	return statsPrefix + clientID + "." + replicaID
}
