// Package state contains the entity cache synchronizers: listeners that
// translate gateway dispatch events into cache mutations, capture prior-value
// diffs, and re-publish every event onto the broker for downstream consumers.
package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-gateway-state/pkg/broker"
	"github.com/illmade-knight/go-gateway-state/pkg/dispatch"
	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
)

// Options toggles caching per entity kind. A disabled kind is never written
// to the store, but its events are still re-published. Read once at listener
// construction; not mutable at runtime.
type Options struct {
	Guilds      bool
	Channels    bool
	Roles       bool
	Members     bool
	Users       bool
	Emojis      bool
	Presences   bool
	VoiceStates bool
}

// DefaultOptions enables caching for every entity kind.
func DefaultOptions() Options {
	return Options{
		Guilds:      true,
		Channels:    true,
		Roles:       true,
		Members:     true,
		Users:       true,
		Emojis:      true,
		Presences:   true,
		VoiceStates: true,
	}
}

// Syncer owns the cache-synchronization logic shared by all entity kinds.
// The store and publisher are the process-wide shared clients, passed in
// explicitly; the Syncer holds no other state and its methods are safe for
// concurrent dispatch of distinct events.
type Syncer struct {
	store     keystore.Store
	publisher broker.Publisher
	clientID  string
	opts      Options
	logger    zerolog.Logger
}

// NewSyncer creates a Syncer publishing under the given logical client id.
func NewSyncer(store keystore.Store, publisher broker.Publisher, clientID string, opts Options, logger zerolog.Logger) *Syncer {
	return &Syncer{
		store:     store,
		publisher: publisher,
		clientID:  clientID,
		opts:      opts,
		logger:    logger.With().Str("component", "Syncer").Logger(),
	}
}

// create stores a snapshot and records its key in the kind's index set.
func (s *Syncer) create(ctx context.Context, kind keystore.Kind, guildID, id string, snapshot []byte) error {
	key := keystore.EntityKey(kind, guildID, id)
	if err := s.store.Set(ctx, key, snapshot); err != nil {
		return fmt.Errorf("store %s snapshot: %w", kind, err)
	}
	if err := s.store.AddIndex(ctx, keystore.IndexKey(kind, guildID), key); err != nil {
		return fmt.Errorf("index %s snapshot: %w", kind, err)
	}
	return nil
}

// update reads the prior snapshot strictly before overwriting it and
// re-asserts index membership. The read-then-write pair is deliberately not
// locked: two concurrent updates to the same key may interleave and publish
// a stale old value, which the eventual-consistency contract of the mirror
// accepts.
func (s *Syncer) update(ctx context.Context, kind keystore.Kind, guildID, id string, snapshot []byte) (json.RawMessage, error) {
	key := keystore.EntityKey(kind, guildID, id)
	old := s.readOld(ctx, key)
	if err := s.store.Set(ctx, key, snapshot); err != nil {
		return nil, fmt.Errorf("store %s snapshot: %w", kind, err)
	}
	if err := s.store.AddIndex(ctx, keystore.IndexKey(kind, guildID), key); err != nil {
		return nil, fmt.Errorf("index %s snapshot: %w", kind, err)
	}
	return old, nil
}

// remove reads the prior snapshot for the published diff, then deletes the
// key and its index membership.
func (s *Syncer) remove(ctx context.Context, kind keystore.Kind, guildID, id string) (json.RawMessage, error) {
	key := keystore.EntityKey(kind, guildID, id)
	old := s.readOld(ctx, key)
	if err := s.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("delete %s snapshot: %w", kind, err)
	}
	if err := s.store.RemoveIndex(ctx, keystore.IndexKey(kind, guildID), key); err != nil {
		return nil, fmt.Errorf("unindex %s snapshot: %w", kind, err)
	}
	return old, nil
}

// readOld fetches the prior snapshot feeding a diff. Read failures and
// malformed stored JSON both degrade to null rather than failing the event;
// the next write self-heals a corrupt value.
func (s *Syncer) readOld(ctx context.Context, key string) json.RawMessage {
	value, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to read prior value, publishing null diff.")
		return nullJSON
	}
	if !ok {
		return nullJSON
	}
	if !json.Valid(value) {
		s.logger.Warn().Str("key", key).Msg("Stored snapshot is not valid JSON, treating as absent.")
		return nullJSON
	}
	return value
}

// publish wraps the event in its envelope and sends it under the client and
// shard routing key. Publish failures are logged and swallowed; loss is
// tolerated by the fire-and-forget contract.
func (s *Syncer) publish(ctx context.Context, evt *dispatch.Event, old json.RawMessage) {
	envelope, err := json.Marshal(Envelope{
		T:       evt.Type,
		D:       evt.Payload,
		ShardID: evt.ShardID,
		Old:     old,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(evt.Type)).Msg("Failed to marshal event envelope.")
		return
	}
	subject := broker.EventSubject(s.clientID, evt.ShardID)
	if err := s.publisher.Publish(ctx, subject, envelope); err != nil {
		s.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish event.")
	}
}
