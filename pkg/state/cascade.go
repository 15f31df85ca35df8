package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-gateway-state/pkg/dispatch"
	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
)

// scanBatchSize bounds each index-set scan step so a guild with very large
// membership never forces one blocking full-set read.
const scanBatchSize = 1000

// cascadeFields maps each guild-scoped kind to the name its removed key list
// is published under in the cascade event's old field.
var cascadeFields = map[keystore.Kind]string{
	keystore.KindRole:       "roles",
	keystore.KindChannel:    "channels",
	keystore.KindMember:     "members",
	keystore.KindEmoji:      "emojis",
	keystore.KindPresence:   "presences",
	keystore.KindVoiceState: "voiceStates",
}

// handleGuildDelete purges every cached entity scoped to the deleted guild.
// The multi-step deletion is not atomic as a group: a crash mid-cascade
// leaves a partially-cleaned guild, self-correcting on later events for the
// remaining children or an external full resync. Individual delete failures
// are logged and skipped, accepted as tolerable staleness.
func (s *Syncer) handleGuildDelete(ctx context.Context, evt *dispatch.Event) error {
	var p entityID
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse guild payload: %w", err)
	}
	guildID := p.ID
	guildKey := keystore.EntityKey(keystore.KindGuild, "", guildID)

	// The published old field merges the guild's final snapshot with the
	// lists of removed child keys. Keys, not full child payloads: consumers
	// wanting prior child snapshots must accumulate them from the individual
	// delete events they already receive.
	old := make(map[string]json.RawMessage, len(cascadeFields)+8)

	oldGuild := map[string]json.RawMessage{}
	if raw, ok, err := s.store.Get(ctx, guildKey); err != nil {
		s.logger.Error().Err(err).Str("key", guildKey).Msg("Failed to read guild snapshot before cascade.")
	} else if ok {
		if err := json.Unmarshal(raw, &oldGuild); err != nil {
			s.logger.Warn().Str("key", guildKey).Msg("Stored guild snapshot is not a JSON object, cascading without it.")
		}
	}

	// Enumerate then delete every child key, kind by kind.
	for _, kind := range keystore.GuildScopedKinds {
		indexKey := keystore.IndexKey(kind, guildID)
		members, err := s.store.ScanIndex(ctx, indexKey, scanBatchSize)
		if err != nil {
			s.logger.Error().Err(err).Str("index", indexKey).Msg("Failed to scan index during cascade.")
			members = nil
		}
		for _, member := range members {
			if err := s.store.Delete(ctx, member); err != nil {
				s.logger.Error().Err(err).Str("key", member).Msg("Failed to delete child key during cascade.")
			}
		}
		if members == nil {
			members = []string{}
		}
		listJSON, err := json.Marshal(members)
		if err != nil {
			listJSON = json.RawMessage("[]")
		}
		old[cascadeFields[kind]] = listJSON
	}

	// The guild's own key, its membership in the top-level index, then the
	// per-guild index sets themselves.
	if err := s.store.Delete(ctx, guildKey); err != nil {
		s.logger.Error().Err(err).Str("key", guildKey).Msg("Failed to delete guild key during cascade.")
	}
	guildIndex := keystore.IndexKey(keystore.KindGuild, "")
	if err := s.store.RemoveIndex(ctx, guildIndex, guildKey); err != nil {
		s.logger.Error().Err(err).Str("index", guildIndex).Msg("Failed to unindex guild during cascade.")
	}
	for _, kind := range keystore.GuildScopedKinds {
		indexKey := keystore.IndexKey(kind, guildID)
		if err := s.store.Delete(ctx, indexKey); err != nil {
			s.logger.Error().Err(err).Str("index", indexKey).Msg("Failed to delete index set during cascade.")
		}
	}

	// Guild fields win over the key lists on a name collision.
	for field, value := range oldGuild {
		old[field] = value
	}

	oldJSON, err := json.Marshal(old)
	if err != nil {
		return fmt.Errorf("marshal cascade old field: %w", err)
	}
	s.publish(ctx, evt, oldJSON)

	s.logger.Info().
		Str("guild_id", guildID).
		Int("shard_id", evt.ShardID).
		Msg("Cascaded guild deletion.")
	return nil
}
