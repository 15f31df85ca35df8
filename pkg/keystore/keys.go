package keystore

import "strconv"

// Kind names the prefix under which one entity kind is stored. The composite
// key for an entity is kind[:guildID]:id; guild scope is omitted for global
// kinds (guilds themselves, users).
type Kind string

const (
	KindGuild      Kind = "guild"
	KindChannel    Kind = "channel"
	KindRole       Kind = "role"
	KindMember     Kind = "member"
	KindUser       Kind = "user"
	KindEmoji      Kind = "emoji"
	KindPresence   Kind = "presence"
	KindVoiceState Kind = "voice_state"

	// Coordination keys, not entity snapshots.
	KindSession Kind = "session"
	KindStatus  Kind = "status"

	// ShardCountKey holds the total logical shard count for the client.
	ShardCountKey = "shard_count"
)

// keysSuffix marks a kind's index set. The doubled colon keeps index keys out
// of the entity key namespace.
const keysSuffix = "::keys"

// GuildScopedKinds are the entity kinds keyed under an owning guild, in the
// order the cascading invalidator enumerates them.
var GuildScopedKinds = []Kind{KindRole, KindChannel, KindMember, KindEmoji, KindPresence, KindVoiceState}

// EntityKey builds the composite key for one entity. guildID is empty for
// global kinds.
func EntityKey(kind Kind, guildID, id string) string {
	if guildID == "" {
		return string(kind) + ":" + id
	}
	return string(kind) + ":" + guildID + ":" + id
}

// IndexKey builds the key of the index set tracking all live composite keys
// for a kind, optionally scoped to one guild.
func IndexKey(kind Kind, guildID string) string {
	if guildID == "" {
		return string(kind) + keysSuffix
	}
	return string(kind) + keysSuffix + ":" + guildID
}

// SessionKey builds the key holding one shard's resume state.
func SessionKey(shardID int) string {
	return EntityKey(KindSession, "", strconv.Itoa(shardID))
}

// StatusKey builds the key holding one shard's live status.
func StatusKey(shardID int) string {
	return EntityKey(KindStatus, "", strconv.Itoa(shardID))
}
