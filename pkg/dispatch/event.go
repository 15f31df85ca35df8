package dispatch

import "encoding/json"

// EventType names one upstream dispatch event.
type EventType string

// Dispatch event names, as sent by the gateway transport.
const (
	Ready EventType = "READY"

	GuildCreate EventType = "GUILD_CREATE"
	GuildUpdate EventType = "GUILD_UPDATE"
	GuildDelete EventType = "GUILD_DELETE"

	ChannelCreate EventType = "CHANNEL_CREATE"
	ChannelUpdate EventType = "CHANNEL_UPDATE"
	ChannelDelete EventType = "CHANNEL_DELETE"

	GuildRoleCreate EventType = "GUILD_ROLE_CREATE"
	GuildRoleUpdate EventType = "GUILD_ROLE_UPDATE"
	GuildRoleDelete EventType = "GUILD_ROLE_DELETE"

	GuildMemberAdd    EventType = "GUILD_MEMBER_ADD"
	GuildMemberUpdate EventType = "GUILD_MEMBER_UPDATE"
	GuildMemberRemove EventType = "GUILD_MEMBER_REMOVE"

	GuildEmojisUpdate EventType = "GUILD_EMOJIS_UPDATE"

	PresenceUpdate   EventType = "PRESENCE_UPDATE"
	VoiceStateUpdate EventType = "VOICE_STATE_UPDATE"

	UserUpdate EventType = "USER_UPDATE"
)

// Event is one typed notification from the transport layer: the dispatch
// name, the shard connection it arrived on, and the raw upstream payload.
type Event struct {
	Type    EventType
	ShardID int
	Payload json.RawMessage
}
