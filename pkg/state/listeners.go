package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-gateway-state/pkg/dispatch"
	"github.com/illmade-knight/go-gateway-state/pkg/keystore"
)

// Minimal payload shapes: only the identifiers needed for key construction
// are parsed, the snapshot stored is always the raw upstream JSON.

type entityID struct {
	ID string `json:"id"`
}

type channelPayload struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
}

type rolePayload struct {
	GuildID string          `json:"guild_id"`
	Role    json.RawMessage `json:"role"`
}

type memberPayload struct {
	GuildID string          `json:"guild_id"`
	User    json.RawMessage `json:"user"`
}

type emojisPayload struct {
	GuildID string            `json:"guild_id"`
	Emojis  []json.RawMessage `json:"emojis"`
}

type voiceStatePayload struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	UserID    string  `json:"user_id"`
}

// Listeners returns every entity cache synchronizer in registration order,
// ready to hand to a Dispatcher. Kinds disabled in Options skip their cache
// mutation but still forward the event to the broker.
func (s *Syncer) Listeners() []dispatch.Listener {
	return []dispatch.Listener{
		{Event: dispatch.GuildCreate, Handle: s.handleGuildCreate},
		{Event: dispatch.GuildUpdate, Handle: s.handleGuildUpdate},
		{Event: dispatch.GuildDelete, Handle: s.handleGuildDelete},
		{Event: dispatch.ChannelCreate, Handle: s.handleChannelCreate},
		{Event: dispatch.ChannelUpdate, Handle: s.handleChannelUpdate},
		{Event: dispatch.ChannelDelete, Handle: s.handleChannelDelete},
		{Event: dispatch.GuildRoleCreate, Handle: s.handleRoleCreate},
		{Event: dispatch.GuildRoleUpdate, Handle: s.handleRoleUpdate},
		{Event: dispatch.GuildRoleDelete, Handle: s.handleRoleDelete},
		{Event: dispatch.GuildMemberAdd, Handle: s.handleMemberAdd},
		{Event: dispatch.GuildMemberUpdate, Handle: s.handleMemberUpdate},
		{Event: dispatch.GuildMemberRemove, Handle: s.handleMemberRemove},
		{Event: dispatch.GuildEmojisUpdate, Handle: s.handleEmojisUpdate},
		{Event: dispatch.PresenceUpdate, Handle: s.handlePresenceUpdate},
		{Event: dispatch.VoiceStateUpdate, Handle: s.handleVoiceStateUpdate},
		{Event: dispatch.UserUpdate, Handle: s.handleUserUpdate},
	}
}

func (s *Syncer) handleGuildCreate(ctx context.Context, evt *dispatch.Event) error {
	var p entityID
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse guild payload: %w", err)
	}
	if s.opts.Guilds {
		if err := s.create(ctx, keystore.KindGuild, "", p.ID, evt.Payload); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, nil)
	return nil
}

func (s *Syncer) handleGuildUpdate(ctx context.Context, evt *dispatch.Event) error {
	var p entityID
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse guild payload: %w", err)
	}
	var old json.RawMessage
	if s.opts.Guilds {
		var err error
		if old, err = s.update(ctx, keystore.KindGuild, "", p.ID, evt.Payload); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

func (s *Syncer) handleChannelCreate(ctx context.Context, evt *dispatch.Event) error {
	var p channelPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse channel payload: %w", err)
	}
	if s.opts.Channels {
		if err := s.create(ctx, keystore.KindChannel, p.GuildID, p.ID, evt.Payload); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, nil)
	return nil
}

func (s *Syncer) handleChannelUpdate(ctx context.Context, evt *dispatch.Event) error {
	var p channelPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse channel payload: %w", err)
	}
	var old json.RawMessage
	if s.opts.Channels {
		var err error
		if old, err = s.update(ctx, keystore.KindChannel, p.GuildID, p.ID, evt.Payload); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

func (s *Syncer) handleChannelDelete(ctx context.Context, evt *dispatch.Event) error {
	var p channelPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse channel payload: %w", err)
	}
	var old json.RawMessage
	if s.opts.Channels {
		var err error
		if old, err = s.remove(ctx, keystore.KindChannel, p.GuildID, p.ID); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

func (s *Syncer) handleRoleCreate(ctx context.Context, evt *dispatch.Event) error {
	p, roleID, err := parseRole(evt.Payload)
	if err != nil {
		return err
	}
	if s.opts.Roles {
		if err := s.create(ctx, keystore.KindRole, p.GuildID, roleID, p.Role); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, nil)
	return nil
}

func (s *Syncer) handleRoleUpdate(ctx context.Context, evt *dispatch.Event) error {
	p, roleID, err := parseRole(evt.Payload)
	if err != nil {
		return err
	}
	var old json.RawMessage
	if s.opts.Roles {
		if old, err = s.update(ctx, keystore.KindRole, p.GuildID, roleID, p.Role); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

func (s *Syncer) handleRoleDelete(ctx context.Context, evt *dispatch.Event) error {
	// Role delete payloads carry role_id rather than a role object.
	var p struct {
		GuildID string `json:"guild_id"`
		RoleID  string `json:"role_id"`
	}
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse role payload: %w", err)
	}
	var old json.RawMessage
	if s.opts.Roles {
		var err error
		if old, err = s.remove(ctx, keystore.KindRole, p.GuildID, p.RoleID); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

func (s *Syncer) handleMemberAdd(ctx context.Context, evt *dispatch.Event) error {
	p, userID, err := parseMember(evt.Payload)
	if err != nil {
		return err
	}
	if s.opts.Users && userID != "" {
		if err := s.create(ctx, keystore.KindUser, "", userID, p.User); err != nil {
			return err
		}
	}
	if s.opts.Members && userID != "" {
		if err := s.create(ctx, keystore.KindMember, p.GuildID, userID, evt.Payload); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, nil)
	return nil
}

func (s *Syncer) handleMemberUpdate(ctx context.Context, evt *dispatch.Event) error {
	p, userID, err := parseMember(evt.Payload)
	if err != nil {
		return err
	}
	if s.opts.Users && userID != "" {
		if err := s.create(ctx, keystore.KindUser, "", userID, p.User); err != nil {
			return err
		}
	}
	var old json.RawMessage
	if s.opts.Members && userID != "" {
		if old, err = s.update(ctx, keystore.KindMember, p.GuildID, userID, evt.Payload); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

func (s *Syncer) handleMemberRemove(ctx context.Context, evt *dispatch.Event) error {
	p, userID, err := parseMember(evt.Payload)
	if err != nil {
		return err
	}
	var old json.RawMessage
	if s.opts.Members && userID != "" {
		if old, err = s.remove(ctx, keystore.KindMember, p.GuildID, userID); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

// handleEmojisUpdate upserts every emoji in the payload. The upstream event
// replaces the guild's emoji list wholesale, so there is no per-emoji prior
// value to diff; emojis dropped from the list are reclaimed by the guild
// cascade or a full resync.
func (s *Syncer) handleEmojisUpdate(ctx context.Context, evt *dispatch.Event) error {
	var p emojisPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse emojis payload: %w", err)
	}
	if s.opts.Emojis {
		for _, emoji := range p.Emojis {
			var e entityID
			if err := json.Unmarshal(emoji, &e); err != nil || e.ID == "" {
				continue
			}
			if err := s.create(ctx, keystore.KindEmoji, p.GuildID, e.ID, emoji); err != nil {
				return err
			}
		}
	}
	s.publish(ctx, evt, nil)
	return nil
}

func (s *Syncer) handlePresenceUpdate(ctx context.Context, evt *dispatch.Event) error {
	p, userID, err := parseMember(evt.Payload)
	if err != nil {
		return err
	}
	var old json.RawMessage
	if s.opts.Presences && userID != "" {
		if old, err = s.update(ctx, keystore.KindPresence, p.GuildID, userID, evt.Payload); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

// handleVoiceStateUpdate stores the voice state keyed by user, or removes it
// when the update reports a null channel (the user left voice).
func (s *Syncer) handleVoiceStateUpdate(ctx context.Context, evt *dispatch.Event) error {
	var p voiceStatePayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse voice state payload: %w", err)
	}
	var old json.RawMessage
	if s.opts.VoiceStates && p.UserID != "" {
		var err error
		if p.ChannelID == nil {
			old, err = s.remove(ctx, keystore.KindVoiceState, p.GuildID, p.UserID)
		} else {
			old, err = s.update(ctx, keystore.KindVoiceState, p.GuildID, p.UserID, evt.Payload)
		}
		if err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

func (s *Syncer) handleUserUpdate(ctx context.Context, evt *dispatch.Event) error {
	var p entityID
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("parse user payload: %w", err)
	}
	var old json.RawMessage
	if s.opts.Users {
		var err error
		if old, err = s.update(ctx, keystore.KindUser, "", p.ID, evt.Payload); err != nil {
			return err
		}
	}
	s.publish(ctx, evt, old)
	return nil
}

func parseRole(payload json.RawMessage) (rolePayload, string, error) {
	var p rolePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, "", fmt.Errorf("parse role payload: %w", err)
	}
	var role entityID
	if err := json.Unmarshal(p.Role, &role); err != nil {
		return p, "", fmt.Errorf("parse role id: %w", err)
	}
	return p, role.ID, nil
}

func parseMember(payload json.RawMessage) (memberPayload, string, error) {
	var p memberPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, "", fmt.Errorf("parse member payload: %w", err)
	}
	if len(p.User) == 0 {
		return p, "", nil
	}
	var user entityID
	if err := json.Unmarshal(p.User, &user); err != nil {
		return p, "", fmt.Errorf("parse member user id: %w", err)
	}
	return p, user.ID, nil
}
