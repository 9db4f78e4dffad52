package bot

import (
	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

// groupRoom holds any number of participants up to the configured cap. The
// cap itself is enforced by the service through the room configuration; the
// automaton only tracks first-in and last-out.
//
//	available → chatting → toDestroy / abandoned
type groupRoom struct {
	baseRoom
}

func (r *groupRoom) onJoin(p muc.Presence) {
	if r.isSelf(p.Nick) {
		r.botAffiliation = p.Affiliation
		return
	}
	if r.hasOccupant(p.Nick) {
		r.addOccupant(p)
		return
	}
	r.addOccupant(p)
	if r.bot.reconciling {
		return
	}

	if r.room.Status == model.StatusAvailable || r.room.Status == model.StatusAbandoned {
		if r.room.ChatID == nil {
			chat, err := r.bot.chats.Create(r.bot.ctx, r.room.JID)
			if err != nil {
				r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to create chat record")
			} else {
				if err := r.bot.rooms.SetChat(r.bot.ctx, r.room.JID, chat.ID); err != nil {
					r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to link chat record")
				}
				r.room.ChatID = &chat.ID
			}
		}
		wasAvailable := r.room.Status == model.StatusAvailable
		r.bot.setStatus(r.room, model.StatusChatting)
		if wasAvailable {
			kind := r.room.Kind
			r.bot.schedule("refill pool", func() { r.bot.fillPool(kind) })
		}
	}

	if r.room.ChatID != nil {
		if err := r.bot.chats.AppendEvent(r.bot.ctx, *r.room.ChatID, model.ChatEventJoin, p.Nick, ""); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to log join event")
		}
	}

	r.maybeGrantModerator(p)
}

// maybeGrantModerator elevates staff joiners when the bot's own affiliation
// allows it. A failed grant is logged, not fatal.
func (r *groupRoom) maybeGrantModerator(p muc.Presence) {
	token := r.bot.lookupToken(p.Token)
	if token == nil || token.Role != model.RoleStaff {
		return
	}
	if r.botAffiliation != "owner" && r.botAffiliation != "admin" {
		r.bot.log.Warn().
			Str("room", r.room.JID).
			Str("nick", p.Nick).
			Str("affiliation", r.botAffiliation).
			Msg("cannot grant moderator, insufficient affiliation")
		return
	}
	if err := r.bot.conn.GrantModerator(r.room.JID, p.Nick); err != nil {
		r.bot.log.Warn().Err(err).Str("room", r.room.JID).Str("nick", p.Nick).Msg("moderator grant failed")
	}
}

func (r *groupRoom) onLeave(p muc.Presence) {
	if r.isSelf(p.Nick) {
		return
	}
	if r.consumeIgnored(p.Nick) {
		r.removeOccupant(p.Nick)
		return
	}
	if !r.hasOccupant(p.Nick) {
		return
	}
	r.removeOccupant(p.Nick)
	if r.bot.reconciling {
		return
	}

	if r.room.ChatID != nil {
		if err := r.bot.chats.AppendEvent(r.bot.ctx, *r.room.ChatID, model.ChatEventLeave, p.Nick, ""); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to log leave event")
		}
	}

	if r.occupantCount() > 0 || r.room.Status != model.StatusChatting {
		return
	}

	if p.Clean() {
		if err := r.bot.rooms.MarkCleanExit(r.bot.ctx, r.room.JID, true); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to mark clean exit")
		}
		r.room.CleanExit = true
		r.bot.setStatus(r.room, model.StatusToDestroy)
	} else {
		r.bot.setStatus(r.room, model.StatusAbandoned)
	}
}

func (r *groupRoom) onMessage(m muc.Message) {
	if m.Private || r.room.Status != model.StatusChatting || r.room.ChatID == nil {
		return
	}
	if err := r.bot.chats.AppendEvent(r.bot.ctx, *r.room.ChatID, model.ChatEventMessage, m.Nick, m.Body); err != nil {
		r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to log message")
	}
}
