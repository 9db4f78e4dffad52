package bot

import (
	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

// one2oneRoom pairs exactly one staff and one client.
//
//	available → staffWaiting → chatting → closingChat → toDestroy → destroyed
//
// with a parallel invitation track availableForInvitation →
// staffWaitingForInvitee → chatting, and failure states lost / abandoned.
type one2oneRoom struct {
	baseRoom
}

func (r *one2oneRoom) onJoin(p muc.Presence) {
	if r.isSelf(p.Nick) {
		r.botAffiliation = p.Affiliation
		return
	}
	if r.hasOccupant(p.Nick) {
		// Presence refresh for someone already here.
		r.addOccupant(p)
		return
	}
	r.addOccupant(p)
	if r.bot.reconciling {
		return
	}

	switch r.room.Status {
	case model.StatusAvailable, model.StatusAvailableForInvitation:
		r.staffArrived(p)
	case model.StatusStaffWaiting, model.StatusStaffWaitingForInvitee:
		r.clientArrived(p)
	default:
		if r.recoverSession(p) {
			return
		}
		r.rejectJoin(p)
	}
}

// recoverSession readmits a bound participant re-presenting their token into
// a conversation that degraded while they were gone. The token navigates back
// to the room it was spent on; only the identity the slot was claimed for may
// recover, and only out of the degraded statuses.
func (r *one2oneRoom) recoverSession(p muc.Presence) bool {
	var recovered model.RoomStatus
	switch r.room.Status {
	case model.StatusLost, model.StatusClosingChat:
		recovered = model.StatusChatting
	case model.StatusAbandoned:
		recovered = model.StatusLost
	default:
		return false
	}

	token := r.bot.lookupToken(p.Token)
	if token == nil || !token.Bound() || token.RoomJID != r.room.JID {
		return false
	}

	switch {
	case r.room.StaffID != nil && *r.room.StaffID == token.OwnerID:
		nick := p.Nick
		r.room.StaffNick = &nick
	case r.room.ClientID != nil && *r.room.ClientID == token.OwnerID:
		nick := p.Nick
		r.room.ClientNick = &nick
	default:
		return false
	}

	if r.room.CleanExit {
		if err := r.bot.rooms.MarkCleanExit(r.bot.ctx, r.room.JID, false); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to reset clean exit")
		}
		r.room.CleanExit = false
	}

	r.bot.log.Info().
		Str("room", r.room.JID).
		Str("nick", p.Nick).
		Str("participant", token.OwnerID).
		Msg("session recovered")
	r.bot.setStatus(r.room, recovered)

	if r.room.ChatID != nil {
		if err := r.bot.chats.AppendEvent(r.bot.ctx, *r.room.ChatID, model.ChatEventJoin, p.Nick, ""); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to log join event")
		}
	}
	return true
}

func (r *one2oneRoom) staffArrived(p muc.Presence) {
	id := r.participantID(p)
	claimed, err := r.bot.rooms.ClaimSlot(r.bot.ctx, r.room.JID, model.RoleStaff, id, p.Nick)
	if err != nil {
		r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("staff slot claim failed")
		r.rejectJoin(p)
		return
	}
	if !claimed {
		r.rejectJoin(p)
		return
	}

	nick := p.Nick
	r.room.StaffID = &id
	r.room.StaffNick = &nick

	chat, err := r.bot.chats.Create(r.bot.ctx, r.room.JID)
	if err != nil {
		r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to create chat record")
	} else {
		if err := r.bot.rooms.SetChat(r.bot.ctx, r.room.JID, chat.ID); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to link chat record")
		}
		r.room.ChatID = &chat.ID
	}

	r.bindToken(p)

	if r.room.Status == model.StatusAvailableForInvitation {
		r.bot.setStatus(r.room, model.StatusStaffWaitingForInvitee)
	} else {
		r.bot.setStatus(r.room, model.StatusStaffWaiting)
		room := r.room
		r.bot.schedule("invite waiting client", func() { r.bot.notifyStaffWaiting(room) })
	}

	kind := r.room.Kind
	r.bot.schedule("refill pool", func() { r.bot.fillPool(kind) })
}

func (r *one2oneRoom) clientArrived(p muc.Presence) {
	id := r.participantID(p)
	claimed, err := r.bot.rooms.ClaimSlot(r.bot.ctx, r.room.JID, model.RoleClient, id, p.Nick)
	if err != nil {
		r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("client slot claim failed")
		r.rejectJoin(p)
		return
	}
	if !claimed {
		r.rejectJoin(p)
		return
	}

	nick := p.Nick
	r.room.ClientID = &id
	r.room.ClientNick = &nick

	r.bindToken(p)
	r.bot.setStatus(r.room, model.StatusChatting)

	if r.room.ChatID != nil {
		if err := r.bot.chats.AppendEvent(r.bot.ctx, *r.room.ChatID, model.ChatEventJoin, p.Nick, ""); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to log join event")
		}
	}
}

func (r *one2oneRoom) bindToken(p muc.Presence) {
	if p.Token == "" {
		return
	}
	if err := r.bot.tokens.Bind(r.bot.ctx, p.Token, p.Nick); err != nil {
		r.bot.log.Warn().Err(err).Str("room", r.room.JID).Msg("token bind failed")
	}
	if err := r.bot.tokens.Assign(r.bot.ctx, p.Token, r.room.JID); err != nil {
		r.bot.log.Warn().Err(err).Str("room", r.room.JID).Msg("token assign failed")
	}
}

func (r *one2oneRoom) onLeave(p muc.Presence) {
	if r.isSelf(p.Nick) {
		return
	}
	if r.consumeIgnored(p.Nick) {
		r.removeOccupant(p.Nick)
		return
	}
	if !r.hasOccupant(p.Nick) {
		// Stray leave for someone we never saw join.
		return
	}
	r.removeOccupant(p.Nick)
	if r.bot.reconciling {
		return
	}

	clean := p.Clean()
	if clean {
		if err := r.bot.rooms.MarkCleanExit(r.bot.ctx, r.room.JID, true); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to mark clean exit")
		}
		r.room.CleanExit = true
	}

	if r.room.ChatID != nil {
		if err := r.bot.chats.AppendEvent(r.bot.ctx, *r.room.ChatID, model.ChatEventLeave, p.Nick, ""); err != nil {
			r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to log leave event")
		}
	}

	r.sendExitSurvey(p)

	switch r.room.Status {
	case model.StatusChatting:
		if clean {
			r.bot.setStatus(r.room, model.StatusClosingChat)
		} else {
			r.bot.setStatus(r.room, model.StatusLost)
		}
	case model.StatusLost:
		if clean {
			r.bot.setStatus(r.room, model.StatusToDestroy)
		} else {
			r.bot.setStatus(r.room, model.StatusAbandoned)
		}
	case model.StatusClosingChat:
		if clean {
			r.bot.setStatus(r.room, model.StatusToDestroy)
		} else {
			r.bot.setStatus(r.room, model.StatusAbandoned)
		}
	case model.StatusStaffWaiting, model.StatusStaffWaitingForInvitee:
		r.bot.setStatus(r.room, model.StatusToDestroy)
	}
}

// sendExitSurvey issues the departing participant's questionnaire, tagged by
// the role the room bound them to.
func (r *one2oneRoom) sendExitSurvey(p muc.Presence) {
	var position model.SurveyPosition
	switch {
	case r.room.StaffNick != nil && *r.room.StaffNick == p.Nick:
		position = model.SurveyStaffAfter
	case r.room.ClientNick != nil && *r.room.ClientNick == p.Nick:
		position = model.SurveyClientAfter
	default:
		return
	}

	var chatID int64
	if r.room.ChatID != nil {
		chatID = *r.room.ChatID
	}
	r.bot.surveys.request(r.room.JID, p.Nick, p.Token, chatID, position, nil)
}

func (r *one2oneRoom) onMessage(m muc.Message) {
	if m.Private || r.room.Status != model.StatusChatting || r.room.ChatID == nil {
		return
	}
	if err := r.bot.chats.AppendEvent(r.bot.ctx, *r.room.ChatID, model.ChatEventMessage, m.Nick, m.Body); err != nil {
		r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to log message")
	}
}
