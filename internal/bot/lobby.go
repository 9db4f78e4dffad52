package bot

import (
	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

// lobbyRoom is the staff-facing side of the admission queue. A staff member
// entering an empty lobby activates it and pairs it with one waiting room;
// while active, every one2one room reaching staffWaiting triggers an invite
// to the head of the paired queue.
//
//	available → active → toDestroy
type lobbyRoom struct {
	baseRoom
}

func (r *lobbyRoom) onJoin(p muc.Presence) {
	if r.isSelf(p.Nick) {
		r.botAffiliation = p.Affiliation
		return
	}
	if r.hasOccupant(p.Nick) {
		r.addOccupant(p)
		return
	}
	first := r.occupantCount() == 0
	r.addOccupant(p)
	if r.bot.reconciling {
		return
	}

	if r.room.Status == model.StatusAvailable && first {
		r.bot.setStatus(r.room, model.StatusActive)
		r.bot.schedule("pair waiting room", r.pairWaitingRoom)
		kind := r.room.Kind
		r.bot.schedule("refill pool", func() { r.bot.fillPool(kind) })
	}
}

func (r *lobbyRoom) onLeave(p muc.Presence) {
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

	if r.occupantCount() == 0 && r.room.Status == model.StatusActive {
		r.deactivate()
	}
}

func (r *lobbyRoom) onMessage(m muc.Message) {
	// Lobby chatter stays in the lobby.
}

// pairWaitingRoom attaches exactly one waiting room to this lobby, preferring
// an abandoned one (it may still hold queued clients from an earlier lobby).
func (r *lobbyRoom) pairWaitingRoom() {
	if r.room.PairedWaitingJID != nil || r.room.Status != model.StatusActive {
		return
	}

	waiting := r.findWaitingRoom(model.StatusAbandoned)
	if waiting == nil {
		waiting = r.findWaitingRoom(model.StatusAvailable)
	}
	if waiting == nil {
		r.bot.log.Warn().Str("room", r.room.JID).Msg("no waiting room available to pair")
		return
	}

	jid := waiting.room.JID
	if err := r.bot.rooms.SetPairedWaiting(r.bot.ctx, r.room.JID, &jid); err != nil {
		r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to persist pairing")
		return
	}
	r.room.PairedWaitingJID = &jid
	r.bot.setStatus(waiting.room, model.StatusInUse)

	r.bot.log.Info().Str("lobby", r.room.JID).Str("waiting", jid).Msg("lobby paired with waiting room")
	r.bot.schedule("broadcast queue positions", waiting.broadcastPositions)
}

func (r *lobbyRoom) findWaitingRoom(status model.RoomStatus) *waitingRoom {
	for _, h := range r.bot.handlers {
		w, ok := h.(*waitingRoom)
		if ok && w.room.Status == status {
			return w
		}
	}
	return nil
}

func (r *lobbyRoom) pairedWaiting() *waitingRoom {
	if r.room.PairedWaitingJID == nil {
		return nil
	}
	h, ok := r.bot.handlers[*r.room.PairedWaitingJID]
	if !ok {
		return nil
	}
	w, ok := h.(*waitingRoom)
	if !ok {
		return nil
	}
	return w
}

// deactivate runs when the last staff member leaves. The paired waiting room
// survives as abandoned while it still has occupants, so a future lobby can
// pick the same queue back up; otherwise both rooms go down together.
func (r *lobbyRoom) deactivate() {
	waiting := r.pairedWaiting()
	if waiting != nil {
		if waiting.occupantCount() > 0 {
			r.bot.setStatus(waiting.room, model.StatusAbandoned)
		} else {
			r.bot.setStatus(waiting.room, model.StatusToDestroy)
		}
	}

	if err := r.bot.rooms.SetPairedWaiting(r.bot.ctx, r.room.JID, nil); err != nil {
		r.bot.log.Error().Err(err).Str("room", r.room.JID).Msg("failed to clear pairing")
	}
	r.room.PairedWaitingJID = nil
	r.bot.setStatus(r.room, model.StatusToDestroy)

	r.bot.schedule("refill pools", r.bot.scheduleRefillAll)
}

// inviteNext hands the head of the paired queue an invitation into a one2one
// room that just reached staffWaiting.
func (r *lobbyRoom) inviteNext(o2o *model.Room) {
	waiting := r.pairedWaiting()
	if waiting == nil {
		return
	}
	entry, ok := waiting.peekReady()
	if !ok {
		return
	}

	// Dequeue only after the invitation went out; a failed send must not
	// cost the client their place in line.
	if err := r.bot.conn.Invite(waiting.room.JID, entry.nick, o2o.JID, o2o.Password); err != nil {
		r.bot.log.Warn().Err(err).Str("room", o2o.JID).Str("nick", entry.nick).Msg("invite failed")
		return
	}
	waiting.dequeue(entry.nick)
	r.bot.log.Info().Str("room", o2o.JID).Str("nick", entry.nick).Msg("waiting client invited")
	r.bot.schedule("broadcast queue positions", waiting.broadcastPositions)
}

// notifyStaffWaiting is called whenever a one2one room reaches staffWaiting;
// an active lobby reacts by inviting the head of its queue.
func (b *Bot) notifyStaffWaiting(o2o *model.Room) {
	for _, h := range b.handlers {
		l, ok := h.(*lobbyRoom)
		if ok && l.room.Status == model.StatusActive {
			l.inviteNext(o2o)
			return
		}
	}
}
