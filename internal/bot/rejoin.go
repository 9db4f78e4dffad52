package bot

import (
	"github.com/careline/roompool-bot/internal/config"
	"github.com/careline/roompool-bot/internal/model"
)

// occupancy is everything reconciliation is allowed to look at besides the
// persisted status and clean-exit flag.
type occupancy struct {
	Count         int
	StaffPresent  bool
	ClientPresent bool
	// PairedActive is only meaningful for waiting rooms: whether the lobby
	// this room was paired with is still active.
	PairedActive bool
}

// repair is the outcome of one reconciliation decision. A non-empty note is
// logged; Error marks the branches where the observed occupancy contradicts
// the status badly enough that staying put is itself worth an error entry.
type repair struct {
	Status model.RoomStatus
	Note   string
	Error  bool
}

func keep(status model.RoomStatus) repair {
	return repair{Status: status}
}

// reconcile is the deterministic repair table applied to every non-destroyed
// room after a rejoin. It is a pure function: same inputs, same repaired
// status. Ambiguous occupancy is never guessed at; those rooms go to
// toDestroy.
func reconcile(kind model.RoomKind, status model.RoomStatus, occ occupancy, cleanExit bool) repair {
	switch kind {
	case model.KindOne2One:
		return reconcileOne2One(status, occ, cleanExit)
	case model.KindGroup:
		return reconcileGroup(status, occ, cleanExit)
	case model.KindLobby:
		return reconcileLobby(status, occ)
	case model.KindWaiting:
		return reconcileWaiting(status, occ)
	}
	return keep(status)
}

func reconcileOne2One(status model.RoomStatus, occ occupancy, cleanExit bool) repair {
	switch status {
	case model.StatusAvailable, model.StatusAvailableForInvitation:
		if occ.Count == 0 {
			return keep(status)
		}
		return repair{Status: model.StatusToDestroy, Note: "occupants in an unassigned pool room", Error: true}

	case model.StatusStaffWaiting, model.StatusStaffWaitingForInvitee:
		switch {
		case occ.Count == 0:
			return repair{Status: model.StatusToDestroy, Note: "waiting staff gone"}
		case occ.Count == 1 && occ.StaffPresent:
			return keep(status)
		case occ.Count == 1:
			return repair{Status: model.StatusToDestroy, Note: "single occupant is not the bound staff", Error: true}
		default:
			return repair{Status: model.StatusToDestroy, Note: "ambiguous occupancy while waiting for client", Error: true}
		}

	case model.StatusChatting:
		switch {
		case occ.Count >= 3:
			return repair{Status: model.StatusToDestroy, Note: "more occupants than a one2one chat can hold", Error: true}
		case occ.Count == 2:
			return keep(model.StatusChatting)
		case occ.Count == 1 && cleanExit:
			return repair{Status: model.StatusClosingChat, Note: "one participant already left cleanly"}
		case occ.Count == 1:
			return repair{Status: model.StatusLost, Note: "one participant disappeared"}
		case cleanExit:
			return repair{Status: model.StatusToDestroy, Note: "chat ended while disconnected"}
		default:
			return repair{Status: model.StatusAbandoned, Note: "both participants disappeared"}
		}

	case model.StatusClosingChat:
		switch {
		case occ.Count == 1:
			return keep(model.StatusClosingChat)
		case occ.Count == 0:
			return repair{Status: model.StatusToDestroy, Note: "closing chat is empty"}
		default:
			return repair{Status: model.StatusToDestroy, Note: "ambiguous occupancy in closing chat", Error: true}
		}

	case model.StatusLost:
		switch {
		case occ.Count == 1 && cleanExit:
			return repair{Status: model.StatusClosingChat, Note: "remaining participant had a clean exit on record"}
		case occ.Count == 1:
			// Stays as-is on purpose; the occupancy contradicts the status
			// but the safer read of a still-occupied lost room is to wait.
			return repair{Status: model.StatusLost, Note: "lost room still occupied without clean exit", Error: true}
		case occ.Count == 0:
			return repair{Status: model.StatusAbandoned, Note: "lost room is now empty"}
		default:
			return repair{Status: model.StatusToDestroy, Note: "ambiguous occupancy in lost room", Error: true}
		}

	case model.StatusAbandoned:
		switch {
		case occ.Count == 0:
			return keep(model.StatusAbandoned)
		case occ.Count == 1:
			return repair{Status: model.StatusAbandoned, Note: "abandoned room unexpectedly occupied", Error: true}
		default:
			return repair{Status: model.StatusToDestroy, Note: "ambiguous occupancy in abandoned room", Error: true}
		}
	}
	return keep(status)
}

func reconcileGroup(status model.RoomStatus, occ occupancy, cleanExit bool) repair {
	switch status {
	case model.StatusAvailable:
		if occ.Count == 0 {
			return keep(status)
		}
		return repair{Status: model.StatusChatting, Note: "group conversation started while disconnected"}
	case model.StatusChatting:
		if occ.Count > 0 {
			return keep(model.StatusChatting)
		}
		if cleanExit {
			return repair{Status: model.StatusToDestroy, Note: "group chat ended while disconnected"}
		}
		return repair{Status: model.StatusAbandoned, Note: "group chat emptied without clean exit"}
	case model.StatusAbandoned:
		if occ.Count > 0 {
			return repair{Status: model.StatusChatting, Note: "abandoned group picked back up"}
		}
		return keep(model.StatusAbandoned)
	}
	return keep(status)
}

func reconcileLobby(status model.RoomStatus, occ occupancy) repair {
	switch status {
	case model.StatusAvailable:
		if occ.Count > 0 {
			return repair{Status: model.StatusActive, Note: "staff entered lobby while disconnected"}
		}
		return keep(status)
	case model.StatusActive:
		if occ.Count == 0 {
			return repair{Status: model.StatusToDestroy, Note: "active lobby is empty"}
		}
		return keep(model.StatusActive)
	}
	return keep(status)
}

func reconcileWaiting(status model.RoomStatus, occ occupancy) repair {
	switch status {
	case model.StatusAvailable, model.StatusAbandoned:
		return keep(status)
	case model.StatusInUse:
		switch {
		case occ.PairedActive:
			return keep(model.StatusInUse)
		case occ.Count > 0:
			return repair{Status: model.StatusAbandoned, Note: "paired lobby gone, queue still occupied"}
		default:
			return repair{Status: model.StatusToDestroy, Note: "paired lobby gone, queue empty"}
		}
	}
	return keep(status)
}

// rejoinAll re-enters every non-destroyed room, drains the event pump until
// the presence roster goes quiet, then repairs each persisted status against
// what is actually there. Runs on (re)connect; the presence snapshot is the
// sole source of truth for who is present.
func (b *Bot) rejoinAll() error {
	b.reconciling = true
	defer func() { b.reconciling = false }()

	b.handlers = make(map[string]roomHandler)
	b.roomsTracked.Store(0)
	b.waitingDepth.Store(0)

	// Creates that were in flight when the session dropped will never be
	// answered; forgetting them lets the next refill count the real deficit.
	b.pendingCreates = make(map[string]pendingCreate)

	kinds := []model.RoomKind{model.KindLobby, model.KindWaiting, model.KindOne2One, model.KindGroup}
	var joined []roomHandler
	for _, kind := range kinds {
		rooms, err := b.rooms.FindNotDestroyed(b.ctx, kind)
		if err != nil {
			b.log.Error().Err(err).Str("kind", string(kind)).Msg("could not list rooms for rejoin")
			continue
		}
		for i := range rooms {
			room := rooms[i]
			h := b.newHandler(&room)
			b.addHandler(h)
			joined = append(joined, h)
			if err := b.conn.Join(room.JID, b.cfg.BotNick, room.Password, b.cfg.HistoryMaxStanzas); err != nil {
				return err
			}
		}
	}

	// Drain until no events arrive within the quiet window, so the full
	// roster of every rejoined room has been replayed.
	for {
		processed, err := b.conn.Pump(config.RejoinQuietWindow)
		if err != nil {
			return err
		}
		if !processed {
			break
		}
	}

	// Lobbies are reconciled before waiting rooms: a waiting room's repair
	// depends on whether its paired lobby survived.
	for _, h := range joined {
		b.reconcileRoom(h)
	}

	b.log.Info().Int("rooms", len(joined)).Msg("rejoin reconciliation complete")
	return nil
}

func (b *Bot) reconcileRoom(h roomHandler) {
	room := h.snapshot()
	occ := b.observedOccupancy(h)

	result := reconcile(room.Kind, room.Status, occ, room.CleanExit)

	if result.Status == room.Status {
		if result.Note != "" {
			b.log.Error().
				Str("room", room.JID).
				Str("status", string(room.Status)).
				Int("occupants", occ.Count).
				Msg("reconciliation anomaly: " + result.Note)
		}
		b.postRepair(h, room.Status)
		return
	}

	evt := b.log.Warn()
	if result.Error {
		evt = b.log.Error()
	}
	evt.
		Str("room", room.JID).
		Str("kind", string(room.Kind)).
		Str("from", string(room.Status)).
		Str("to", string(result.Status)).
		Int("occupants", occ.Count).
		Msg("reconciliation repair: " + result.Note)

	b.setStatus(room, result.Status)
	b.postRepair(h, result.Status)
}

func (b *Bot) observedOccupancy(h roomHandler) occupancy {
	room := h.snapshot()
	occ := occupancy{Count: h.occupantCount()}

	for _, nick := range h.occupantNicks() {
		if room.StaffNick != nil && nick == *room.StaffNick {
			occ.StaffPresent = true
		}
		if room.ClientNick != nil && nick == *room.ClientNick {
			occ.ClientPresent = true
		}
	}

	if room.Kind == model.KindWaiting {
		occ.PairedActive = b.waitingPairedActive(room.JID)
	}
	return occ
}

func (b *Bot) waitingPairedActive(waitingJID string) bool {
	for _, h := range b.handlers {
		l, ok := h.(*lobbyRoom)
		if !ok {
			continue
		}
		if l.room.PairedWaitingJID != nil && *l.room.PairedWaitingJID == waitingJID {
			return l.room.Status == model.StatusActive && l.occupantCount() > 0
		}
	}
	return false
}

// postRepair schedules the follow-up a repaired status implies. A repair
// never fabricates a missing chat transcript reference; a group room revived
// into chatting gets a real fresh record instead.
func (b *Bot) postRepair(h roomHandler, status model.RoomStatus) {
	room := h.snapshot()

	switch room.Kind {
	case model.KindGroup:
		if status == model.StatusChatting && room.ChatID == nil {
			chat, err := b.chats.Create(b.ctx, room.JID)
			if err != nil {
				b.log.Error().Err(err).Str("room", room.JID).Msg("failed to create chat record after repair")
				break
			}
			if err := b.rooms.SetChat(b.ctx, room.JID, chat.ID); err != nil {
				b.log.Error().Err(err).Str("room", room.JID).Msg("failed to link chat record after repair")
			}
			room.ChatID = &chat.ID
		}
	case model.KindLobby:
		if status == model.StatusActive && room.PairedWaitingJID == nil {
			l := h.(*lobbyRoom)
			b.schedule("pair waiting room", l.pairWaitingRoom)
		}
	case model.KindWaiting:
		if w := h.(*waitingRoom); len(w.queue) > 0 {
			b.schedule("broadcast queue positions", w.broadcastPositions)
		}
	}
}
