package bot

import (
	"github.com/careline/roompool-bot/internal/model"
)

// timeoutStatuses lists, per kind, the stuck statuses the sweeper destroys
// once they exceed the configured room timeout. toDestroy rooms are always
// destroyed regardless of age.
var timeoutStatuses = map[model.RoomKind][]model.RoomStatus{
	model.KindOne2One: {model.StatusLost, model.StatusClosingChat, model.StatusAbandoned},
	model.KindGroup:   {model.StatusAbandoned},
	model.KindWaiting: {model.StatusAbandoned},
}

// sweep is the timer-driven cleanup pass.
func (b *Bot) sweep() {
	b.log.Debug().Msg("cleanup sweep started")
	timeout := b.cfg.RoomTimeout()

	for _, kind := range []model.RoomKind{model.KindOne2One, model.KindGroup, model.KindLobby, model.KindWaiting} {
		doomed, err := b.rooms.FindByStatus(b.ctx, kind, model.StatusToDestroy)
		if err != nil {
			b.log.Error().Err(err).Str("kind", string(kind)).Msg("could not list rooms to destroy")
		} else {
			for i := range doomed {
				b.destroyRoom(&doomed[i])
			}
		}

		for _, status := range timeoutStatuses[kind] {
			stuck, err := b.rooms.FindTimedOut(b.ctx, kind, status, timeout)
			if err != nil {
				b.log.Error().Err(err).Str("kind", string(kind)).Str("status", string(status)).Msg("timeout query failed")
				continue
			}
			for i := range stuck {
				b.log.Info().Str("room", stuck[i].JID).Str("status", string(status)).Msg("room timed out")
				b.destroyRoom(&stuck[i])
			}
		}
	}

	// One2one rooms whose pre-assigned staff never showed up.
	stale, err := b.rooms.FindStaleAssigned(b.ctx, timeout)
	if err != nil {
		b.log.Error().Err(err).Msg("stale assignment query failed")
	} else {
		for i := range stale {
			b.log.Info().Str("room", stale[i].JID).Msg("assigned staff never arrived")
			b.destroyRoom(&stale[i])
		}
	}

	for _, kind := range []model.RoomKind{model.KindOne2One, model.KindGroup, model.KindLobby, model.KindWaiting} {
		purged, err := b.rooms.DeleteDestroyed(b.ctx, kind)
		if err != nil {
			b.log.Error().Err(err).Str("kind", string(kind)).Msg("purge failed")
		} else if purged > 0 {
			b.log.Info().Int64("count", purged).Str("kind", string(kind)).Msg("destroyed rooms purged")
		}
	}

	b.scheduleRefillAll()
	b.log.Debug().Msg("cleanup sweep finished")
}

// destroyRoom kicks every occupant except the bot itself, marks the room
// destroyed in the store, and takes the live room down. Protocol errors here
// are logged and skipped; a lost session surfaces on the next pump.
func (b *Bot) destroyRoom(room *model.Room) {
	if h, ok := b.handlers[room.JID]; ok {
		notified := false
		for _, nick := range h.occupantNicks() {
			if nick == b.cfg.BotNick {
				continue
			}
			if !notified {
				if err := b.conn.SendGroup(room.JID, "This room is closing."); err != nil {
					b.log.Warn().Err(err).Str("room", room.JID).Msg("closing notice failed")
				}
				notified = true
			}
			if err := b.conn.Kick(room.JID, nick, "this room is closing"); err != nil {
				b.log.Warn().Err(err).Str("room", room.JID).Str("nick", nick).Msg("kick during destroy failed")
			}
		}
	}

	if err := b.rooms.SetStatus(b.ctx, room.JID, model.StatusDestroyed); err != nil {
		b.log.Error().Err(err).Str("room", room.JID).Msg("failed to mark room destroyed")
		return
	}
	room.Status = model.StatusDestroyed

	if err := b.conn.Destroy(room.JID); err != nil {
		b.log.Warn().Err(err).Str("room", room.JID).Msg("live room destroy failed")
	}
	if err := b.conn.Leave(room.JID); err != nil {
		b.log.Warn().Err(err).Str("room", room.JID).Msg("leave after destroy failed")
	}

	b.removeHandler(room.JID)
	b.log.Info().Str("room", room.JID).Str("kind", string(room.Kind)).Msg("room destroyed")
}
