package bot

import (
	apperrors "github.com/careline/roompool-bot/internal/errors"
	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

// baseRoom carries the state every automaton shares: the persisted snapshot,
// the live occupant roster, and the set of nicks whose pending leave events
// must be ignored because we kicked them ourselves.
type baseRoom struct {
	bot       *Bot
	room      *model.Room
	occupants map[string]muc.Presence
	ignored   map[string]bool

	// affiliation the service granted the bot in this room, from its own
	// join presence.
	botAffiliation string
}

func (r *baseRoom) jid() string             { return r.room.JID }
func (r *baseRoom) kind() model.RoomKind    { return r.room.Kind }
func (r *baseRoom) snapshot() *model.Room   { return r.room }
func (r *baseRoom) occupantCount() int      { return len(r.occupants) }
func (r *baseRoom) isSelf(nick string) bool { return nick == r.bot.cfg.BotNick }

func (r *baseRoom) occupantNicks() []string {
	nicks := make([]string, 0, len(r.occupants))
	for nick := range r.occupants {
		nicks = append(nicks, nick)
	}
	return nicks
}

func (r *baseRoom) addOccupant(p muc.Presence) {
	r.occupants[p.Nick] = p
}

func (r *baseRoom) hasOccupant(nick string) bool {
	_, ok := r.occupants[nick]
	return ok
}

func (r *baseRoom) removeOccupant(nick string) {
	delete(r.occupants, nick)
}

// rejectJoin kicks a participant that no state expects and flags the nick so
// the matching leave event is a no-op instead of a departure.
func (r *baseRoom) rejectJoin(p muc.Presence) {
	r.bot.log.Warn().
		Err(apperrors.New(apperrors.ErrCodeJoinRejected, "no state expects this participant")).
		Str("room", r.room.JID).
		Str("nick", p.Nick).
		Str("status", string(r.room.Status)).
		Msg("unexpected join, kicking")
	r.ignored[p.Nick] = true
	if err := r.bot.conn.Kick(r.room.JID, p.Nick, "room is not available"); err != nil {
		r.bot.log.Warn().Err(err).Str("room", r.room.JID).Msg("kick failed")
	}
}

// consumeIgnored reports whether this leave belongs to a kicked nick and
// clears the flag.
func (r *baseRoom) consumeIgnored(nick string) bool {
	if r.ignored[nick] {
		delete(r.ignored, nick)
		return true
	}
	return false
}

// participantID resolves the persisted identity behind a join, preferring the
// bound owner of the presented token and falling back to the nick.
func (r *baseRoom) participantID(p muc.Presence) string {
	if token := r.bot.lookupToken(p.Token); token != nil && token.Bound() {
		return token.OwnerID
	}
	return p.Nick
}
