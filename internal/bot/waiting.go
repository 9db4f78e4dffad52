package bot

import (
	"fmt"

	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

type waitingEntry struct {
	nick  string
	token string
	ready bool
}

// waitingRoom holds the FIFO queue of clients waiting to be admitted to a
// one-to-one conversation. Clients may first have to complete an intake
// survey before they count as ready; queue positions are re-announced on
// every change.
//
//	available → inUse → abandoned / toDestroy
type waitingRoom struct {
	baseRoom
	queue []waitingEntry
}

func (r *waitingRoom) onJoin(p muc.Presence) {
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
		// Roster replay: original arrival order is approximated by roster
		// order, and anyone already present is past their intake.
		r.enqueue(waitingEntry{nick: p.Nick, token: p.Token, ready: true})
		return
	}

	entry := waitingEntry{nick: p.Nick, token: p.Token, ready: !r.bot.cfg.IntakeSurveyRequired}
	r.enqueue(entry)

	if !entry.ready {
		nick := p.Nick
		r.bot.surveys.request(r.room.JID, p.Nick, p.Token, 0, model.SurveyClientIntake, func(string) {
			r.markReady(nick)
		})
	}

	r.bot.schedule("broadcast queue positions", r.broadcastPositions)
}

func (r *waitingRoom) onLeave(p muc.Presence) {
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
	r.dequeue(p.Nick)
	if r.bot.reconciling {
		return
	}
	r.bot.schedule("broadcast queue positions", r.broadcastPositions)
}

func (r *waitingRoom) onMessage(m muc.Message) {
	// Waiting rooms carry no conversation; chatter is ignored.
}

func (r *waitingRoom) enqueue(e waitingEntry) {
	r.queue = append(r.queue, e)
	r.bot.waitingDepth.Add(1)
}

func (r *waitingRoom) dequeue(nick string) {
	for i, e := range r.queue {
		if e.nick == nick {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			r.bot.waitingDepth.Add(-1)
			return
		}
	}
}

func (r *waitingRoom) markReady(nick string) {
	for i := range r.queue {
		if r.queue[i].nick == nick {
			r.queue[i].ready = true
			break
		}
	}
	r.bot.schedule("broadcast queue positions", r.broadcastPositions)
}

// peekReady returns the first admissible client without removing it; the
// caller dequeues only once the admission actually went out.
func (r *waitingRoom) peekReady() (waitingEntry, bool) {
	for _, e := range r.queue {
		if e.ready {
			return e, true
		}
	}
	return waitingEntry{}, false
}

func (r *waitingRoom) broadcastPositions() {
	total := len(r.queue)
	for i, e := range r.queue {
		body := fmt.Sprintf("You are number %d of %d in the queue.", i+1, total)
		if err := r.bot.conn.SendPrivate(r.room.JID, e.nick, body); err != nil {
			r.bot.log.Warn().Err(err).Str("room", r.room.JID).Str("nick", e.nick).Msg("queue position notice failed")
			return
		}
	}
}
