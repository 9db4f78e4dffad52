package bot

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careline/roompool-bot/internal/config"
	apperrors "github.com/careline/roompool-bot/internal/errors"
	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

type pendingCreate struct {
	kind       model.RoomKind
	password   string
	invitation bool
}

func (b *Bot) scheduleRefillAll() {
	for _, kind := range []model.RoomKind{model.KindOne2One, model.KindGroup, model.KindLobby, model.KindWaiting} {
		kind := kind
		b.schedule("refill pool", func() { b.fillPool(kind) })
	}
}

// fillPool tops a kind's pool back up to its configured target. Requests
// already in flight count against the deficit, so calling this twice in a row
// creates nothing extra. A failed creation or configuration simply leaves the
// deficit for the next cycle.
func (b *Bot) fillPool(kind model.RoomKind) {
	b.fillTo(kind, model.StatusAvailable, b.cfg.PoolSize(string(kind)), false)
	if kind == model.KindOne2One {
		b.fillTo(kind, model.StatusAvailableForInvitation, b.cfg.InvitationPoolSize, true)
	}
}

func (b *Bot) fillTo(kind model.RoomKind, status model.RoomStatus, target int, invitation bool) {
	available, err := b.rooms.CountByStatus(b.ctx, kind, status)
	if err != nil {
		b.log.Error().Err(err).Str("kind", string(kind)).Msg("pool count failed")
		return
	}

	deficit := target - available - b.pendingCount(kind, invitation)
	for i := 0; i < deficit; i++ {
		b.requestRoom(kind, invitation)
	}
}

func (b *Bot) pendingCount(kind model.RoomKind, invitation bool) int {
	n := 0
	for _, pc := range b.pendingCreates {
		if pc.kind == kind && pc.invitation == invitation {
			n++
		}
	}
	return n
}

func (b *Bot) requestRoom(kind model.RoomKind, invitation bool) {
	name := b.newRoomName()
	password := uuid.NewString()

	cfg := muc.RoomConfig{
		Password:     password,
		MaxOccupants: maxOccupantsFor(kind),
		Public:       false,
		Persistent:   false,
		AllowInvites: false,
	}

	b.pendingCreates[name] = pendingCreate{kind: kind, password: password, invitation: invitation}
	if err := b.conn.CreateRoom(name, cfg); err != nil {
		delete(b.pendingCreates, name)
		b.log.Warn().Err(err).Str("room", name).Msg("room creation request failed")
	}
}

// handleRoomCreated finishes a pool unit: only a successfully configured room
// becomes a persisted available record, which the bot then enters.
func (b *Bot) handleRoomCreated(rc muc.RoomCreated) {
	pc, ok := b.pendingCreates[rc.Room]
	if !ok {
		b.log.Debug().Str("room", rc.Room).Msg("roomCreated for unknown request")
		return
	}
	delete(b.pendingCreates, rc.Room)

	if !rc.OK {
		err := apperrors.ConfigRejected(rc.Room, errors.New(rc.Reason))
		b.log.Warn().Err(err).Str("room", rc.Room).Msg("room configuration rejected")
		return
	}

	jid := b.jidFor(rc.Room)
	room, err := b.rooms.Create(b.ctx, pc.kind, jid, pc.password)
	if err != nil {
		b.log.Error().Err(err).Str("room", jid).Msg("failed to persist room")
		return
	}

	if pc.invitation {
		b.setStatus(room, model.StatusAvailableForInvitation)
	}

	b.addHandler(b.newHandler(room))
	if err := b.conn.Join(jid, b.cfg.BotNick, pc.password, b.cfg.HistoryMaxStanzas); err != nil {
		b.log.Warn().Err(err).Str("room", jid).Msg("failed to enter new room")
	}

	b.log.Info().Str("room", jid).Str("kind", string(pc.kind)).Msg("pool room ready")
}

// newRoomName mints an unpredictable site-prefixed name.
func (b *Bot) newRoomName() string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d", b.cfg.SitePrefix, time.Now().UnixNano())))
	return b.dedupeName(fmt.Sprintf("%s-%x", b.cfg.SitePrefix, sum[:8]))
}

// dedupeName resolves a collision with the immediately preceding generated
// name by appending a monotonically increasing suffix.
func (b *Bot) dedupeName(name string) string {
	if name == b.lastRoomName {
		b.nameSuffix++
		name = fmt.Sprintf("%s-%d", name, b.nameSuffix)
	}
	b.lastRoomName = name
	return name
}

func (b *Bot) jidFor(name string) string {
	return name + "@" + b.cfg.MUCDomain
}

func maxOccupantsFor(kind model.RoomKind) int {
	switch kind {
	case model.KindOne2One:
		return config.One2OneMaxOccupants
	case model.KindGroup:
		return config.GroupMaxOccupants
	}
	return config.OpenMaxOccupants
}
