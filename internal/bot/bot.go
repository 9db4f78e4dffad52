package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/careline/roompool-bot/internal/config"
	apperrors "github.com/careline/roompool-bot/internal/errors"
	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
	"github.com/careline/roompool-bot/internal/repository"
)

// Conn is the protocol session surface the orchestrator drives. *muc.Client
// implements it; tests script a fake.
type Conn interface {
	Connect(ctx context.Context) error
	Close() error
	Pump(timeout time.Duration) (bool, error)
	SetHandlers(h muc.Handlers)
	Join(room, nick, password string, maxHistory int) error
	Leave(room string) error
	CreateRoom(room string, cfg muc.RoomConfig) error
	Invite(via, nick, room, password string) error
	Kick(room, nick, reason string) error
	Destroy(room string) error
	GrantModerator(room, nick string) error
	SendGroup(room, body string) error
	SendPrivate(room, nick, body string) error
	SendSurvey(room, nick string, req muc.SurveyRequest) (string, error)
}

var _ Conn = (*muc.Client)(nil)

// roomHandler is the per-kind status automaton. The bot dispatches every
// event for a live room to its handler; handlers never block and defer
// follow-up work onto the bot's task queue.
type roomHandler interface {
	jid() string
	kind() model.RoomKind
	snapshot() *model.Room
	onJoin(p muc.Presence)
	onLeave(p muc.Presence)
	onMessage(m muc.Message)
	occupantCount() int
	occupantNicks() []string
}

// Bot owns the session, the live-room handler map, the deferred task queue
// and the cleanup timer. Everything it touches runs on the goroutine calling
// Run; the only cross-goroutine state is the health gauges and the cleanup
// flag.
type Bot struct {
	cfg     *config.Config
	conn    Conn
	rooms   repository.RoomRepository
	chats   repository.ChatRepository
	tokens  repository.TokenRepository
	log     zerolog.Logger
	surveys *surveyTracker

	ctx      context.Context
	handlers map[string]roomHandler
	tasks    *taskQueue

	pendingCreates map[string]pendingCreate
	lastRoomName   string
	nameSuffix     int

	// reconciling suppresses transition side effects while a rejoin replays
	// the presence roster; handlers only record occupancy.
	reconciling bool

	cleanupDue   atomic.Bool
	cleanupMu    sync.Mutex
	nextSweep    time.Time
	cleanupTimer *time.Timer

	connected    atomic.Bool
	reconnects   atomic.Int64
	roomsTracked atomic.Int64
	waitingDepth atomic.Int64
}

func New(
	cfg *config.Config,
	conn Conn,
	rooms repository.RoomRepository,
	chats repository.ChatRepository,
	tokens repository.TokenRepository,
	log zerolog.Logger,
) *Bot {
	b := &Bot{
		cfg:            cfg,
		conn:           conn,
		rooms:          rooms,
		chats:          chats,
		tokens:         tokens,
		log:            log.With().Str("component", "bot").Logger(),
		handlers:       make(map[string]roomHandler),
		pendingCreates: make(map[string]pendingCreate),
	}
	b.tasks = newTaskQueue(b.log)
	b.surveys = newSurveyTracker(conn, chats, b.log)
	return b
}

// Run establishes the session and drives the main loop until ctx is
// cancelled. Failure to establish the very first session is fatal.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.conn.SetHandlers(muc.Handlers{
		OnPresence:    b.onPresence,
		OnMessage:     b.onMessage,
		OnIQ:          b.onIQ,
		OnRoomCreated: b.handleRoomCreated,
	})

	if err := b.conn.Connect(ctx); err != nil {
		return err
	}
	b.connected.Store(true)

	if err := b.rejoinAll(); err != nil {
		if !apperrors.IsTransportLost(err) {
			return err
		}
		b.reconnect(ctx)
	}
	b.scheduleRefillAll()
	b.armCleanup()
	defer b.stopCleanupTimer()

	for {
		if ctx.Err() != nil {
			b.conn.Close()
			return ctx.Err()
		}

		b.tasks.drain()

		if b.cleanupDue.CompareAndSwap(true, false) {
			b.sweep()
			b.armCleanup()
		}

		if _, err := b.conn.Pump(b.cfg.PollTimeout()); err != nil {
			if !apperrors.IsTransportLost(err) {
				return err
			}
			b.reconnect(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// reconnect blocks until the session is back. Fixed delay, attempt counter,
// no backoff: if the remote service is down for long, we simply keep trying.
func (b *Bot) reconnect(ctx context.Context) {
	b.connected.Store(false)
	b.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.cfg.ReconnectDelay()):
		}

		attempt := b.reconnects.Add(1)
		if err := b.conn.Connect(ctx); err != nil {
			b.log.Warn().Err(err).Int64("attempt", attempt).Msg("reconnect failed")
			continue
		}

		b.connected.Store(true)
		b.log.Info().Int64("attempt", attempt).Msg("reconnected")

		if err := b.rejoinAll(); err != nil {
			b.log.Warn().Err(err).Msg("session lost during rejoin")
			b.connected.Store(false)
			b.conn.Close()
			continue
		}
		b.scheduleRefillAll()
		return
	}
}

func (b *Bot) onPresence(p muc.Presence) {
	h, ok := b.handlers[p.Room]
	if !ok {
		b.log.Debug().Str("room", p.Room).Str("nick", p.Nick).Msg("presence for untracked room")
		return
	}
	switch p.Type {
	case muc.PresenceJoin:
		h.onJoin(p)
	case muc.PresenceLeave:
		h.onLeave(p)
	default:
		b.log.Warn().Str("room", p.Room).Str("type", string(p.Type)).Msg("presence with unknown type, ignoring")
	}
}

func (b *Bot) onMessage(m muc.Message) {
	h, ok := b.handlers[m.Room]
	if !ok {
		b.log.Debug().Str("room", m.Room).Msg("message for untracked room")
		return
	}
	h.onMessage(m)
}

func (b *Bot) onIQ(iq muc.IQ) {
	switch iq.Type {
	case muc.IQResult, muc.IQError:
		b.surveys.handle(b.ctx, iq)
	default:
		b.log.Debug().Str("id", iq.ID).Str("type", string(iq.Type)).Msg("unsolicited iq, ignoring")
	}
}

// schedule appends deferred work to the FIFO task queue, drained at the top
// of the next main-loop iteration. Callbacks must use this instead of doing
// follow-up work inline.
func (b *Bot) schedule(name string, fn func()) {
	b.tasks.push(name, fn)
}

func (b *Bot) setStatus(room *model.Room, status model.RoomStatus) {
	if room.Status == status {
		return
	}
	if err := b.rooms.SetStatus(b.ctx, room.JID, status); err != nil {
		b.log.Error().Err(err).Str("room", room.JID).Str("status", string(status)).Msg("failed to persist status")
		return
	}
	b.log.Info().
		Str("room", room.JID).
		Str("kind", string(room.Kind)).
		Str("from", string(room.Status)).
		Str("to", string(status)).
		Msg("room status changed")
	room.Status = status
	room.StatusChangedAt = time.Now()
}

func (b *Bot) lookupToken(value string) *model.AccessToken {
	if value == "" {
		return nil
	}
	token, err := b.tokens.Find(b.ctx, value)
	if err != nil {
		b.log.Warn().Err(err).Msg("token lookup failed")
		return nil
	}
	return token
}

func (b *Bot) addHandler(h roomHandler) {
	b.handlers[h.jid()] = h
	b.roomsTracked.Store(int64(len(b.handlers)))
}

func (b *Bot) removeHandler(jid string) {
	delete(b.handlers, jid)
	b.roomsTracked.Store(int64(len(b.handlers)))
}

func (b *Bot) newHandler(room *model.Room) roomHandler {
	base := baseRoom{
		bot:       b,
		room:      room,
		occupants: make(map[string]muc.Presence),
		ignored:   make(map[string]bool),
	}
	switch room.Kind {
	case model.KindOne2One:
		return &one2oneRoom{baseRoom: base}
	case model.KindGroup:
		return &groupRoom{baseRoom: base}
	case model.KindLobby:
		return &lobbyRoom{baseRoom: base}
	case model.KindWaiting:
		return &waitingRoom{baseRoom: base}
	}
	return nil
}

// armCleanup schedules the next sweep. Large intervals are split into
// shorter timer re-arms so a missed check never drifts past MaxCleanupArm.
func (b *Bot) armCleanup() {
	b.cleanupMu.Lock()
	b.nextSweep = time.Now().Add(b.cfg.CleanupInterval())
	b.cleanupMu.Unlock()
	b.armCleanupCheck()
}

func (b *Bot) armCleanupCheck() {
	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	d := time.Until(b.nextSweep)
	if d > config.MaxCleanupArm {
		d = config.MaxCleanupArm
	}
	if d < 0 {
		d = 0
	}
	b.cleanupTimer = time.AfterFunc(d, func() {
		b.cleanupMu.Lock()
		due := !time.Now().Before(b.nextSweep)
		b.cleanupMu.Unlock()
		if due {
			b.cleanupDue.Store(true)
			return
		}
		b.armCleanupCheck()
	})
}

func (b *Bot) stopCleanupTimer() {
	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()
	if b.cleanupTimer != nil {
		b.cleanupTimer.Stop()
	}
}

// Health is a point-in-time snapshot for the liveness endpoint.
type Health struct {
	Connected    bool  `json:"connected"`
	Reconnects   int64 `json:"reconnects"`
	RoomsTracked int64 `json:"roomsTracked"`
	WaitingDepth int64 `json:"waitingDepth"`
}

func (b *Bot) Health() Health {
	return Health{
		Connected:    b.connected.Load(),
		Reconnects:   b.reconnects.Load(),
		RoomsTracked: b.roomsTracked.Load(),
		WaitingDepth: b.waitingDepth.Load(),
	}
}
