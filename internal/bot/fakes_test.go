package bot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careline/roompool-bot/internal/config"
	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/muc"
)

// fakeConn scripts the protocol session and records everything sent.
type fakeConn struct {
	creates   []muc.Create
	joins     []muc.Join
	leaves    []string
	destroys  []string
	kicks     []muc.Kick
	invites   []muc.Invite
	privates  []muc.Message
	groups    []muc.Message
	moderator []muc.RoleChange
	surveys   []muc.SurveyRequest
	surveyN   int
	handlers  muc.Handlers

	// pump, when set, scripts what a Pump call delivers.
	pump func(timeout time.Duration) (bool, error)
	// inviteErr, when set, makes every Invite fail.
	inviteErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{}
}

func (c *fakeConn) Connect(ctx context.Context) error { return nil }
func (c *fakeConn) Close() error                      { return nil }

func (c *fakeConn) Pump(timeout time.Duration) (bool, error) {
	if c.pump != nil {
		return c.pump(timeout)
	}
	return false, nil
}

func (c *fakeConn) SetHandlers(h muc.Handlers) { c.handlers = h }

func (c *fakeConn) Join(room, nick, password string, maxHistory int) error {
	c.joins = append(c.joins, muc.Join{Room: room, Nick: nick, Password: password, MaxHistory: maxHistory})
	return nil
}

func (c *fakeConn) Leave(room string) error {
	c.leaves = append(c.leaves, room)
	return nil
}

func (c *fakeConn) CreateRoom(room string, cfg muc.RoomConfig) error {
	c.creates = append(c.creates, muc.Create{Room: room, Config: cfg})
	return nil
}

func (c *fakeConn) Invite(via, nick, room, password string) error {
	if c.inviteErr != nil {
		return c.inviteErr
	}
	c.invites = append(c.invites, muc.Invite{Via: via, Nick: nick, Room: room, Password: password})
	return nil
}

func (c *fakeConn) Kick(room, nick, reason string) error {
	c.kicks = append(c.kicks, muc.Kick{Room: room, Nick: nick, Reason: reason})
	return nil
}

func (c *fakeConn) Destroy(room string) error {
	c.destroys = append(c.destroys, room)
	return nil
}

func (c *fakeConn) GrantModerator(room, nick string) error {
	c.moderator = append(c.moderator, muc.RoleChange{Room: room, Nick: nick, Role: "moderator"})
	return nil
}

func (c *fakeConn) SendGroup(room, body string) error {
	c.groups = append(c.groups, muc.Message{Room: room, Body: body})
	return nil
}

func (c *fakeConn) SendPrivate(room, nick, body string) error {
	c.privates = append(c.privates, muc.Message{Room: room, To: nick, Body: body, Private: true})
	return nil
}

func (c *fakeConn) SendSurvey(room, nick string, req muc.SurveyRequest) (string, error) {
	c.surveyN++
	id := fmt.Sprintf("iq-%d", c.surveyN)
	req.Entry = id
	c.surveys = append(c.surveys, req)
	return id, nil
}

// fakeRoomRepo is an in-memory room store keeping insertion order.
type fakeRoomRepo struct {
	rooms []*model.Room
	seq   int64
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{}
}

func (r *fakeRoomRepo) add(room *model.Room) *model.Room {
	r.seq++
	room.ID = r.seq
	if room.StatusChangedAt.IsZero() {
		room.StatusChangedAt = time.Now()
	}
	if room.ModifiedAt.IsZero() {
		room.ModifiedAt = time.Now()
	}
	r.rooms = append(r.rooms, room)
	return room
}

func (r *fakeRoomRepo) get(jid string) *model.Room {
	for _, room := range r.rooms {
		if room.JID == jid {
			return room
		}
	}
	return nil
}

func (r *fakeRoomRepo) Create(ctx context.Context, kind model.RoomKind, jid, password string) (*model.Room, error) {
	room := &model.Room{
		Kind:     kind,
		JID:      jid,
		Password: password,
		Status:   model.StatusAvailable,
	}
	return r.add(room), nil
}

func (r *fakeRoomRepo) FindByJID(ctx context.Context, jid string) (*model.Room, error) {
	return r.get(jid), nil
}

func (r *fakeRoomRepo) FindByStatus(ctx context.Context, kind model.RoomKind, statuses ...model.RoomStatus) ([]model.Room, error) {
	var out []model.Room
	for _, room := range r.rooms {
		if room.Kind != kind {
			continue
		}
		for _, s := range statuses {
			if room.Status == s {
				out = append(out, *room)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) FindNotDestroyed(ctx context.Context, kind model.RoomKind) ([]model.Room, error) {
	var out []model.Room
	for _, room := range r.rooms {
		if room.Kind == kind && room.Status != model.StatusDestroyed {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) FindTimedOut(ctx context.Context, kind model.RoomKind, status model.RoomStatus, olderThan time.Duration) ([]model.Room, error) {
	cutoff := time.Now().Add(-olderThan)
	var out []model.Room
	for _, room := range r.rooms {
		if room.Kind == kind && room.Status == status && room.StatusChangedAt.Before(cutoff) {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) FindStaleAssigned(ctx context.Context, olderThan time.Duration) ([]model.Room, error) {
	cutoff := time.Now().Add(-olderThan)
	var out []model.Room
	for _, room := range r.rooms {
		if room.Kind != model.KindOne2One || room.StaffID == nil {
			continue
		}
		if (room.Status == model.StatusAvailable || room.Status == model.StatusAvailableForInvitation) &&
			room.ModifiedAt.Before(cutoff) {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) CountByStatus(ctx context.Context, kind model.RoomKind, status model.RoomStatus) (int, error) {
	n := 0
	for _, room := range r.rooms {
		if room.Kind == kind && room.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *fakeRoomRepo) SetStatus(ctx context.Context, jid string, status model.RoomStatus) error {
	room := r.get(jid)
	if room == nil {
		return fmt.Errorf("room %s not found", jid)
	}
	room.Status = status
	room.StatusChangedAt = time.Now()
	room.ModifiedAt = time.Now()
	return nil
}

func (r *fakeRoomRepo) SetChat(ctx context.Context, jid string, chatID int64) error {
	room := r.get(jid)
	if room == nil {
		return fmt.Errorf("room %s not found", jid)
	}
	room.ChatID = &chatID
	return nil
}

func (r *fakeRoomRepo) SetPairedWaiting(ctx context.Context, lobbyJID string, waitingJID *string) error {
	room := r.get(lobbyJID)
	if room == nil {
		return fmt.Errorf("room %s not found", lobbyJID)
	}
	room.PairedWaitingJID = waitingJID
	return nil
}

func (r *fakeRoomRepo) ClaimSlot(ctx context.Context, jid string, role model.Role, participantID, nick string) (bool, error) {
	room := r.get(jid)
	if room == nil {
		return false, fmt.Errorf("room %s not found", jid)
	}
	switch role {
	case model.RoleStaff:
		if room.StaffID != nil {
			return false, nil
		}
		room.StaffID = &participantID
		room.StaffNick = &nick
	case model.RoleClient:
		if room.ClientID != nil {
			return false, nil
		}
		now := time.Now()
		room.ClientID = &participantID
		room.ClientNick = &nick
		room.ClientAllocatedAt = &now
	}
	return true, nil
}

func (r *fakeRoomRepo) MarkCleanExit(ctx context.Context, jid string, clean bool) error {
	room := r.get(jid)
	if room == nil {
		return fmt.Errorf("room %s not found", jid)
	}
	room.CleanExit = clean
	return nil
}

func (r *fakeRoomRepo) DeleteDestroyed(ctx context.Context, kind model.RoomKind) (int64, error) {
	var kept []*model.Room
	var purged int64
	for _, room := range r.rooms {
		if room.Kind == kind && room.Status == model.StatusDestroyed {
			purged++
			continue
		}
		kept = append(kept, room)
	}
	r.rooms = kept
	return purged, nil
}

// fakeChatRepo records transcripts in memory.
type fakeChatRepo struct {
	seq     int64
	chats   []*model.Chat
	events  []model.ChatEvent
	surveys []model.SurveyAnswer
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{}
}

func (r *fakeChatRepo) Create(ctx context.Context, roomJID string) (*model.Chat, error) {
	r.seq++
	chat := &model.Chat{ID: r.seq, RoomJID: roomJID, StartedAt: time.Now()}
	r.chats = append(r.chats, chat)
	return chat, nil
}

func (r *fakeChatRepo) AppendEvent(ctx context.Context, chatID int64, typ model.ChatEventType, nick, body string) error {
	r.events = append(r.events, model.ChatEvent{ChatID: chatID, Type: typ, Nick: nick, Body: body})
	return nil
}

func (r *fakeChatRepo) AttachSurvey(ctx context.Context, chatID int64, position model.SurveyPosition, tokenValue, answers string) error {
	r.surveys = append(r.surveys, model.SurveyAnswer{ChatID: chatID, Position: position, TokenValue: tokenValue, Answers: answers})
	return nil
}

func (r *fakeChatRepo) eventsOfType(typ model.ChatEventType) []model.ChatEvent {
	var out []model.ChatEvent
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fakeTokenRepo is an in-memory token store without expiry.
type fakeTokenRepo struct {
	tokens map[string]*model.AccessToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*model.AccessToken)}
}

func (r *fakeTokenRepo) Create(ctx context.Context, value string, role model.Role, hashedOrigin string, ttl time.Duration) (*model.AccessToken, error) {
	token := &model.AccessToken{Value: value, Role: role, HashedOrigin: hashedOrigin, ExpiresAt: time.Now().Add(ttl)}
	r.tokens[value] = token
	return token, nil
}

func (r *fakeTokenRepo) Find(ctx context.Context, value string) (*model.AccessToken, error) {
	return r.tokens[value], nil
}

func (r *fakeTokenRepo) Bind(ctx context.Context, value, ownerID string) error {
	if t, ok := r.tokens[value]; ok {
		t.OwnerID = ownerID
	}
	return nil
}

func (r *fakeTokenRepo) Assign(ctx context.Context, value, roomJID string) error {
	if t, ok := r.tokens[value]; ok {
		t.RoomJID = roomJID
	}
	return nil
}

func (r *fakeTokenRepo) Delete(ctx context.Context, value string) error {
	delete(r.tokens, value)
	return nil
}

type testEnv struct {
	bot    *Bot
	conn   *fakeConn
	rooms  *fakeRoomRepo
	chats  *fakeChatRepo
	tokens *fakeTokenRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		BotNick:                "roombot",
		MUCDomain:              "muc.test",
		SitePrefix:             "care",
		One2OnePoolSize:        2,
		GroupPoolSize:          1,
		LobbyPoolSize:          1,
		WaitingPoolSize:        1,
		InvitationPoolSize:     1,
		PollTimeoutMillis:      10,
		ReconnectDelaySeconds:  1,
		CleanupIntervalSeconds: 300,
		RoomTimeoutSeconds:     1800,
	}
	conn := newFakeConn()
	rooms := newFakeRoomRepo()
	chats := newFakeChatRepo()
	tokens := newFakeTokenRepo()

	b := New(cfg, conn, rooms, chats, tokens, zerolog.Nop())
	b.ctx = context.Background()

	return &testEnv{bot: b, conn: conn, rooms: rooms, chats: chats, tokens: tokens}
}

// addRoom seeds a persisted room plus its live handler, the state a pool
// room is in right after creation.
func (e *testEnv) addRoom(kind model.RoomKind, jid string, status model.RoomStatus) *model.Room {
	room := e.rooms.add(&model.Room{Kind: kind, JID: jid, Password: "pw-" + jid, Status: status})
	e.bot.addHandler(e.bot.newHandler(room))
	return room
}

func (e *testEnv) handler(jid string) roomHandler {
	return e.bot.handlers[jid]
}

func join(room, nick string) muc.Presence {
	return muc.Presence{Room: room, Nick: nick, Type: muc.PresenceJoin}
}

func joinWithToken(room, nick, token string) muc.Presence {
	p := join(room, nick)
	p.Token = token
	return p
}

func leave(room, nick string, clean bool) muc.Presence {
	p := muc.Presence{Room: room, Nick: nick, Type: muc.PresenceLeave}
	if clean {
		p.Status = "clean exit"
	}
	return p
}
