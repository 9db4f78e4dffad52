package muc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	apperrors "github.com/careline/roompool-bot/internal/errors"
)

const inboundBuffer = 256

// Handlers receives dispatched inbound frames. Callbacks run on the goroutine
// calling Pump and must not block.
type Handlers struct {
	OnPresence    func(Presence)
	OnMessage     func(Message)
	OnIQ          func(IQ)
	OnRoomCreated func(RoomCreated)
}

type inbound struct {
	env Envelope
	err error
}

// Client owns the single protocol session. A reader goroutine feeds parsed
// frames into a buffered channel; Pump drains that channel on the caller's
// goroutine, so every callback runs single-threaded.
type Client struct {
	serviceURL string
	jid        string
	secret     string

	conn     *websocket.Conn
	stanzas  chan inbound
	handlers Handlers
	log      zerolog.Logger
}

func NewClient(serviceURL, jid, secret string, log zerolog.Logger) *Client {
	return &Client{
		serviceURL: serviceURL,
		jid:        jid,
		secret:     secret,
		log:        log.With().Str("component", "muc").Logger(),
	}
}

func (c *Client) SetHandlers(h Handlers) {
	c.handlers = h
}

// Connect dials the service and authenticates. A rejected authentication is
// returned as an AuthFailed fault; the caller decides whether that is fatal
// (first session) or retryable (reconnect).
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serviceURL, nil)
	if err != nil {
		return apperrors.AuthFailed(err)
	}

	if err := conn.WriteJSON(Envelope{Kind: FrameAuth, Auth: &Auth{JID: c.jid, Secret: c.secret}}); err != nil {
		conn.Close()
		return apperrors.AuthFailed(err)
	}

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		return apperrors.AuthFailed(err)
	}
	if env.Kind != FrameAuthResult || env.AuthResult == nil || !env.AuthResult.OK {
		conn.Close()
		reason := "authentication rejected"
		if env.AuthResult != nil && env.AuthResult.Reason != "" {
			reason = env.AuthResult.Reason
		}
		return apperrors.AuthFailed(fmt.Errorf("%s", reason))
	}

	c.conn = conn
	c.stanzas = make(chan inbound, inboundBuffer)
	go c.readLoop(conn, c.stanzas)

	c.log.Info().Str("jid", c.jid).Msg("session established")
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn, out chan<- inbound) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			out <- inbound{err: err}
			close(out)
			return
		}
		out <- inbound{env: env}
	}
}

// Pump advances the event loop for at most timeout, dispatching every frame
// that arrived. It reports whether anything was processed. A transport-lost
// error means the session is unusable and must be reconnected.
func (c *Client) Pump(timeout time.Duration) (bool, error) {
	processed := false

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case in, ok := <-c.stanzas:
		if err := c.consume(in, ok); err != nil {
			return processed, err
		}
		processed = true
	case <-timer.C:
		return false, nil
	}

	// Drain whatever else is already queued without waiting further.
	for {
		select {
		case in, ok := <-c.stanzas:
			if err := c.consume(in, ok); err != nil {
				return processed, err
			}
			processed = true
		default:
			return processed, nil
		}
	}
}

func (c *Client) consume(in inbound, ok bool) error {
	if !ok {
		return apperrors.TransportLost(fmt.Errorf("stanza channel closed"))
	}
	if in.err != nil {
		return apperrors.TransportLost(in.err)
	}
	c.dispatch(in.env)
	return nil
}

func (c *Client) dispatch(env Envelope) {
	switch env.Kind {
	case FramePresence:
		if env.Presence == nil {
			c.logMalformed(env)
			return
		}
		if c.handlers.OnPresence != nil {
			c.handlers.OnPresence(*env.Presence)
		}
	case FrameMessage:
		if env.Message == nil {
			c.logMalformed(env)
			return
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(*env.Message)
		}
	case FrameIQ:
		if env.IQ == nil {
			c.logMalformed(env)
			return
		}
		if c.handlers.OnIQ != nil {
			c.handlers.OnIQ(*env.IQ)
		}
	case FrameRoomCreated:
		if env.RoomCreated == nil {
			c.logMalformed(env)
			return
		}
		if c.handlers.OnRoomCreated != nil {
			c.handlers.OnRoomCreated(*env.RoomCreated)
		}
	default:
		c.log.Debug().Str("frame", string(env.Kind)).Msg("ignoring unexpected frame")
	}
}

func (c *Client) logMalformed(env Envelope) {
	err := apperrors.New(apperrors.ErrCodeBadStanza, "frame missing its payload")
	c.log.Warn().Err(err).Str("frame", string(env.Kind)).Msg("malformed frame, ignoring")
}

func (c *Client) write(env Envelope) error {
	if c.conn == nil {
		return apperrors.TransportLost(fmt.Errorf("not connected"))
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return apperrors.TransportLost(err)
	}
	return nil
}

func (c *Client) Join(room, nick, password string, maxHistory int) error {
	return c.write(Envelope{Kind: FrameJoin, Join: &Join{
		Room: room, Nick: nick, Password: password, MaxHistory: maxHistory,
	}})
}

func (c *Client) Leave(room string) error {
	return c.write(Envelope{Kind: FrameLeave, Leave: &Leave{Room: room}})
}

// CreateRoom requests creation plus configuration. The answer arrives
// asynchronously as a RoomCreated frame.
func (c *Client) CreateRoom(room string, cfg RoomConfig) error {
	return c.write(Envelope{Kind: FrameCreate, Create: &Create{Room: room, Config: cfg}})
}

func (c *Client) Invite(via, nick, room, password string) error {
	return c.write(Envelope{Kind: FrameInvite, Invite: &Invite{
		Via: via, Nick: nick, Room: room, Password: password,
	}})
}

func (c *Client) Kick(room, nick, reason string) error {
	return c.write(Envelope{Kind: FrameKick, Kick: &Kick{Room: room, Nick: nick, Reason: reason}})
}

func (c *Client) Destroy(room string) error {
	return c.write(Envelope{Kind: FrameDestroy, Destroy: &Destroy{Room: room}})
}

func (c *Client) GrantModerator(room, nick string) error {
	return c.write(Envelope{Kind: FrameRole, Role: &RoleChange{Room: room, Nick: nick, Role: "moderator"}})
}

func (c *Client) SendGroup(room, body string) error {
	return c.write(Envelope{Kind: FrameMessage, Message: &Message{Room: room, Body: body}})
}

func (c *Client) SendPrivate(room, nick, body string) error {
	return c.write(Envelope{Kind: FrameMessage, Message: &Message{
		Room: room, To: nick, Body: body, Private: true,
	}})
}

// SendSurvey issues a correlated survey request to one participant and
// returns the generated correlation id.
func (c *Client) SendSurvey(room, nick string, req SurveyRequest) (string, error) {
	id := uuid.NewString()
	req.Entry = id

	payload, err := marshalPayload(req)
	if err != nil {
		return "", err
	}
	if err := c.write(Envelope{Kind: FrameIQ, IQ: &IQ{
		ID: id, Type: IQSet, Room: room, Nick: nick, Payload: payload,
	}}); err != nil {
		return "", err
	}
	return id, nil
}
