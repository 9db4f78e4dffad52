package muc

import "encoding/json"

// The service speaks JSON frames over one websocket. Every frame is an
// Envelope with exactly one payload set, selected by Kind.

type FrameKind string

const (
	FrameAuth        FrameKind = "auth"
	FrameAuthResult  FrameKind = "authResult"
	FramePresence    FrameKind = "presence"
	FrameMessage     FrameKind = "message"
	FrameIQ          FrameKind = "iq"
	FrameJoin        FrameKind = "join"
	FrameLeave       FrameKind = "leave"
	FrameCreate      FrameKind = "create"
	FrameRoomCreated FrameKind = "roomCreated"
	FrameInvite      FrameKind = "invite"
	FrameKick        FrameKind = "kick"
	FrameDestroy     FrameKind = "destroy"
	FrameRole        FrameKind = "role"
)

type Envelope struct {
	Kind        FrameKind    `json:"kind"`
	Auth        *Auth        `json:"auth,omitempty"`
	AuthResult  *AuthResult  `json:"authResult,omitempty"`
	Presence    *Presence    `json:"presence,omitempty"`
	Message     *Message     `json:"message,omitempty"`
	IQ          *IQ          `json:"iq,omitempty"`
	Join        *Join        `json:"join,omitempty"`
	Leave       *Leave       `json:"leave,omitempty"`
	Create      *Create      `json:"create,omitempty"`
	RoomCreated *RoomCreated `json:"roomCreated,omitempty"`
	Invite      *Invite      `json:"invite,omitempty"`
	Kick        *Kick        `json:"kick,omitempty"`
	Destroy     *Destroy     `json:"destroy,omitempty"`
	Role        *RoleChange  `json:"role,omitempty"`
}

type Auth struct {
	JID    string `json:"jid"`
	Secret string `json:"secret"`
}

type AuthResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// PresenceType distinguishes arrivals from departures.
type PresenceType string

const (
	PresenceJoin  PresenceType = "join"
	PresenceLeave PresenceType = "leave"
)

// StatusCodeKicked annotates a leave presence caused by a kick.
const StatusCodeKicked = 307

// cleanExitStatus is the free-text status a departing participant sets to
// signal an intentional end of session.
const cleanExitStatus = "clean exit"

type Presence struct {
	Room        string       `json:"room"`
	Nick        string       `json:"nick"`
	Type        PresenceType `json:"type"`
	Token       string       `json:"token,omitempty"`
	Status      string       `json:"status,omitempty"`
	StatusCodes []int        `json:"statusCodes,omitempty"`
	Role        string       `json:"role,omitempty"`
	Affiliation string       `json:"affiliation,omitempty"`
}

// Clean reports whether the departure carried the intentional-exit signal.
func (p *Presence) Clean() bool {
	return p.Status == cleanExitStatus
}

// Kicked reports whether the leave was caused by a kick.
func (p *Presence) Kicked() bool {
	for _, code := range p.StatusCodes {
		if code == StatusCodeKicked {
			return true
		}
	}
	return false
}

type Message struct {
	Room    string `json:"room"`
	Nick    string `json:"nick"`
	To      string `json:"to,omitempty"`
	Body    string `json:"body"`
	Private bool   `json:"private,omitempty"`
}

// IQType follows the usual get/set/result/error request-response split.
type IQType string

const (
	IQSet    IQType = "set"
	IQResult IQType = "result"
	IQError  IQType = "error"
)

// IQ is the correlated request/response extension. The responder must echo
// the ID of the request it answers.
type IQ struct {
	ID      string          `json:"id"`
	Type    IQType          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Nick    string          `json:"nick,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SurveyRequest is the IQ payload asking a participant to fill in a short
// questionnaire. Entry mirrors the IQ id so the answer can be matched even
// when relayed through another surface.
type SurveyRequest struct {
	Entry    string `json:"entry"`
	Position string `json:"position"`
	Token    string `json:"token"`
}

// SurveyResult is the echoed answer payload.
type SurveyResult struct {
	Entry   string `json:"entry"`
	Answers string `json:"answers"`
}

type Join struct {
	Room       string `json:"room"`
	Nick       string `json:"nick"`
	Password   string `json:"password,omitempty"`
	MaxHistory int    `json:"maxHistory"`
}

type Leave struct {
	Room   string `json:"room"`
	Status string `json:"status,omitempty"`
}

// RoomConfig is the configuration pushed at room creation: unlisted,
// invite-only disabled, non-persistent, password-locked, capped occupancy.
// MaxOccupants 0 means unbounded.
type RoomConfig struct {
	Password     string `json:"password"`
	MaxOccupants int    `json:"maxOccupants"`
	Public       bool   `json:"public"`
	Persistent   bool   `json:"persistent"`
	AllowInvites bool   `json:"allowInvites"`
}

type Create struct {
	Room   string     `json:"room"`
	Config RoomConfig `json:"config"`
}

// RoomCreated is the asynchronous answer to a Create: only on OK has the
// service accepted both creation and configuration.
type RoomCreated struct {
	Room   string `json:"room"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Invite is a mediated invitation: the invitee (addressed by nick inside Via)
// is handed the target room and its password.
type Invite struct {
	Via      string `json:"via"`
	Nick     string `json:"nick"`
	Room     string `json:"room"`
	Password string `json:"password"`
}

type Kick struct {
	Room   string `json:"room"`
	Nick   string `json:"nick"`
	Reason string `json:"reason,omitempty"`
}

type Destroy struct {
	Room string `json:"room"`
}

type RoleChange struct {
	Room string `json:"room"`
	Nick string `json:"nick"`
	Role string `json:"role"`
}
