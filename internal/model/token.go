package model

import "time"

// AccessToken is the opaque credential minted per connection attempt. It
// correlates a live protocol identity with a persisted participant and, once
// assigned, with a room. Tokens are single-use per room assignment but may be
// re-presented to recover an in-progress session until they expire.
type AccessToken struct {
	Value        string    `redis:"-" json:"value"`
	Role         Role      `redis:"role" json:"role"`
	HashedOrigin string    `redis:"hashed_origin" json:"hashedOrigin"`
	OwnerID      string    `redis:"owner_id" json:"ownerId,omitempty"`
	RoomJID      string    `redis:"room_jid" json:"roomJid,omitempty"`
	ExpiresAt    time.Time `redis:"expires_at" json:"expiresAt"`
}

// Bound reports whether the token has been tied to a participant identity.
func (t *AccessToken) Bound() bool { return t.OwnerID != "" }

// Assigned reports whether the token has been spent on a room.
func (t *AccessToken) Assigned() bool { return t.RoomJID != "" }
