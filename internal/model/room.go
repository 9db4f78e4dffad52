package model

import "time"

// Room is one pooled chat room row. All kinds share the base columns; the
// staff/client slots are only meaningful for one2one rooms and the paired
// waiting JID only for lobby rooms.
type Room struct {
	ID              int64      `db:"id" json:"id"`
	Kind            RoomKind   `db:"kind" json:"kind"`
	JID             string     `db:"jid" json:"jid"`
	Password        string     `db:"password" json:"-"`
	Status          RoomStatus `db:"status" json:"status"`
	StatusChangedAt time.Time  `db:"status_changed_at" json:"statusChangedAt"`
	ModifiedAt      time.Time  `db:"modified_at" json:"modifiedAt"`
	ChatID          *int64     `db:"chat_id" json:"chatId,omitempty"`
	CleanExit       bool       `db:"clean_exit" json:"cleanExit"`

	StaffID           *string    `db:"staff_id" json:"staffId,omitempty"`
	StaffNick         *string    `db:"staff_nick" json:"staffNick,omitempty"`
	ClientID          *string    `db:"client_id" json:"clientId,omitempty"`
	ClientNick        *string    `db:"client_nick" json:"clientNick,omitempty"`
	ClientAllocatedAt *time.Time `db:"client_allocated_at" json:"clientAllocatedAt,omitempty"`

	PairedWaitingJID *string `db:"paired_waiting_jid" json:"pairedWaitingJid,omitempty"`
}

// HasStaff reports whether a staff participant is bound to this room.
func (r *Room) HasStaff() bool { return r.StaffID != nil }

// HasClient reports whether a client participant is bound to this room.
func (r *Room) HasClient() bool { return r.ClientID != nil }
