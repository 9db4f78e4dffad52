package model

import "time"

// Chat is the persisted conversation a one2one or group room produces.
type Chat struct {
	ID        int64     `db:"id" json:"id"`
	RoomJID   string    `db:"room_jid" json:"roomJid"`
	StartedAt time.Time `db:"started_at" json:"startedAt"`
}

// ChatEventType classifies transcript entries.
type ChatEventType string

const (
	ChatEventJoin    ChatEventType = "join"
	ChatEventLeave   ChatEventType = "leave"
	ChatEventMessage ChatEventType = "message"
)

// ChatEvent is one transcript line.
type ChatEvent struct {
	ID        int64         `db:"id" json:"id"`
	ChatID    int64         `db:"chat_id" json:"chatId"`
	Type      ChatEventType `db:"type" json:"type"`
	Nick      string        `db:"nick" json:"nick"`
	Body      string        `db:"body" json:"body,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// SurveyAnswer records a completed questionnaire against a conversation.
type SurveyAnswer struct {
	ID         int64          `db:"id" json:"id"`
	ChatID     int64          `db:"chat_id" json:"chatId"`
	Position   SurveyPosition `db:"position" json:"position"`
	TokenValue string         `db:"token_value" json:"tokenValue"`
	Answers    string         `db:"answers" json:"answers"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}
