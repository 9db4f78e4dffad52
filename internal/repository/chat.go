package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/careline/roompool-bot/internal/model"
)

// ChatRepository persists conversations, their transcript events, and
// answered surveys.
type ChatRepository interface {
	Create(ctx context.Context, roomJID string) (*model.Chat, error)
	AppendEvent(ctx context.Context, chatID int64, typ model.ChatEventType, nick, body string) error
	AttachSurvey(ctx context.Context, chatID int64, position model.SurveyPosition, tokenValue, answers string) error
}

type chatRepo struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) Create(ctx context.Context, roomJID string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.GetContext(ctx, &chat, `
		INSERT INTO chats (room_jid, started_at)
		VALUES ($1, NOW())
		RETURNING *
	`, roomJID)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepo) AppendEvent(ctx context.Context, chatID int64, typ model.ChatEventType, nick, body string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_events (chat_id, type, nick, body, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, chatID, typ, nick, body)
	return err
}

func (r *chatRepo) AttachSurvey(ctx context.Context, chatID int64, position model.SurveyPosition, tokenValue, answers string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO survey_answers (chat_id, position, token_value, answers, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, chatID, position, tokenValue, answers)
	return err
}
