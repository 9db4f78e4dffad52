package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/careline/roompool-bot/internal/model"
)

// RoomRepository is the persistent room store. All calls are synchronous and
// atomic at row granularity; ClaimSlot is the store-side "claim if unassigned"
// primitive that guards the one concurrent-admission case.
type RoomRepository interface {
	Create(ctx context.Context, kind model.RoomKind, jid, password string) (*model.Room, error)
	FindByJID(ctx context.Context, jid string) (*model.Room, error)
	FindByStatus(ctx context.Context, kind model.RoomKind, statuses ...model.RoomStatus) ([]model.Room, error)
	FindNotDestroyed(ctx context.Context, kind model.RoomKind) ([]model.Room, error)
	FindTimedOut(ctx context.Context, kind model.RoomKind, status model.RoomStatus, olderThan time.Duration) ([]model.Room, error)
	FindStaleAssigned(ctx context.Context, olderThan time.Duration) ([]model.Room, error)
	CountByStatus(ctx context.Context, kind model.RoomKind, status model.RoomStatus) (int, error)
	SetStatus(ctx context.Context, jid string, status model.RoomStatus) error
	SetChat(ctx context.Context, jid string, chatID int64) error
	SetPairedWaiting(ctx context.Context, lobbyJID string, waitingJID *string) error
	ClaimSlot(ctx context.Context, jid string, role model.Role, participantID, nick string) (bool, error)
	MarkCleanExit(ctx context.Context, jid string, clean bool) error
	DeleteDestroyed(ctx context.Context, kind model.RoomKind) (int64, error)
}

type roomRepo struct {
	db *sqlx.DB
}

func NewRoomRepository(db *sqlx.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) Create(ctx context.Context, kind model.RoomKind, jid, password string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		INSERT INTO rooms (kind, jid, password, status, status_changed_at, modified_at)
		VALUES ($1, $2, $3, 'available', NOW(), NOW())
		RETURNING *
	`, kind, jid, password)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) FindByJID(ctx context.Context, jid string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		SELECT * FROM rooms WHERE jid = $1
	`, jid)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) FindByStatus(ctx context.Context, kind model.RoomKind, statuses ...model.RoomStatus) ([]model.Room, error) {
	query, args, err := sqlx.In(`
		SELECT * FROM rooms
		WHERE kind = ? AND status IN (?)
		ORDER BY status_changed_at ASC
	`, kind, statuses)
	if err != nil {
		return nil, fmt.Errorf("build status query: %w", err)
	}

	var rooms []model.Room
	if err := r.db.SelectContext(ctx, &rooms, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepo) FindNotDestroyed(ctx context.Context, kind model.RoomKind) ([]model.Room, error) {
	var rooms []model.Room
	err := r.db.SelectContext(ctx, &rooms, `
		SELECT * FROM rooms
		WHERE kind = $1 AND status <> 'destroyed'
		ORDER BY id ASC
	`, kind)
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepo) FindTimedOut(ctx context.Context, kind model.RoomKind, status model.RoomStatus, olderThan time.Duration) ([]model.Room, error) {
	var rooms []model.Room
	err := r.db.SelectContext(ctx, &rooms, `
		SELECT * FROM rooms
		WHERE kind = $1 AND status = $2 AND status_changed_at < $3
	`, kind, status, time.Now().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// FindStaleAssigned finds one2one rooms still 'available' with a staff slot
// pre-assigned whose staff never showed up.
func (r *roomRepo) FindStaleAssigned(ctx context.Context, olderThan time.Duration) ([]model.Room, error) {
	var rooms []model.Room
	err := r.db.SelectContext(ctx, &rooms, `
		SELECT * FROM rooms
		WHERE kind = 'one2one'
		AND status IN ('available', 'availableForInvitation')
		AND staff_id IS NOT NULL
		AND modified_at < $1
	`, time.Now().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepo) CountByStatus(ctx context.Context, kind model.RoomKind, status model.RoomStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM rooms WHERE kind = $1 AND status = $2
	`, kind, status)
	return count, err
}

func (r *roomRepo) SetStatus(ctx context.Context, jid string, status model.RoomStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET
			status = $2,
			status_changed_at = NOW(),
			modified_at = NOW()
		WHERE jid = $1
	`, jid, status)
	return err
}

func (r *roomRepo) SetChat(ctx context.Context, jid string, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET chat_id = $2, modified_at = NOW() WHERE jid = $1
	`, jid, chatID)
	return err
}

func (r *roomRepo) SetPairedWaiting(ctx context.Context, lobbyJID string, waitingJID *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET paired_waiting_jid = $2, modified_at = NOW() WHERE jid = $1
	`, lobbyJID, waitingJID)
	return err
}

// ClaimSlot binds a participant to the staff or client slot only if that slot
// is still unassigned. Returns false when another admission won the race.
func (r *roomRepo) ClaimSlot(ctx context.Context, jid string, role model.Role, participantID, nick string) (bool, error) {
	var query string
	switch role {
	case model.RoleStaff:
		query = `
			UPDATE rooms SET
				staff_id = $2, staff_nick = $3, modified_at = NOW()
			WHERE jid = $1 AND staff_id IS NULL
		`
	case model.RoleClient:
		query = `
			UPDATE rooms SET
				client_id = $2, client_nick = $3,
				client_allocated_at = NOW(), modified_at = NOW()
			WHERE jid = $1 AND client_id IS NULL
		`
	default:
		return false, fmt.Errorf("unknown role %q", role)
	}

	result, err := r.db.ExecContext(ctx, query, jid, participantID, nick)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *roomRepo) MarkCleanExit(ctx context.Context, jid string, clean bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET clean_exit = $2, modified_at = NOW() WHERE jid = $1
	`, jid, clean)
	return err
}

func (r *roomRepo) DeleteDestroyed(ctx context.Context, kind model.RoomKind) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM rooms WHERE kind = $1 AND status = 'destroyed'
	`, kind)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
