package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttendanceRepository struct {
	*base.Repository
}

func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{Repository: base.NewRepository(pool)}
}

// Create добавляет участника занятия
func (r *AttendanceRepository) Create(ctx context.Context, a *model.Attendance) error {
	query := `
		INSERT INTO attendances (session_id, requester_id)
		VALUES ($1, $2)
	`

	if _, err := r.ExecAffected(ctx, query, a.SessionID, a.RequesterID); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}

	return nil
}

// Get получает участника занятия
func (r *AttendanceRepository) Get(ctx context.Context, sessionID, requesterID int64) (*model.Attendance, error) {
	query := `
		SELECT session_id, requester_id, joined_at
		FROM attendances
		WHERE session_id = $1 AND requester_id = $2
	`

	var a model.Attendance
	err := r.QueryRow(ctx, query, sessionID, requesterID).Scan(&a.SessionID, &a.RequesterID, &a.JoinedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendance: %w", err)
	}

	return &a, nil
}

// ListBySession все участники занятия
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID int64) ([]*model.Attendance, error) {
	query := `
		SELECT session_id, requester_id, joined_at
		FROM attendances
		WHERE session_id = $1
		ORDER BY requester_id
	`

	rows, err := r.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendances: %w", err)
	}
	defer rows.Close()

	var list []*model.Attendance
	for rows.Next() {
		var a model.Attendance
		if err := rows.Scan(&a.SessionID, &a.RequesterID, &a.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		list = append(list, &a)
	}

	return list, rows.Err()
}

// MarkJoined фиксирует первое подключение, повторное ничего не меняет
func (r *AttendanceRepository) MarkJoined(ctx context.Context, sessionID, requesterID int64, at time.Time) error {
	query := `
		UPDATE attendances
		SET joined_at = $1
		WHERE session_id = $2 AND requester_id = $3 AND joined_at IS NULL
	`

	if _, err := r.ExecAffected(ctx, query, at, sessionID, requesterID); err != nil {
		return fmt.Errorf("mark joined: %w", err)
	}

	return nil
}
