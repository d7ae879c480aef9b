package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateSession занятие для этой заявки уже создано
var ErrDuplicateSession = errors.New("session for booking request already exists")

type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{Repository: base.NewRepository(pool)}
}

const sessionColumns = `
	id, booking_request_id, provider_id, slot_id, start_time, end_time, status, meeting_ref,
	base_rate, payer_amount, payee_amount, started_at, ended_at, created_at`

// Create создаёт занятие. Уникальный индекс по booking_request_id не даёт создать второе.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (
			booking_request_id, provider_id, slot_id, start_time, end_time, status,
			base_rate, payer_amount, payee_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		s.BookingRequestID,
		s.ProviderID,
		s.SlotID,
		s.StartTime,
		s.EndTime,
		s.Status,
		s.BaseRate,
		s.PayerAmount,
		s.PayeeAmount,
	).Scan(&s.ID, &s.CreatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetByID получает занятие по ID
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return s, nil
}

// GetByBookingRequest получает занятие, созданное из заявки
func (r *SessionRepository) GetByBookingRequest(ctx context.Context, requestID int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE booking_request_id = $1`

	s, err := scanSession(r.QueryRow(ctx, query, requestID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by booking request: %w", err)
	}

	return s, nil
}

// ListByProvider занятия преподавателя в диапазоне времени
func (r *SessionRepository) ListByProvider(ctx context.Context, providerID int64, from, to time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions by provider: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// UpdateStatus условный переход статуса занятия
func (r *SessionRepository) UpdateStatus(ctx context.Context, id int64, from, to model.SessionStatus, at time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = $1::text,
		    started_at = CASE WHEN $1::text = 'in_progress' THEN $4::timestamptz ELSE started_at END,
		    ended_at = CASE WHEN $1::text IN ('completed', 'cancelled') THEN $4::timestamptz ELSE ended_at END
		WHERE id = $2 AND status = $3
	`

	affected, err := r.ExecAffected(ctx, query, to, id, from, at)
	if err != nil {
		return false, fmt.Errorf("update session status: %w", err)
	}

	return affected == 1, nil
}

// SetMeetingRef записывает ссылку, только если её ещё нет
func (r *SessionRepository) SetMeetingRef(ctx context.Context, id int64, ref string) (bool, error) {
	query := `
		UPDATE sessions
		SET meeting_ref = $1
		WHERE id = $2 AND meeting_ref IS NULL
	`

	affected, err := r.ExecAffected(ctx, query, ref, id)
	if err != nil {
		return false, fmt.Errorf("set meeting ref: %w", err)
	}

	return affected == 1, nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID,
		&s.BookingRequestID,
		&s.ProviderID,
		&s.SlotID,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.MeetingRef,
		&s.BaseRate,
		&s.PayerAmount,
		&s.PayeeAmount,
		&s.StartedAt,
		&s.EndedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
