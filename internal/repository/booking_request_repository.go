package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRequestRepository struct {
	*base.Repository
}

func NewBookingRequestRepository(pool *pgxpool.Pool) *BookingRequestRepository {
	return &BookingRequestRepository{Repository: base.NewRepository(pool)}
}

const bookingRequestColumns = `
	id, requester_id, provider_id, slot_id, course_id, title, message,
	proposed_start, proposed_duration, status, payment_status, slot_reserved,
	base_rate, amount_charged, amount_payable, created_at, updated_at`

// Create создаёт новую заявку
func (r *BookingRequestRepository) Create(ctx context.Context, req *model.BookingRequest) error {
	query := `
		INSERT INTO booking_requests (
			requester_id, provider_id, slot_id, course_id, title, message,
			proposed_start, proposed_duration, status, payment_status, slot_reserved,
			base_rate, amount_charged, amount_payable
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		req.RequesterID,
		req.ProviderID,
		req.SlotID,
		req.CourseID,
		req.Title,
		req.Message,
		req.ProposedStart,
		req.ProposedDuration,
		req.Status,
		req.PaymentStatus,
		req.SlotReserved,
		req.BaseRate,
		req.AmountCharged,
		req.AmountPayable,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create booking request: %w", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *BookingRequestRepository) GetByID(ctx context.Context, id int64) (*model.BookingRequest, error) {
	query := `SELECT ` + bookingRequestColumns + ` FROM booking_requests WHERE id = $1`

	req, err := scanBookingRequest(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking request by id: %w", err)
	}

	return req, nil
}

// ListByProvider заявки преподавателя в указанном статусе, старые первыми
func (r *BookingRequestRepository) ListByProvider(ctx context.Context, providerID int64, status model.BookingStatus) ([]*model.BookingRequest, error) {
	query := `
		SELECT ` + bookingRequestColumns + `
		FROM booking_requests
		WHERE provider_id = $1 AND status = $2
		ORDER BY created_at ASC
	`

	return r.list(ctx, "list booking requests by provider", query, providerID, status)
}

// ListByRequester все заявки студента, новые первыми
func (r *BookingRequestRepository) ListByRequester(ctx context.Context, requesterID int64) ([]*model.BookingRequest, error) {
	query := `
		SELECT ` + bookingRequestColumns + `
		FROM booking_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`

	return r.list(ctx, "list booking requests by requester", query, requesterID)
}

// ListUnpaidHolds неоплаченные заявки, держащие слот и не менявшиеся с before
func (r *BookingRequestRepository) ListUnpaidHolds(ctx context.Context, before time.Time) ([]*model.BookingRequest, error) {
	query := `
		SELECT ` + bookingRequestColumns + `
		FROM booking_requests
		WHERE status IN ('draft', 'awaiting_payment')
		  AND payment_status <> 'paid'
		  AND slot_reserved
		  AND updated_at < $1
		ORDER BY updated_at
	`

	return r.list(ctx, "list unpaid holds", query, before)
}

// UpdateState условный переход: строка меняется, только если текущее состояние равно from
func (r *BookingRequestRepository) UpdateState(ctx context.Context, id int64, from, to model.RequestState) (bool, error) {
	query := `
		UPDATE booking_requests
		SET status = $1, payment_status = $2, slot_reserved = $3, updated_at = NOW()
		WHERE id = $4
		  AND status = $5
		  AND payment_status = $6
		  AND slot_reserved = $7
	`

	affected, err := r.ExecAffected(ctx, query,
		to.Status, to.PaymentStatus, to.SlotReserved,
		id,
		from.Status, from.PaymentStatus, from.SlotReserved,
	)
	if err != nil {
		return false, fmt.Errorf("update booking request state: %w", err)
	}

	return affected == 1, nil
}

func (r *BookingRequestRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.BookingRequest, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var reqs []*model.BookingRequest
	for rows.Next() {
		req, err := scanBookingRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking request: %w", err)
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

func scanBookingRequest(row pgx.Row) (*model.BookingRequest, error) {
	var req model.BookingRequest
	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.ProviderID,
		&req.SlotID,
		&req.CourseID,
		&req.Title,
		&req.Message,
		&req.ProposedStart,
		&req.ProposedDuration,
		&req.Status,
		&req.PaymentStatus,
		&req.SlotReserved,
		&req.BaseRate,
		&req.AmountCharged,
		&req.AmountPayable,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
