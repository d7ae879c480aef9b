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

type PaymentRepository struct {
	*base.Repository
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{Repository: base.NewRepository(pool)}
}

const paymentColumns = `id, booking_request_id, gateway_order_id, session_token, method, amount, status, created_at, updated_at`

// Create сохраняет заказ шлюза
func (r *PaymentRepository) Create(ctx context.Context, p *model.PaymentRecord) error {
	query := `
		INSERT INTO payment_records (booking_request_id, gateway_order_id, session_token, method, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(ctx, query,
		p.BookingRequestID, p.GatewayOrderID, p.SessionToken, p.Method, p.Amount, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create payment record: %w", err)
	}

	return nil
}

// GetByOrderID получает запись по ID заказа в шлюзе
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE gateway_order_id = $1`

	p, err := scanPayment(r.QueryRow(ctx, query, orderID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by order id: %w", err)
	}

	return p, nil
}

// GetLatestByBookingRequest последний заказ по заявке
func (r *PaymentRepository) GetLatestByBookingRequest(ctx context.Context, requestID int64) (*model.PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE booking_request_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	p, err := scanPayment(r.QueryRow(ctx, query, requestID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest payment: %w", err)
	}

	return p, nil
}

// ListPending незавершённые заказы старше before
func (r *PaymentRepository) ListPending(ctx context.Context, before time.Time) ([]*model.PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
	`

	rows, err := r.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var list []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment record: %w", err)
		}
		list = append(list, p)
	}

	return list, rows.Err()
}

// UpdateStatus условный переход статуса платежа
func (r *PaymentRepository) UpdateStatus(ctx context.Context, orderID string, from, to model.PaymentRecordStatus) (bool, error) {
	query := `
		UPDATE payment_records
		SET status = $1, updated_at = NOW()
		WHERE gateway_order_id = $2 AND status = $3
	`

	affected, err := r.ExecAffected(ctx, query, to, orderID, from)
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}

	return affected == 1, nil
}

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	var p model.PaymentRecord
	err := row.Scan(
		&p.ID,
		&p.BookingRequestID,
		&p.GatewayOrderID,
		&p.SessionToken,
		&p.Method,
		&p.Amount,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
