package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EarningRepository struct {
	*base.Repository
}

func NewEarningRepository(pool *pgxpool.Pool) *EarningRepository {
	return &EarningRepository{Repository: base.NewRepository(pool)}
}

// Create добавляет запись в журнал начислений
func (r *EarningRepository) Create(ctx context.Context, e *model.EarningRecord) error {
	query := `
		INSERT INTO earning_records (provider_id, session_id, amount, status, release_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, e.ProviderID, e.SessionID, e.Amount, e.Status, e.ReleaseDate).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create earning record: %w", err)
	}

	return nil
}

// GetBySession начисление за занятие
func (r *EarningRepository) GetBySession(ctx context.Context, sessionID int64) (*model.EarningRecord, error) {
	query := `
		SELECT id, provider_id, session_id, amount, status, release_date, created_at
		FROM earning_records
		WHERE session_id = $1
	`

	var e model.EarningRecord
	err := r.QueryRow(ctx, query, sessionID).Scan(
		&e.ID, &e.ProviderID, &e.SessionID, &e.Amount, &e.Status, &e.ReleaseDate, &e.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get earning by session: %w", err)
	}

	return &e, nil
}

// ListByProvider все начисления преподавателя
func (r *EarningRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.EarningRecord, error) {
	query := `
		SELECT id, provider_id, session_id, amount, status, release_date, created_at
		FROM earning_records
		WHERE provider_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("list earnings by provider: %w", err)
	}
	defer rows.Close()

	var list []*model.EarningRecord
	for rows.Next() {
		var e model.EarningRecord
		err := rows.Scan(&e.ID, &e.ProviderID, &e.SessionID, &e.Amount, &e.Status, &e.ReleaseDate, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan earning record: %w", err)
		}
		list = append(list, &e)
	}

	return list, rows.Err()
}
