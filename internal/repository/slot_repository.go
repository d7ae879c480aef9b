package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

const slotColumns = `id, provider_id, slot_date, start_time, end_time, capacity, booked_count, base_rate, status, created_at`

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		INSERT INTO time_slots (provider_id, slot_date, start_time, end_time, capacity, booked_count, base_rate, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.ProviderID,
		slot.Date,
		clockValue(slot.StartTime),
		clockValue(slot.EndTime),
		slot.Capacity,
		slot.BookedCount,
		slot.BaseRate,
		slot.Status,
	).Scan(&slot.ID, &slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListAvailable свободные слоты преподавателя, которые ещё не начались
func (r *SlotRepository) ListAvailable(ctx context.Context, providerID int64, today time.Time, nowClock time.Duration) ([]*model.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM time_slots
		WHERE provider_id = $1
		  AND status = 'available'
		  AND booked_count < capacity
		  AND (slot_date > $2 OR (slot_date = $2 AND start_time > $3))
		ORDER BY slot_date, start_time
	`

	rows, err := r.Query(ctx, query, providerID, today, clockValue(nowClock))
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.TimeSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// Reserve занимает место в слоте. false - место уже занято конкурентом.
func (r *SlotRepository) Reserve(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE time_slots
		SET booked_count = booked_count + 1,
		    status = CASE WHEN capacity = 1 THEN 'booked' ELSE status END
		WHERE id = $1
		  AND status = 'available'
		  AND booked_count < capacity
	`

	affected, err := r.ExecAffected(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}

	return affected == 1, nil
}

// Release возвращает место в слот. false - освобождать было нечего.
func (r *SlotRepository) Release(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE time_slots
		SET booked_count = booked_count - 1,
		    status = CASE WHEN capacity = 1 AND status = 'booked' THEN 'available' ELSE status END
		WHERE id = $1
		  AND booked_count > 0
	`

	affected, err := r.ExecAffected(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}

	return affected == 1, nil
}

// UpdateStatus меняет статус, только если текущий равен from
func (r *SlotRepository) UpdateStatus(ctx context.Context, slotID int64, from, to model.SlotStatus) (bool, error) {
	query := `
		UPDATE time_slots
		SET status = $1
		WHERE id = $2 AND status = $3
	`

	affected, err := r.ExecAffected(ctx, query, to, slotID, from)
	if err != nil {
		return false, fmt.Errorf("update slot status: %w", err)
	}

	return affected == 1, nil
}

// ExpireBefore переводит в expired свободные слоты с датой раньше date
func (r *SlotRepository) ExpireBefore(ctx context.Context, date time.Time) (int64, error) {
	query := `
		UPDATE time_slots
		SET status = 'expired'
		WHERE status = 'available' AND slot_date < $1
	`

	affected, err := r.ExecAffected(ctx, query, date)
	if err != nil {
		return 0, fmt.Errorf("expire slots: %w", err)
	}

	return affected, nil
}

func scanSlot(row pgx.Row) (*model.TimeSlot, error) {
	var (
		slot       model.TimeSlot
		start, end pgtype.Time
	)
	err := row.Scan(
		&slot.ID,
		&slot.ProviderID,
		&slot.Date,
		&start,
		&end,
		&slot.Capacity,
		&slot.BookedCount,
		&slot.BaseRate,
		&slot.Status,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	slot.StartTime = time.Duration(start.Microseconds) * time.Microsecond
	slot.EndTime = time.Duration(end.Microseconds) * time.Microsecond
	return &slot, nil
}

func clockValue(d time.Duration) pgtype.Time {
	return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}
}
