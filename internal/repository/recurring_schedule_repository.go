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

// RecurringScheduleRepository управляет recurring расписаниями в базе данных
type RecurringScheduleRepository struct {
	*base.Repository
}

// NewRecurringScheduleRepository создаёт новый репозиторий
func NewRecurringScheduleRepository(pool *pgxpool.Pool) *RecurringScheduleRepository {
	return &RecurringScheduleRepository{Repository: base.NewRepository(pool)}
}

const recurringColumns = `id, group_id, provider_id, weekday, start_time, end_time, capacity, base_rate, is_active, created_at, updated_at`

// Create создаёт новый recurring schedule
func (r *RecurringScheduleRepository) Create(ctx context.Context, schedule *model.RecurringSchedule) error {
	query := `
		INSERT INTO recurring_schedules (group_id, provider_id, weekday, start_time, end_time, capacity, base_rate, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		schedule.GroupID,
		schedule.ProviderID,
		int(schedule.Weekday),
		clockValue(schedule.StartTime),
		clockValue(schedule.EndTime),
		schedule.Capacity,
		schedule.BaseRate,
		schedule.IsActive,
	).Scan(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create recurring schedule: %w", err)
	}

	return nil
}

// GetByID получает recurring schedule по ID
func (r *RecurringScheduleRepository) GetByID(ctx context.Context, id int64) (*model.RecurringSchedule, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_schedules WHERE id = $1`

	schedule, err := scanRecurring(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get recurring schedule: %w", err)
	}

	return schedule, nil
}

// ListByProvider все шаблоны преподавателя
func (r *RecurringScheduleRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.RecurringSchedule, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurring_schedules
		WHERE provider_id = $1
		ORDER BY weekday, start_time
	`
	return r.list(ctx, query, providerID)
}

// ListActive активные шаблоны всех преподавателей
func (r *RecurringScheduleRepository) ListActive(ctx context.Context) ([]*model.RecurringSchedule, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_schedules WHERE is_active ORDER BY id`
	return r.list(ctx, query)
}

// Deactivate выключает шаблон; уже созданные слоты остаются
func (r *RecurringScheduleRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE recurring_schedules
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active
	`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("deactivate recurring schedule: %w", err)
	}

	return affected == 1, nil
}

// CreateSlot создаёт слот шаблона на дату; false если слот на эту дату уже есть
func (r *RecurringScheduleRepository) CreateSlot(ctx context.Context, scheduleID int64, slot *model.TimeSlot) (bool, error) {
	query := `
		INSERT INTO time_slots (provider_id, slot_date, start_time, end_time, capacity, booked_count, base_rate, status, schedule_id)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)
		ON CONFLICT (schedule_id, slot_date) WHERE schedule_id IS NOT NULL DO NOTHING
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.ProviderID,
		slot.Date,
		clockValue(slot.StartTime),
		clockValue(slot.EndTime),
		slot.Capacity,
		slot.BaseRate,
		slot.Status,
		scheduleID,
	).Scan(&slot.ID, &slot.CreatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("create schedule slot: %w", err)
	}

	return true, nil
}

func (r *RecurringScheduleRepository) list(ctx context.Context, query string, args ...any) ([]*model.RecurringSchedule, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*model.RecurringSchedule
	for rows.Next() {
		schedule, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}

	return schedules, rows.Err()
}

func scanRecurring(row pgx.Row) (*model.RecurringSchedule, error) {
	var (
		schedule   model.RecurringSchedule
		weekday    int16
		start, end pgtype.Time
	)
	err := row.Scan(
		&schedule.ID,
		&schedule.GroupID,
		&schedule.ProviderID,
		&weekday,
		&start,
		&end,
		&schedule.Capacity,
		&schedule.BaseRate,
		&schedule.IsActive,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	schedule.Weekday = time.Weekday(weekday)
	schedule.StartTime = time.Duration(start.Microseconds) * time.Microsecond
	schedule.EndTime = time.Duration(end.Microseconds) * time.Microsecond
	return &schedule, nil
}
