package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/pricing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultWeeksAhead на сколько недель вперёд создаются слоты шаблона
const DefaultWeeksAhead = 4

// RecurringService еженедельные шаблоны слотов
type RecurringService struct {
	tx         Transactor
	schedules  RecurringStore
	loc        *time.Location
	weeksAhead int
	logger     *zap.Logger
	now        func() time.Time
}

func NewRecurringService(tx Transactor, schedules RecurringStore, loc *time.Location, weeksAhead int, logger *zap.Logger) *RecurringService {
	if loc == nil {
		loc = time.UTC
	}
	if weeksAhead <= 0 {
		weeksAhead = DefaultWeeksAhead
	}
	return &RecurringService{
		tx:         tx,
		schedules:  schedules,
		loc:        loc,
		weeksAhead: weeksAhead,
		logger:     logger,
		now:        time.Now,
	}
}

type CreateRecurringInput struct {
	ProviderID int64
	Weekdays   []time.Weekday
	StartTime  time.Duration
	EndTime    time.Duration
	Capacity   int
	BaseRate   int64
}

// Create заводит по шаблону на каждый день недели с общим group_id и сразу создаёт слоты
func (s *RecurringService) Create(ctx context.Context, in CreateRecurringInput) (schedules []*model.RecurringSchedule, created int, err error) {
	ctx, span := tracer.Start(ctx, "recurring.Create")
	span.SetAttributes(attribute.Int64("provider_id", in.ProviderID))
	defer func() { endSpan(span, err) }()

	weekdays, err := validateRecurring(in)
	if err != nil {
		return nil, 0, err
	}

	groupID := uuid.New()
	now := s.now()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		schedules = schedules[:0]
		created = 0

		for _, weekday := range weekdays {
			schedule := &model.RecurringSchedule{
				GroupID:    groupID,
				ProviderID: in.ProviderID,
				Weekday:    weekday,
				StartTime:  in.StartTime,
				EndTime:    in.EndTime,
				Capacity:   in.Capacity,
				BaseRate:   in.BaseRate,
				IsActive:   true,
			}
			if err := s.schedules.Create(ctx, schedule); err != nil {
				return fmt.Errorf("create recurring schedule: %w", err)
			}

			n, err := s.generate(ctx, schedule, now)
			if err != nil {
				return err
			}

			schedules = append(schedules, schedule)
			created += n
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info("Recurring schedule group created",
		zap.String("group_id", groupID.String()),
		zap.Int64("provider_id", in.ProviderID),
		zap.Int("weekdays_count", len(weekdays)),
		zap.Int("slots_created", created),
	)

	return schedules, created, nil
}

func validateRecurring(in CreateRecurringInput) ([]time.Weekday, error) {
	if _, err := pricing.Calculate(in.BaseRate); err != nil {
		return nil, err
	}
	if in.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be at least 1", ErrInvalidInput)
	}
	if in.StartTime < 0 || in.EndTime > 24*time.Hour || in.EndTime <= in.StartTime {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}
	if len(in.Weekdays) == 0 {
		return nil, fmt.Errorf("%w: at least one weekday is required", ErrInvalidInput)
	}

	weekdays := make([]time.Weekday, 0, len(in.Weekdays))
	for _, d := range in.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalidInput, d)
		}
		if !slices.Contains(weekdays, d) {
			weekdays = append(weekdays, d)
		}
	}
	return weekdays, nil
}

// ListForProvider шаблоны преподавателя
func (s *RecurringService) ListForProvider(ctx context.Context, providerID int64) ([]*model.RecurringSchedule, error) {
	schedules, err := s.schedules.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring schedules: %w", err)
	}
	return schedules, nil
}

// Deactivate выключает шаблон; созданные слоты и заявки на них не трогаются
func (s *RecurringService) Deactivate(ctx context.Context, providerID, scheduleID int64) (*model.RecurringSchedule, error) {
	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("get recurring schedule: %w", err)
	}
	if schedule == nil {
		return nil, ErrNotFound
	}
	if schedule.ProviderID != providerID {
		return nil, ErrForbidden
	}
	if !schedule.IsActive {
		return schedule, nil
	}

	if _, err := s.schedules.Deactivate(ctx, scheduleID); err != nil {
		return nil, err
	}
	schedule.IsActive = false

	s.logger.Info("Recurring schedule deactivated",
		zap.Int64("recurring_schedule_id", scheduleID),
		zap.Int64("provider_id", providerID),
	)

	return schedule, nil
}

// GenerateAhead достраивает слоты активных шаблонов до горизонта; вызывается планировщиком
func (s *RecurringService) GenerateAhead(ctx context.Context, now time.Time) (int, error) {
	schedules, err := s.schedules.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active schedules: %w", err)
	}

	total := 0
	for _, schedule := range schedules {
		n, err := s.generate(ctx, schedule, now)
		if err != nil {
			s.logger.Error("Failed to generate slots",
				zap.Int64("recurring_schedule_id", schedule.ID),
				zap.Error(err),
			)
			continue
		}
		total += n
	}

	return total, nil
}

// generate создаёт недостающие будущие слоты шаблона на weeksAhead недель
func (s *RecurringService) generate(ctx context.Context, schedule *model.RecurringSchedule, now time.Time) (int, error) {
	today := now.In(s.loc)
	count := 0

	for i := 0; i < s.weeksAhead*7; i++ {
		date := today.AddDate(0, 0, i)
		if date.Weekday() != schedule.Weekday {
			continue
		}

		slot := &model.TimeSlot{
			ProviderID: schedule.ProviderID,
			Date:       model.DateOf(date),
			StartTime:  schedule.StartTime,
			EndTime:    schedule.EndTime,
			Capacity:   schedule.Capacity,
			BaseRate:   schedule.BaseRate,
			Status:     model.SlotStatusAvailable,
		}

		// Пропускаем прошедшие слоты
		if !slot.StartAt(s.loc).After(now) {
			continue
		}

		ok, err := s.schedules.CreateSlot(ctx, schedule.ID, slot)
		if err != nil {
			return count, fmt.Errorf("create slot: %w", err)
		}
		if ok {
			count++
		}
	}

	return count, nil
}
