package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/pricing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SlotService распределитель слотов: единственный, кто меняет time_slots
type SlotService struct {
	slots  SlotStore
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

func NewSlotService(slots SlotStore, loc *time.Location, logger *zap.Logger) *SlotService {
	if loc == nil {
		loc = time.UTC
	}
	return &SlotService{
		slots:  slots,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

type CreateSlotInput struct {
	ProviderID int64
	Date       time.Time
	StartTime  time.Duration
	EndTime    time.Duration
	Capacity   int
	BaseRate   int64
}

// CreateSlot публикует новый слот преподавателя
func (s *SlotService) CreateSlot(ctx context.Context, in CreateSlotInput) (*model.TimeSlot, error) {
	if _, err := pricing.Calculate(in.BaseRate); err != nil {
		return nil, err
	}
	if in.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be at least 1", ErrInvalidInput)
	}
	if in.StartTime < 0 || in.EndTime > 24*time.Hour || in.EndTime <= in.StartTime {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}

	slot := &model.TimeSlot{
		ProviderID: in.ProviderID,
		Date:       model.DateOf(in.Date),
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		Capacity:   in.Capacity,
		BaseRate:   in.BaseRate,
		Status:     model.SlotStatusAvailable,
	}

	if !slot.StartAt(s.loc).After(s.now()) {
		return nil, fmt.Errorf("%w: slot is in the past", ErrInvalidInput)
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("provider_id", slot.ProviderID),
		zap.Time("start", slot.StartAt(s.loc)),
		zap.Int("capacity", slot.Capacity),
	)

	return slot, nil
}

// GetSlot получает слот по ID
func (s *SlotService) GetSlot(ctx context.Context, slotID int64) (*model.TimeSlot, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("slot %d: %w", slotID, ErrNotFound)
	}
	return slot, nil
}

// ListAvailable свободные слоты, которые ещё не начались, по дате и времени начала
func (s *SlotService) ListAvailable(ctx context.Context, providerID int64, now time.Time) ([]*model.TimeSlot, error) {
	local := now.In(s.loc)

	slots, err := s.slots.ListAvailable(ctx, providerID, model.DateOf(local), model.ClockOf(local))
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// Reserve занимает место условным UPDATE. Проигравший гонку получает ErrSlotUnavailable.
func (s *SlotService) Reserve(ctx context.Context, slotID int64) (err error) {
	ctx, span := tracer.Start(ctx, "slot.Reserve")
	span.SetAttributes(attribute.Int64("slot_id", slotID))
	defer func() { endSpan(span, err) }()

	ok, err := s.slots.Reserve(ctx, slotID)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if ok {
		s.logger.Info("Slot reserved", zap.Int64("slot_id", slotID))
		return nil
	}

	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return fmt.Errorf("slot %d: %w", slotID, ErrNotFound)
	}

	s.logger.Info("Slot reservation lost",
		zap.Int64("slot_id", slotID),
		zap.String("status", string(slot.Status)),
		zap.Int("booked_count", slot.BookedCount),
	)
	return ErrSlotUnavailable
}

// Release возвращает место. Освобождение свободного слота ничего не делает.
func (s *SlotService) Release(ctx context.Context, slotID int64) error {
	released, err := s.slots.Release(ctx, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	if released {
		s.logger.Info("Slot released", zap.Int64("slot_id", slotID))
	} else {
		s.logger.Debug("Slot release was a no-op", zap.Int64("slot_id", slotID))
	}
	return nil
}

// SetGroupStatus закрывает или открывает запись на групповой слот
func (s *SlotService) SetGroupStatus(ctx context.Context, providerID, slotID int64, status model.SlotStatus) (*model.TimeSlot, error) {
	if status != model.SlotStatusAvailable && status != model.SlotStatusBooked {
		return nil, fmt.Errorf("%w: unsupported slot status %q", ErrInvalidInput, status)
	}

	slot, err := s.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.ProviderID != providerID {
		return nil, fmt.Errorf("slot does not belong to provider: %w", ErrForbidden)
	}
	if !slot.IsGroup() {
		return nil, fmt.Errorf("%w: only group slots can be toggled", ErrInvalidTransition)
	}
	if slot.Status == status {
		return slot, nil
	}

	ok, err := s.slots.UpdateStatus(ctx, slotID, slot.Status, status)
	if err != nil {
		return nil, fmt.Errorf("update slot status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("slot %d changed concurrently: %w", slotID, ErrInvalidTransition)
	}

	slot.Status = status
	s.logger.Info("Group slot toggled",
		zap.Int64("slot_id", slotID),
		zap.String("status", string(status)),
	)
	return slot, nil
}

// ExpireSweep помечает истёкшими свободные слоты с прошедшей датой
func (s *SlotService) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	today := model.DateOf(now.In(s.loc))

	n, err := s.slots.ExpireBefore(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("expire slots: %w", err)
	}

	if n > 0 {
		s.logger.Info("Expired past slots", zap.Int64("count", n))
	}
	return n, nil
}

// Location часовой пояс, в котором интерпретируются даты слотов
func (s *SlotService) Location() *time.Location {
	return s.loc
}
