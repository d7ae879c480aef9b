package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"go.uber.org/zap"
)

// EarningsService журнал обязательств выплат преподавателям
type EarningsService struct {
	earnings EarningStore
	logger   *zap.Logger
}

func NewEarningsService(earnings EarningStore, logger *zap.Logger) *EarningsService {
	return &EarningsService{
		earnings: earnings,
		logger:   logger,
	}
}

// Record создаёт запись о заработке для занятия. Повторный вызов возвращает существующую запись.
func (s *EarningsService) Record(ctx context.Context, session *model.Session) (*model.EarningRecord, error) {
	existing, err := s.earnings.GetBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("get earning: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	rec := &model.EarningRecord{
		ProviderID: session.ProviderID,
		SessionID:  session.ID,
		Amount:     session.PayeeAmount,
		Status:     model.EarningStatusPending,
	}
	if err := s.earnings.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create earning: %w", err)
	}

	s.logger.Info("Earning recorded",
		zap.Int64("earning_id", rec.ID),
		zap.Int64("provider_id", rec.ProviderID),
		zap.Int64("session_id", rec.SessionID),
		zap.Int64("amount", rec.Amount),
	)

	return rec, nil
}

func (s *EarningsService) ListForProvider(ctx context.Context, providerID int64) ([]*model.EarningRecord, error) {
	records, err := s.earnings.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	return records, nil
}

// PendingTotal сумма ещё не подтверждённых начислений
func (s *EarningsService) PendingTotal(ctx context.Context, providerID int64) (int64, error) {
	records, err := s.ListForProvider(ctx, providerID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, r := range records {
		if r.Status == model.EarningStatusPending {
			total += r.Amount
		}
	}
	return total, nil
}
