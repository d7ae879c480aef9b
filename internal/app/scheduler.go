package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlotSweeper помечает прошедшие слоты
type SlotSweeper interface {
	ExpireSweep(ctx context.Context, now time.Time) (int64, error)
}

// HoldReleaser снимает резервы с брошенных неоплаченных заявок
type HoldReleaser interface {
	ReleaseAbandoned(ctx context.Context, now time.Time) (int, error)
}

// PaymentReconciler сверяет зависшие заказы со шлюзом
type PaymentReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// SeriesExtender достраивает слоты еженедельных шаблонов
type SeriesExtender interface {
	GenerateAhead(ctx context.Context, now time.Time) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	slots      SlotSweeper
	holds      HoldReleaser
	payments   PaymentReconciler
	series     SeriesExtender
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger

	seriesEvery time.Duration
	lastSeries  time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик. staleAfter - возраст pending-заказа, после которого он сверяется в фоне.
func NewScheduler(
	slots SlotSweeper,
	holds HoldReleaser,
	payments PaymentReconciler,
	interval, staleAfter time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		slots:      slots,
		holds:      holds,
		payments:   payments,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

// WithSeries включает достройку шаблонов не чаще раза в every
func (s *Scheduler) WithSeries(series SeriesExtender, every time.Duration) *Scheduler {
	s.series = series
	s.seriesEvery = every
	return s
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop останавливает фоновые задачи и ждёт текущий проход
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// первый проход сразу при старте
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.logger.Info("Background scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Background scheduler cancelled")
			return
		}
	}
}

// tick один проход всех задач; ошибка одной задачи не мешает остальным
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()

	if n, err := s.slots.ExpireSweep(ctx, now); err != nil {
		s.logger.Error("Failed to expire slots", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("Slots expired", zap.Int64("count", n))
	}

	if n, err := s.holds.ReleaseAbandoned(ctx, now); err != nil {
		s.logger.Error("Failed to release abandoned holds", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("Abandoned holds released", zap.Int("count", n))
	}

	if n, err := s.payments.ReconcilePending(ctx, s.staleAfter); err != nil {
		s.logger.Error("Failed to reconcile payments", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("Stale payments reconciled", zap.Int("count", n))
	}

	if s.series != nil && now.Sub(s.lastSeries) >= s.seriesEvery {
		s.lastSeries = now
		if n, err := s.series.GenerateAhead(ctx, now); err != nil {
			s.logger.Error("Failed to extend recurring schedules", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("Recurring slots generated", zap.Int("count", n))
		}
	}
}
