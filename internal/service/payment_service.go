package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/gateway"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// errDuplicateOutcome исход уже записан другим каналом
var errDuplicateOutcome = errors.New("duplicate payment outcome")

type PaymentConfig struct {
	Currency      string
	PublicBaseURL string
	PollInterval  time.Duration
	PollTimeout   time.Duration
}

// PaymentService сверка оплаты с внешним шлюзом: redirect, webhook и опрос
type PaymentService struct {
	tx       Transactor
	payments PaymentStore
	bookings *BookingService
	gateway  gateway.Gateway
	locker   Locker
	notifier notify.Notifier
	cfg      PaymentConfig
	logger   *zap.Logger
	now      func() time.Time

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

func NewPaymentService(
	tx Transactor,
	payments PaymentStore,
	bookings *BookingService,
	gw gateway.Gateway,
	locker Locker,
	notifier notify.Notifier,
	cfg PaymentConfig,
	logger *zap.Logger,
) *PaymentService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &PaymentService{
		tx:       tx,
		payments: payments,
		bookings: bookings,
		gateway:  gw,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

type CreateOrderInput struct {
	RequesterID      int64
	BookingRequestID int64
	Method           model.PaymentMethod
	PayerToken       string
}

// CreateOrder открывает заказ в шлюзе для заявки в ожидании оплаты.
// Свежий незавершённый заказ переиспользуется вместо создания нового.
func (s *PaymentService) CreateOrder(ctx context.Context, in CreateOrderInput) (rec *model.PaymentRecord, err error) {
	ctx, span := tracer.Start(ctx, "payment.CreateOrder")
	span.SetAttributes(attribute.Int64("booking_request_id", in.BookingRequestID))
	defer func() { endSpan(span, err) }()

	if in.Method == "" {
		in.Method = model.PaymentMethodRedirect
	}
	if in.Method != model.PaymentMethodRedirect && in.Method != model.PaymentMethodCollect {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.Method)
	}

	req, err := s.bookings.load(ctx, in.BookingRequestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != in.RequesterID {
		return nil, ErrForbidden
	}
	if req.PaymentStatus == model.PaymentStatusPaid {
		return nil, ErrPaymentAlreadyProcessed
	}
	if req.Status != model.BookingStatusAwaitingPayment {
		return nil, fmt.Errorf("%w: request must be submitted before payment", ErrInvalidTransition)
	}

	latest, err := s.payments.GetLatestByBookingRequest(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("get latest payment: %w", err)
	}
	if latest != nil && latest.Status == model.PaymentRecordPending &&
		latest.Method == in.Method && s.now().Sub(latest.CreatedAt) < s.cfg.PollTimeout {
		s.logger.Info("Reusing pending gateway order",
			zap.Int64("booking_request_id", req.ID),
			zap.String("order_id", latest.GatewayOrderID),
		)
		return latest, nil
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		BookingRequestID: req.ID,
		Amount:           req.AmountCharged,
		Currency:         s.cfg.Currency,
		Description:      req.Title,
		Payer:            gateway.PayerInfo{UserID: req.RequesterID, Token: in.PayerToken},
		ReturnURL:        s.returnURL(req.ID),
		NotifyURL:        s.notifyURL(),
	})
	if err != nil {
		s.logger.Warn("Gateway order creation failed",
			zap.Int64("booking_request_id", req.ID),
			zap.Error(err),
		)
		return nil, gatewayError(err)
	}

	rec = &model.PaymentRecord{
		BookingRequestID: req.ID,
		GatewayOrderID:   order.ID,
		SessionToken:     order.SessionToken,
		Method:           in.Method,
		Amount:           req.AmountCharged,
		Status:           model.PaymentRecordPending,
	}
	if err := s.payments.Create(ctx, rec); err != nil {
		s.logger.Error("Gateway order created but not stored",
			zap.Int64("booking_request_id", req.ID),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create payment record: %w", err)
	}

	s.logger.Info("Gateway order created",
		zap.Int64("booking_request_id", req.ID),
		zap.String("order_id", rec.GatewayOrderID),
		zap.String("method", string(rec.Method)),
		zap.Int64("amount", rec.Amount),
	)

	// карта могла быть списана сразу
	if outcome, ok := model.ParseOutcome(order.Status); ok && outcome.IsTerminal() {
		if _, err := s.Apply(ctx, rec.GatewayOrderID, outcome); err != nil {
			s.logger.Warn("Failed to apply immediate outcome",
				zap.String("order_id", rec.GatewayOrderID),
				zap.Error(err),
			)
		}
		if current, err := s.payments.GetByOrderID(ctx, rec.GatewayOrderID); err == nil && current != nil {
			rec = current
		}
		return rec, nil
	}

	if rec.Method == model.PaymentMethodCollect {
		s.StartPolling(rec.GatewayOrderID)
	}

	return rec, nil
}

// HandleReturn обработка возврата плательщика: статус берётся у шлюза, не из параметров запроса
func (s *PaymentService) HandleReturn(ctx context.Context, requestID int64) (req *model.BookingRequest, err error) {
	ctx, span := tracer.Start(ctx, "payment.HandleReturn")
	span.SetAttributes(attribute.Int64("booking_request_id", requestID))
	defer func() { endSpan(span, err) }()

	rec, err := s.payments.GetLatestByBookingRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get latest payment: %w", err)
	}
	if rec == nil {
		return nil, ErrUnknownOrder
	}

	if !rec.Status.IsTerminal() {
		status, err := s.gateway.GetOrderStatus(ctx, rec.GatewayOrderID)
		if err != nil {
			return nil, gatewayError(err)
		}
		outcome, ok := model.ParseOutcome(status)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected gateway status %q", ErrInvalidInput, status)
		}
		if _, err := s.Apply(ctx, rec.GatewayOrderID, outcome); err != nil {
			return nil, err
		}
	}

	return s.bookings.load(ctx, requestID)
}

// HandleWebhook применяет проверенное шлюзом событие
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte) (err error) {
	ctx, span := tracer.Start(ctx, "payment.HandleWebhook")
	defer func() { endSpan(span, err) }()

	ev, err := s.gateway.ParseWebhook(ctx, payload)
	if err != nil {
		return gatewayError(err)
	}
	if ev == nil {
		return nil
	}

	outcome, ok := model.ParseOutcome(ev.Status)
	if !ok {
		return fmt.Errorf("%w: unexpected webhook status %q", ErrInvalidInput, ev.Status)
	}

	_, err = s.Apply(ctx, ev.OrderID, outcome)
	return err
}

// Apply записывает исход оплаты ровно один раз. Повтор того же окончательного исхода ничего не меняет.
func (s *PaymentService) Apply(ctx context.Context, orderID string, outcome model.PaymentOutcome) (req *model.BookingRequest, err error) {
	ctx, span := tracer.Start(ctx, "payment.Apply")
	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("outcome", string(outcome)),
	)
	defer func() { endSpan(span, err) }()

	rec, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if rec == nil {
		s.logger.Warn("Payment event for unknown order", zap.String("order_id", orderID))
		return nil, ErrUnknownOrder
	}

	if !outcome.IsTerminal() {
		return s.bookings.load(ctx, rec.BookingRequestID)
	}

	target := outcome.RecordStatus()
	if rec.Status.IsTerminal() {
		return s.settled(ctx, rec, target)
	}

	changed := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.payments.UpdateStatus(ctx, orderID, model.PaymentRecordPending, target)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		if !ok {
			return errDuplicateOutcome
		}

		req, changed, err = s.bookings.applyPayment(ctx, rec.BookingRequestID, outcome)
		return err
	})
	if errors.Is(err, errDuplicateOutcome) {
		current, err := s.payments.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("get payment: %w", err)
		}
		return s.settled(ctx, current, target)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment outcome recorded",
		zap.String("order_id", orderID),
		zap.Int64("booking_request_id", rec.BookingRequestID),
		zap.String("outcome", string(outcome)),
		zap.Bool("request_changed", changed),
	)

	if changed {
		s.notifyOutcome(ctx, req, outcome)
	}

	return req, nil
}

// settled ответ для заказа, уже получившего окончательный статус
func (s *PaymentService) settled(ctx context.Context, rec *model.PaymentRecord, target model.PaymentRecordStatus) (*model.BookingRequest, error) {
	if rec.Status != target {
		s.logger.Warn("Conflicting payment outcome ignored",
			zap.String("order_id", rec.GatewayOrderID),
			zap.String("stored", string(rec.Status)),
			zap.String("incoming", string(target)),
		)
		return nil, ErrPaymentAlreadyProcessed
	}

	s.logger.Info("Duplicate payment outcome",
		zap.String("order_id", rec.GatewayOrderID),
		zap.String("status", string(rec.Status)),
	)
	return s.bookings.load(ctx, rec.BookingRequestID)
}

// Poll опрашивает шлюз каждые PollInterval до окончательного исхода.
// По истечении PollTimeout возвращает ErrPaymentTimeout, состояние заявки не меняется.
func (s *PaymentService) Poll(ctx context.Context, orderID string) (outcome model.PaymentOutcome, err error) {
	ctx, span := tracer.Start(ctx, "payment.Poll")
	span.SetAttributes(attribute.String("order_id", orderID))
	defer func() { endSpan(span, err) }()

	if s.locker != nil {
		key := pollLockKey(orderID)
		locked, err := s.locker.Lock(ctx, key, s.cfg.PollTimeout+s.cfg.PollInterval)
		if err != nil {
			s.logger.Warn("Poll lease unavailable, polling anyway", zap.String("order_id", orderID), zap.Error(err))
		} else if !locked {
			s.logger.Info("Order is already polled elsewhere", zap.String("order_id", orderID))
			return model.OutcomePending, nil
		} else {
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
					s.logger.Warn("Failed to release poll lease", zap.String("order_id", orderID), zap.Error(err))
				}
			}()
		}
	}

	deadline := s.now().Add(s.cfg.PollTimeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		outcome, done, err := s.pollOnce(ctx, orderID)
		if err != nil {
			return "", err
		}
		if done {
			return outcome, nil
		}

		if !s.now().Before(deadline) {
			s.logger.Info("Payment polling timed out", zap.String("order_id", orderID))
			return model.OutcomePending, ErrPaymentTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce один шаг опроса; ошибки шлюза не прерывают опрос
func (s *PaymentService) pollOnce(ctx context.Context, orderID string) (model.PaymentOutcome, bool, error) {
	rec, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return "", false, fmt.Errorf("get payment: %w", err)
	}
	if rec == nil {
		return "", false, ErrUnknownOrder
	}
	if rec.Status.IsTerminal() {
		return model.PaymentOutcome(rec.Status), true, nil
	}

	status, err := s.gateway.GetOrderStatus(ctx, orderID)
	if err != nil {
		s.logger.Warn("Gateway status check failed", zap.String("order_id", orderID), zap.Error(err))
		return "", false, nil
	}

	outcome, ok := model.ParseOutcome(status)
	if !ok {
		s.logger.Warn("Unexpected gateway status", zap.String("order_id", orderID), zap.String("status", status))
		return "", false, nil
	}
	if !outcome.IsTerminal() {
		return outcome, false, nil
	}

	if _, err := s.Apply(ctx, orderID, outcome); err != nil && !errors.Is(err, ErrPaymentAlreadyProcessed) {
		return "", false, err
	}
	return outcome, true, nil
}

// StartPolling запускает опрос заказа в фоне; по таймауту плательщик получает уведомление
func (s *PaymentService) StartPolling(orderID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx := s.bgCtx
		_, err := s.Poll(ctx, orderID)
		switch {
		case err == nil:
		case errors.Is(err, ErrPaymentTimeout):
			s.notifyTimeout(ctx, orderID)
		case errors.Is(err, context.Canceled):
		default:
			s.logger.Error("Payment polling failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}()
}

// ReconcilePending однократная сверка заказов, висящих в pending дольше olderThan
func (s *PaymentService) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	recs, err := s.payments.ListPending(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("list pending payments: %w", err)
	}

	settled := 0
	for _, rec := range recs {
		_, done, err := s.pollOnce(ctx, rec.GatewayOrderID)
		if err != nil {
			s.logger.Warn("Failed to reconcile payment",
				zap.String("order_id", rec.GatewayOrderID),
				zap.Error(err),
			)
			continue
		}
		if done {
			settled++
		}
	}

	if settled > 0 {
		s.logger.Info("Reconciled stale payments", zap.Int("count", settled))
	}
	return settled, nil
}

// Close останавливает фоновые опросы и ждёт их завершения
func (s *PaymentService) Close() {
	s.bgCancel()
	s.wg.Wait()
}

func (s *PaymentService) notifyOutcome(ctx context.Context, req *model.BookingRequest, outcome model.PaymentOutcome) {
	data := requestData(req)

	switch outcome {
	case model.OutcomePaid:
		notify.Send(ctx, s.notifier, s.logger,
			notify.Message{Event: notify.EventRequestPaid, Recipient: req.ProviderID, Data: data},
			notify.Message{Event: notify.EventRequestPaid, Recipient: req.RequesterID, Data: data},
		)
	case model.OutcomeFailed:
		notify.Send(ctx, s.notifier, s.logger,
			notify.Message{Event: notify.EventPaymentFailed, Recipient: req.RequesterID, Data: data},
		)
	}
}

func (s *PaymentService) notifyTimeout(ctx context.Context, orderID string) {
	rec, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil || rec == nil {
		return
	}
	req, err := s.bookings.load(ctx, rec.BookingRequestID)
	if err != nil {
		return
	}

	notify.Send(ctx, s.notifier, s.logger, notify.Message{
		Event:     notify.EventPaymentTimeout,
		Recipient: req.RequesterID,
		Data:      requestData(req),
	})
}

func (s *PaymentService) returnURL(requestID int64) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/payments/return?booking_request_id=" + strconv.FormatInt(requestID, 10)
}

func (s *PaymentService) notifyURL() string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/payments/webhook"
}

// gatewayError отделяет окончательный отказ шлюза от временной недоступности
func gatewayError(err error) error {
	if errors.Is(err, gateway.ErrInvalidRequest) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}

func pollLockKey(orderID string) string {
	return "payment:poll:" + orderID
}
