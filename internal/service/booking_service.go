package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/notify"
	"github.com/Freeeeeet/booking_engine/internal/pricing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxStateRetries сколько раз перечитываем заявку, если условный UPDATE проиграл гонку
const maxStateRetries = 3

const displayTimeLayout = "02.01.2006 15:04"

// BookingService машина состояний заявки на занятие
type BookingService struct {
	tx          Transactor
	requests    BookingRequestStore
	slots       *SlotService
	sessions    SessionStore
	attendances AttendanceStore
	earnings    *EarningsService
	courses     CourseDirectory
	notifier    notify.Notifier
	holdTTL     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewBookingService(
	tx Transactor,
	requests BookingRequestStore,
	slots *SlotService,
	sessions SessionStore,
	attendances AttendanceStore,
	earnings *EarningsService,
	courses CourseDirectory,
	notifier notify.Notifier,
	holdTTL time.Duration,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:          tx,
		requests:    requests,
		slots:       slots,
		sessions:    sessions,
		attendances: attendances,
		earnings:    earnings,
		courses:     courses,
		notifier:    notifier,
		holdTTL:     holdTTL,
		logger:      logger,
		now:         time.Now,
	}
}

type CreateRequestInput struct {
	RequesterID      int64
	SlotID           *int64
	CourseID         *int64
	Title            string
	Message          string
	ProposedStart    *time.Time
	ProposedDuration int
}

// Create создаёт заявку в момент выбора слота и сразу резервирует его
func (s *BookingService) Create(ctx context.Context, in CreateRequestInput) (req *model.BookingRequest, err error) {
	ctx, span := tracer.Start(ctx, "booking.Create")
	defer func() { endSpan(span, err) }()

	if (in.SlotID == nil) == (in.CourseID == nil) {
		return nil, fmt.Errorf("%w: exactly one of slot or course is required", ErrInvalidInput)
	}

	req = &model.BookingRequest{
		RequesterID:   in.RequesterID,
		SlotID:        in.SlotID,
		CourseID:      in.CourseID,
		Title:         in.Title,
		Message:       in.Message,
		Status:        model.BookingStatusDraft,
		PaymentStatus: model.PaymentStatusUnpaid,
	}

	if in.SlotID != nil {
		err = s.fillFromSlot(ctx, req, *in.SlotID)
	} else {
		err = s.fillFromCourse(ctx, req, *in.CourseID, in)
	}
	if err != nil {
		return nil, err
	}

	if req.ProviderID == req.RequesterID {
		return nil, fmt.Errorf("%w: cannot book own slot", ErrInvalidInput)
	}

	breakdown, err := pricing.Calculate(req.BaseRate)
	if err != nil {
		return nil, err
	}
	req.AmountCharged = breakdown.PayerAmount
	req.AmountPayable = breakdown.PayeeAmount

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if req.SlotID != nil {
			if err := s.slots.Reserve(ctx, *req.SlotID); err != nil {
				return err
			}
			req.SlotReserved = true
		}
		if err := s.requests.Create(ctx, req); err != nil {
			return fmt.Errorf("create booking request: %w", err)
		}
		return nil
	})
	if err != nil {
		req.SlotReserved = false
		return nil, err
	}

	span.SetAttributes(attribute.Int64("booking_request_id", req.ID))
	s.logger.Info("Booking request created",
		zap.Int64("booking_request_id", req.ID),
		zap.Int64("requester_id", req.RequesterID),
		zap.Int64("provider_id", req.ProviderID),
		zap.Int64("amount_charged", req.AmountCharged),
	)

	return req, nil
}

func (s *BookingService) fillFromSlot(ctx context.Context, req *model.BookingRequest, slotID int64) error {
	slot, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}

	loc := s.slots.Location()
	start := slot.StartAt(loc)
	if slot.Status != model.SlotStatusAvailable || !start.After(s.now()) {
		return ErrSlotUnavailable
	}

	req.ProviderID = slot.ProviderID
	req.BaseRate = slot.BaseRate
	req.ProposedStart = &start
	req.ProposedDuration = int(slot.EndAt(loc).Sub(start) / time.Minute)
	return nil
}

func (s *BookingService) fillFromCourse(ctx context.Context, req *model.BookingRequest, courseID int64, in CreateRequestInput) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return fmt.Errorf("get course: %w", err)
	}
	if course == nil || !course.IsActive {
		return fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	if in.ProposedStart == nil || !in.ProposedStart.After(s.now()) {
		return fmt.Errorf("%w: course booking needs a future start time", ErrInvalidInput)
	}

	duration := in.ProposedDuration
	if duration <= 0 {
		duration = course.DurationMinutes
	}
	if duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	req.ProviderID = course.ProviderID
	req.BaseRate = course.BaseRate
	req.ProposedStart = in.ProposedStart
	req.ProposedDuration = duration
	if req.Title == "" {
		req.Title = course.Title
	}
	return nil
}

// Submit переводит черновик в ожидание оплаты
func (s *BookingService) Submit(ctx context.Context, requesterID, requestID int64) (req *model.BookingRequest, err error) {
	ctx, span := tracer.Start(ctx, "booking.Submit")
	span.SetAttributes(attribute.Int64("booking_request_id", requestID))
	defer func() { endSpan(span, err) }()

	req, err = s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, ErrForbidden
	}

	switch req.Status {
	case model.BookingStatusAwaitingPayment:
		return req, nil
	case model.BookingStatusDraft:
	default:
		return nil, fmt.Errorf("%w: cannot submit request in status %s", ErrInvalidTransition, req.Status)
	}

	from := req.State()
	to := model.RequestState{
		Status:        model.BookingStatusAwaitingPayment,
		PaymentStatus: model.PaymentStatusUnpaid,
		SlotReserved:  req.SlotID != nil,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// резерв мог быть снят после неудачной оплаты или по таймауту
		if req.SlotID != nil && !from.SlotReserved {
			if err := s.slots.Reserve(ctx, *req.SlotID); err != nil {
				return err
			}
		}
		return s.transition(ctx, req.ID, from, to)
	})
	if err != nil {
		return nil, err
	}
	req.Apply(to)

	s.logger.Info("Booking request submitted", zap.Int64("booking_request_id", req.ID))

	notify.Send(ctx, s.notifier, s.logger, notify.Message{
		Event:     notify.EventRequestCreated,
		Recipient: req.ProviderID,
		Data:      requestData(req),
	})

	return req, nil
}

// Get заявка, видимая только её участникам
func (s *BookingService) Get(ctx context.Context, actorID, requestID int64) (*model.BookingRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actorID != req.RequesterID && actorID != req.ProviderID {
		return nil, ErrForbidden
	}
	return req, nil
}

// ListPending оплаченные заявки, ожидающие решения преподавателя
func (s *BookingService) ListPending(ctx context.Context, providerID int64) ([]*model.BookingRequest, error) {
	reqs, err := s.requests.ListByProvider(ctx, providerID, model.BookingStatusAwaitingDecision)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return reqs, nil
}

func (s *BookingService) ListForRequester(ctx context.Context, requesterID int64) ([]*model.BookingRequest, error) {
	reqs, err := s.requests.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list requester requests: %w", err)
	}
	return reqs, nil
}

// Accept принимает заявку: резерв слота, занятие, посещение и начисление в одной транзакции
func (s *BookingService) Accept(ctx context.Context, providerID, requestID int64) (session *model.Session, err error) {
	ctx, span := tracer.Start(ctx, "booking.Accept")
	span.SetAttributes(attribute.Int64("booking_request_id", requestID))
	defer func() { endSpan(span, err) }()

	req, err := s.loadForDecision(ctx, providerID, requestID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case model.BookingStatusAccepted:
		existing, err := s.sessions.GetByBookingRequest(ctx, req.ID)
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: request already accepted", ErrInvalidTransition)
	case model.BookingStatusAwaitingDecision:
	default:
		return nil, fmt.Errorf("%w: cannot accept request in status %s", ErrInvalidTransition, req.Status)
	}

	start, end, err := s.sessionWindow(ctx, req)
	if err != nil {
		return nil, err
	}

	breakdown, err := pricing.Calculate(req.BaseRate)
	if err != nil {
		return nil, err
	}

	from := req.State()
	to := model.RequestState{
		Status:        model.BookingStatusAccepted,
		PaymentStatus: model.PaymentStatusPaid,
		SlotReserved:  req.SlotID != nil,
	}

	session = &model.Session{
		BookingRequestID: req.ID,
		ProviderID:       req.ProviderID,
		SlotID:           req.SlotID,
		StartTime:        start,
		EndTime:          end,
		Status:           model.SessionStatusScheduled,
		BaseRate:         breakdown.BaseRate,
		PayerAmount:      breakdown.PayerAmount,
		PayeeAmount:      breakdown.PayeeAmount,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if req.SlotID != nil && !from.SlotReserved {
			if err := s.slots.Reserve(ctx, *req.SlotID); err != nil {
				return err
			}
		}
		if err := s.transition(ctx, req.ID, from, to); err != nil {
			return err
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := s.attendances.Create(ctx, &model.Attendance{
			SessionID:   session.ID,
			RequesterID: req.RequesterID,
		}); err != nil {
			return fmt.Errorf("create attendance: %w", err)
		}
		if _, err := s.earnings.Record(ctx, session); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to accept booking request",
			zap.Int64("booking_request_id", req.ID),
			zap.Error(err),
		)
		return nil, err
	}
	req.Apply(to)

	s.logger.Info("Booking request accepted",
		zap.Int64("booking_request_id", req.ID),
		zap.Int64("session_id", session.ID),
		zap.Time("start", session.StartTime),
	)

	data := requestData(req)
	data["session_id"] = session.ID
	data["start"] = session.StartTime.In(s.slots.Location()).Format(displayTimeLayout)
	notify.Send(ctx, s.notifier, s.logger,
		notify.Message{Event: notify.EventRequestAccepted, Recipient: req.RequesterID, Data: data},
		notify.Message{Event: notify.EventSessionScheduled, Recipient: req.ProviderID, Data: data},
	)

	return session, nil
}

// Reject отклоняет заявку и освобождает слот, если он был зарезервирован
func (s *BookingService) Reject(ctx context.Context, providerID, requestID int64) (req *model.BookingRequest, err error) {
	ctx, span := tracer.Start(ctx, "booking.Reject")
	span.SetAttributes(attribute.Int64("booking_request_id", requestID))
	defer func() { endSpan(span, err) }()

	req, err = s.loadForDecision(ctx, providerID, requestID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case model.BookingStatusRejected:
		return req, nil
	case model.BookingStatusAwaitingDecision:
	default:
		return nil, fmt.Errorf("%w: cannot reject request in status %s", ErrInvalidTransition, req.Status)
	}

	from := req.State()
	to := model.RequestState{
		Status:        model.BookingStatusRejected,
		PaymentStatus: from.PaymentStatus,
		SlotReserved:  false,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.transition(ctx, req.ID, from, to); err != nil {
			return err
		}
		if req.SlotID != nil && from.SlotReserved {
			return s.slots.Release(ctx, *req.SlotID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	req.Apply(to)

	s.logger.Info("Booking request rejected", zap.Int64("booking_request_id", req.ID))

	notify.Send(ctx, s.notifier, s.logger, notify.Message{
		Event:     notify.EventRequestRejected,
		Recipient: req.RequesterID,
		Data:      requestData(req),
	})

	return req, nil
}

// ReleaseAbandoned возвращает в черновик неоплаченные заявки, держащие слот дольше holdTTL
func (s *BookingService) ReleaseAbandoned(ctx context.Context, now time.Time) (int, error) {
	if s.holdTTL <= 0 {
		return 0, nil
	}

	reqs, err := s.requests.ListUnpaidHolds(ctx, now.Add(-s.holdTTL))
	if err != nil {
		return 0, fmt.Errorf("list unpaid holds: %w", err)
	}

	released := 0
	for _, req := range reqs {
		from := req.State()
		to := model.RequestState{
			Status:        model.BookingStatusDraft,
			PaymentStatus: from.PaymentStatus,
			SlotReserved:  false,
		}

		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.transition(ctx, req.ID, from, to); err != nil {
				return err
			}
			if req.SlotID != nil {
				return s.slots.Release(ctx, *req.SlotID)
			}
			return nil
		})
		if errors.Is(err, ErrInvalidTransition) {
			// оплата или отправка успели раньше
			continue
		}
		if err != nil {
			s.logger.Error("Failed to release abandoned hold",
				zap.Int64("booking_request_id", req.ID),
				zap.Error(err),
			)
			continue
		}

		released++
		s.logger.Info("Abandoned hold released",
			zap.Int64("booking_request_id", req.ID),
			zap.Int64p("slot_id", req.SlotID),
		)
	}

	return released, nil
}

// applyPayment переносит окончательный исход оплаты на заявку. Вызывается внутри транзакции платежа.
// Возвращает заявку и признак того, что состояние изменилось.
func (s *BookingService) applyPayment(ctx context.Context, requestID int64, outcome model.PaymentOutcome) (*model.BookingRequest, bool, error) {
	for attempt := 0; attempt < maxStateRetries; attempt++ {
		req, err := s.load(ctx, requestID)
		if err != nil {
			return nil, false, err
		}

		to, ok := paymentTarget(req, outcome)
		if !ok {
			return req, false, nil
		}

		from := req.State()
		err = s.transition(ctx, req.ID, from, to)
		if errors.Is(err, ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return nil, false, err
		}

		if req.SlotID != nil && from.SlotReserved && !to.SlotReserved {
			if err := s.slots.Release(ctx, *req.SlotID); err != nil {
				return nil, false, err
			}
		}

		req.Apply(to)
		s.logger.Info("Payment outcome applied to booking request",
			zap.Int64("booking_request_id", req.ID),
			zap.String("outcome", string(outcome)),
			zap.String("status", string(to.Status)),
		)
		return req, true, nil
	}

	return nil, false, fmt.Errorf("apply payment to request %d: %w", requestID, ErrInvalidTransition)
}

// paymentTarget следующее состояние заявки для исхода оплаты; false - переход не нужен
func paymentTarget(req *model.BookingRequest, outcome model.PaymentOutcome) (model.RequestState, bool) {
	if req.Status != model.BookingStatusDraft && req.Status != model.BookingStatusAwaitingPayment {
		return model.RequestState{}, false
	}

	switch outcome {
	case model.OutcomePaid:
		if req.PaymentStatus == model.PaymentStatusPaid {
			return model.RequestState{}, false
		}
		return model.RequestState{
			Status:        model.BookingStatusAwaitingDecision,
			PaymentStatus: model.PaymentStatusPaid,
			SlotReserved:  req.SlotReserved,
		}, true
	case model.OutcomeFailed:
		if req.PaymentStatus != model.PaymentStatusUnpaid {
			return model.RequestState{}, false
		}
		return model.RequestState{
			Status:        model.BookingStatusDraft,
			PaymentStatus: model.PaymentStatusFailed,
			SlotReserved:  false,
		}, true
	}
	return model.RequestState{}, false
}

func (s *BookingService) sessionWindow(ctx context.Context, req *model.BookingRequest) (time.Time, time.Time, error) {
	if req.SlotID != nil {
		slot, err := s.slots.GetSlot(ctx, *req.SlotID)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		loc := s.slots.Location()
		return slot.StartAt(loc), slot.EndAt(loc), nil
	}

	if req.ProposedStart == nil || req.ProposedDuration <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: request has no proposed time", ErrInvalidInput)
	}
	start := *req.ProposedStart
	return start, start.Add(time.Duration(req.ProposedDuration) * time.Minute), nil
}

func (s *BookingService) transition(ctx context.Context, id int64, from, to model.RequestState) error {
	ok, err := s.requests.UpdateState(ctx, id, from, to)
	if err != nil {
		return fmt.Errorf("update booking request state: %w", err)
	}
	if !ok {
		return fmt.Errorf("booking request %d changed concurrently: %w", id, ErrInvalidTransition)
	}
	return nil
}

func (s *BookingService) load(ctx context.Context, requestID int64) (*model.BookingRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get booking request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("booking request %d: %w", requestID, ErrNotFound)
	}
	return req, nil
}

// loadForDecision проверки перед решением преподавателя; оплата проверяется первой
func (s *BookingService) loadForDecision(ctx context.Context, providerID, requestID int64) (*model.BookingRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ProviderID != providerID {
		return nil, ErrForbidden
	}
	if req.PaymentStatus != model.PaymentStatusPaid {
		return nil, ErrPaymentNotConfirmed
	}
	return req, nil
}

func requestData(req *model.BookingRequest) map[string]any {
	return map[string]any{
		"booking_request_id": req.ID,
		"title":              req.Title,
		"amount":             pricing.FormatAmount(req.AmountCharged),
	}
}
