package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/notify"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StartLeadTime насколько раньше начала преподаватель может открыть занятие
const StartLeadTime = 15 * time.Minute

// MeetingLinks выдаёт ссылки на комнаты занятий
type MeetingLinks struct {
	baseURL string
}

func NewMeetingLinks(baseURL string) *MeetingLinks {
	return &MeetingLinks{baseURL: strings.TrimRight(baseURL, "/")}
}

// New новая уникальная ссылка
func (m *MeetingLinks) New() string {
	return m.baseURL + "/" + uuid.NewString()
}

// SessionService жизненный цикл занятия после принятия заявки
type SessionService struct {
	tx          Transactor
	sessions    SessionStore
	attendances AttendanceStore
	requests    BookingRequestStore
	slots       *SlotService
	links       *MeetingLinks
	notifier    notify.Notifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewSessionService(
	tx Transactor,
	sessions SessionStore,
	attendances AttendanceStore,
	requests BookingRequestStore,
	slots *SlotService,
	links *MeetingLinks,
	notifier notify.Notifier,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		tx:          tx,
		sessions:    sessions,
		attendances: attendances,
		requests:    requests,
		slots:       slots,
		links:       links,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// Get занятие для преподавателя или записанного ученика
func (s *SessionService) Get(ctx context.Context, actorID, sessionID int64) (*model.Session, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ProviderID == actorID {
		return session, nil
	}

	a, err := s.attendances.Get(ctx, sessionID, actorID)
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	if a == nil {
		return nil, ErrForbidden
	}
	return session, nil
}

// ListForProvider занятия преподавателя, начинающиеся в [from, to)
func (s *SessionService) ListForProvider(ctx context.Context, providerID int64, from, to time.Time) ([]*model.Session, error) {
	sessions, err := s.sessions.ListByProvider(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Start открывает занятие в окне [начало-15мин, конец) и выдаёт ссылку
func (s *SessionService) Start(ctx context.Context, providerID, sessionID int64) (session *model.Session, err error) {
	ctx, span := tracer.Start(ctx, "session.Start")
	span.SetAttributes(attribute.Int64("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	session, err = s.loadOwned(ctx, providerID, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case model.SessionStatusInProgress:
		return session, s.ensureLink(ctx, session)
	case model.SessionStatusScheduled:
	default:
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}

	now := s.now()
	if now.Before(session.StartTime.Add(-StartLeadTime)) || !now.Before(session.EndTime) {
		return nil, ErrOutsideStartWindow
	}

	ok, err := s.sessions.UpdateStatus(ctx, session.ID, model.SessionStatusScheduled, model.SessionStatusInProgress, now)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session %d changed concurrently: %w", session.ID, ErrInvalidTransition)
	}
	session.Status = model.SessionStatusInProgress
	session.StartedAt = &now

	if err := s.ensureLink(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("Session started",
		zap.Int64("session_id", session.ID),
		zap.Int64("provider_id", session.ProviderID),
	)

	attendees, err := s.attendances.ListBySession(ctx, session.ID)
	if err != nil {
		s.logger.Warn("Failed to list attendees", zap.Int64("session_id", session.ID), zap.Error(err))
		return session, nil
	}
	msgs := make([]notify.Message, 0, len(attendees))
	for _, a := range attendees {
		msgs = append(msgs, notify.Message{
			Event:     notify.EventSessionStarted,
			Recipient: a.RequesterID,
			Data: map[string]any{
				"session_id":   session.ID,
				"meeting_link": *session.MeetingRef,
			},
		})
	}
	notify.Send(ctx, s.notifier, s.logger, msgs...)

	return session, nil
}

// Join подключает записанного ученика к идущему занятию и возвращает ссылку
func (s *SessionService) Join(ctx context.Context, requesterID, sessionID int64) (link string, err error) {
	ctx, span := tracer.Start(ctx, "session.Join")
	span.SetAttributes(attribute.Int64("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	a, err := s.attendances.Get(ctx, sessionID, requesterID)
	if err != nil {
		return "", fmt.Errorf("get attendance: %w", err)
	}
	if a == nil {
		return "", ErrForbidden
	}

	now := s.now()
	if session.Status != model.SessionStatusInProgress || !now.Before(session.EndTime) {
		return "", ErrSessionNotJoinable
	}

	if err := s.ensureLink(ctx, session); err != nil {
		return "", err
	}

	if a.JoinedAt == nil {
		if err := s.attendances.MarkJoined(ctx, sessionID, requesterID, now); err != nil {
			return "", fmt.Errorf("mark joined: %w", err)
		}
		s.logger.Info("Attendee joined",
			zap.Int64("session_id", sessionID),
			zap.Int64("requester_id", requesterID),
		)
	}

	return *session.MeetingRef, nil
}

// Complete завершает идущее занятие
func (s *SessionService) Complete(ctx context.Context, providerID, sessionID int64) (session *model.Session, err error) {
	ctx, span := tracer.Start(ctx, "session.Complete")
	span.SetAttributes(attribute.Int64("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	session, err = s.loadOwned(ctx, providerID, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case model.SessionStatusCompleted:
		return session, nil
	case model.SessionStatusInProgress:
	default:
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}

	now := s.now()
	ok, err := s.sessions.UpdateStatus(ctx, session.ID, model.SessionStatusInProgress, model.SessionStatusCompleted, now)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session %d changed concurrently: %w", session.ID, ErrInvalidTransition)
	}
	session.Status = model.SessionStatusCompleted
	session.EndedAt = &now

	s.logger.Info("Session completed", zap.Int64("session_id", session.ID))
	return session, nil
}

// Cancel отменяет занятие. Отмена ещё не начавшегося занятия возвращает место в слоте.
func (s *SessionService) Cancel(ctx context.Context, providerID, sessionID int64) (session *model.Session, err error) {
	ctx, span := tracer.Start(ctx, "session.Cancel")
	span.SetAttributes(attribute.Int64("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	session, err = s.loadOwned(ctx, providerID, sessionID)
	if err != nil {
		return nil, err
	}

	from := session.Status
	switch from {
	case model.SessionStatusCancelled:
		return session, nil
	case model.SessionStatusScheduled, model.SessionStatusInProgress:
	default:
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}

	now := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.sessions.UpdateStatus(ctx, session.ID, from, model.SessionStatusCancelled, now)
		if err != nil {
			return fmt.Errorf("cancel session: %w", err)
		}
		if !ok {
			return fmt.Errorf("session %d changed concurrently: %w", session.ID, ErrInvalidTransition)
		}
		if from == model.SessionStatusScheduled && session.SlotID != nil {
			return s.releaseSlot(ctx, session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	session.Status = model.SessionStatusCancelled
	session.EndedAt = &now

	s.logger.Info("Session cancelled",
		zap.Int64("session_id", session.ID),
		zap.String("previous_status", string(from)),
	)

	attendees, err := s.attendances.ListBySession(ctx, session.ID)
	if err != nil {
		s.logger.Warn("Failed to list attendees", zap.Int64("session_id", session.ID), zap.Error(err))
		return session, nil
	}
	msgs := make([]notify.Message, 0, len(attendees))
	for _, a := range attendees {
		msgs = append(msgs, notify.Message{
			Event:     notify.EventSessionCancelled,
			Recipient: a.RequesterID,
			Data:      map[string]any{"session_id": session.ID},
		})
	}
	notify.Send(ctx, s.notifier, s.logger, msgs...)

	return session, nil
}

// releaseSlot снимает резерв принятой заявки, чтобы место можно было забронировать снова
func (s *SessionService) releaseSlot(ctx context.Context, session *model.Session) error {
	req, err := s.requests.GetByID(ctx, session.BookingRequestID)
	if err != nil {
		return fmt.Errorf("get booking request: %w", err)
	}
	if req == nil || !req.SlotReserved {
		return nil
	}

	from := req.State()
	to := from
	to.SlotReserved = false

	ok, err := s.requests.UpdateState(ctx, req.ID, from, to)
	if err != nil {
		return fmt.Errorf("update booking request state: %w", err)
	}
	if !ok {
		return nil
	}
	return s.slots.Release(ctx, *session.SlotID)
}

// ensureLink выдаёт ссылку один раз; при гонке берётся уже сохранённая
func (s *SessionService) ensureLink(ctx context.Context, session *model.Session) error {
	if session.MeetingRef != nil {
		return nil
	}

	ref := s.links.New()
	ok, err := s.sessions.SetMeetingRef(ctx, session.ID, ref)
	if err != nil {
		return fmt.Errorf("set meeting link: %w", err)
	}
	if ok {
		session.MeetingRef = &ref
		return nil
	}

	current, err := s.load(ctx, session.ID)
	if err != nil {
		return err
	}
	session.MeetingRef = current.MeetingRef
	if session.MeetingRef == nil {
		return fmt.Errorf("session %d has no meeting link", session.ID)
	}
	return nil
}

func (s *SessionService) load(ctx context.Context, sessionID int64) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	return session, nil
}

func (s *SessionService) loadOwned(ctx context.Context, providerID, sessionID int64) (*model.Session, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ProviderID != providerID {
		return nil, ErrForbidden
	}
	return session, nil
}
