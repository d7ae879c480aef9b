package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
)

// Transactor выполняет fn атомарно: либо все записи, либо ни одной
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type SlotStore interface {
	Create(ctx context.Context, slot *model.TimeSlot) error
	GetByID(ctx context.Context, id int64) (*model.TimeSlot, error)
	ListAvailable(ctx context.Context, providerID int64, today time.Time, nowClock time.Duration) ([]*model.TimeSlot, error)
	Reserve(ctx context.Context, slotID int64) (bool, error)
	Release(ctx context.Context, slotID int64) (bool, error)
	UpdateStatus(ctx context.Context, slotID int64, from, to model.SlotStatus) (bool, error)
	ExpireBefore(ctx context.Context, date time.Time) (int64, error)
}

type BookingRequestStore interface {
	Create(ctx context.Context, req *model.BookingRequest) error
	GetByID(ctx context.Context, id int64) (*model.BookingRequest, error)
	ListByProvider(ctx context.Context, providerID int64, status model.BookingStatus) ([]*model.BookingRequest, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]*model.BookingRequest, error)
	ListUnpaidHolds(ctx context.Context, before time.Time) ([]*model.BookingRequest, error)
	UpdateState(ctx context.Context, id int64, from, to model.RequestState) (bool, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	GetByBookingRequest(ctx context.Context, requestID int64) (*model.Session, error)
	ListByProvider(ctx context.Context, providerID int64, from, to time.Time) ([]*model.Session, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.SessionStatus, at time.Time) (bool, error)
	SetMeetingRef(ctx context.Context, id int64, ref string) (bool, error)
}

type AttendanceStore interface {
	Create(ctx context.Context, a *model.Attendance) error
	Get(ctx context.Context, sessionID, requesterID int64) (*model.Attendance, error)
	ListBySession(ctx context.Context, sessionID int64) ([]*model.Attendance, error)
	MarkJoined(ctx context.Context, sessionID, requesterID int64, at time.Time) error
}

type EarningStore interface {
	Create(ctx context.Context, e *model.EarningRecord) error
	GetBySession(ctx context.Context, sessionID int64) (*model.EarningRecord, error)
	ListByProvider(ctx context.Context, providerID int64) ([]*model.EarningRecord, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.PaymentRecord) error
	GetByOrderID(ctx context.Context, orderID string) (*model.PaymentRecord, error)
	GetLatestByBookingRequest(ctx context.Context, requestID int64) (*model.PaymentRecord, error)
	ListPending(ctx context.Context, before time.Time) ([]*model.PaymentRecord, error)
	UpdateStatus(ctx context.Context, orderID string, from, to model.PaymentRecordStatus) (bool, error)
}

// CourseDirectory каталог курсов (внешний)
type CourseDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.Course, error)
}

// Locker аренда ключа между экземплярами сервиса
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type RecurringStore interface {
	Create(ctx context.Context, s *model.RecurringSchedule) error
	GetByID(ctx context.Context, id int64) (*model.RecurringSchedule, error)
	ListByProvider(ctx context.Context, providerID int64) ([]*model.RecurringSchedule, error)
	ListActive(ctx context.Context) ([]*model.RecurringSchedule, error)
	Deactivate(ctx context.Context, id int64) (bool, error)
	CreateSlot(ctx context.Context, scheduleID int64, slot *model.TimeSlot) (bool, error)
}
