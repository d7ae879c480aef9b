package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	providerID  int64 = 100
	requesterID int64 = 200
	strangerID  int64 = 300
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db       *memDB
	clock    *testClock
	gw       *fakeGateway
	notifier *recordingNotifier
	locker   *memLocker

	slots    *SlotService
	earnings *EarningsService
	bookings *BookingService
	sessions *SessionService
	payments *PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	db := newMemDB(clock.Now)
	logger := zap.NewNop()
	gw := newFakeGateway()
	notifier := &recordingNotifier{}
	locker := &memLocker{}

	slots := NewSlotService(memSlots{db}, time.UTC, logger)
	earnings := NewEarningsService(memEarnings{db}, logger)
	bookings := NewBookingService(db, memRequests{db}, slots, memSessions{db}, memAttendances{db},
		earnings, memCourses{db}, notifier, 30*time.Minute, logger)
	sessions := NewSessionService(db, memSessions{db}, memAttendances{db}, memRequests{db},
		slots, NewMeetingLinks("https://meet.example/room/"), notifier, logger)
	payments := NewPaymentService(db, memPayments{db}, bookings, gw, locker, notifier, PaymentConfig{
		Currency:      "thb",
		PublicBaseURL: "https://tutor.example/",
		PollInterval:  time.Millisecond,
		PollTimeout:   50 * time.Millisecond,
	}, logger)

	slots.now = clock.Now
	bookings.now = clock.Now
	sessions.now = clock.Now
	payments.now = clock.Now

	t.Cleanup(payments.Close)

	return &testEnv{
		db:       db,
		clock:    clock,
		gw:       gw,
		notifier: notifier,
		locker:   locker,
		slots:    slots,
		earnings: earnings,
		bookings: bookings,
		sessions: sessions,
		payments: payments,
	}
}

// tomorrow 10:00-11:00 UTC
func (e *testEnv) newSlot(t *testing.T, capacity int) *model.TimeSlot {
	t.Helper()

	slot, err := e.slots.CreateSlot(context.Background(), CreateSlotInput{
		ProviderID: providerID,
		Date:       time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime:  10 * time.Hour,
		EndTime:    11 * time.Hour,
		Capacity:   capacity,
		BaseRate:   10000,
	})
	require.NoError(t, err)
	return slot
}

func (e *testEnv) slot(t *testing.T, id int64) *model.TimeSlot {
	t.Helper()
	slot, err := memSlots{e.db}.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, slot)
	return slot
}

func (e *testEnv) request(t *testing.T, id int64) *model.BookingRequest {
	t.Helper()
	req, err := memRequests{e.db}.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, req)
	return req
}

// submittedRequest заявка на слот в ожидании оплаты с открытым заказом
func (e *testEnv) submittedRequest(t *testing.T, slotID int64) (*model.BookingRequest, *model.PaymentRecord) {
	t.Helper()
	ctx := context.Background()

	req, err := e.bookings.Create(ctx, CreateRequestInput{
		RequesterID: requesterID,
		SlotID:      &slotID,
		Title:       "Algebra",
	})
	require.NoError(t, err)

	req, err = e.bookings.Submit(ctx, requesterID, req.ID)
	require.NoError(t, err)

	rec, err := e.payments.CreateOrder(ctx, CreateOrderInput{
		RequesterID:      requesterID,
		BookingRequestID: req.ID,
		PayerToken:       "tokn_test",
	})
	require.NoError(t, err)

	return req, rec
}

// paidRequest заявка, оплаченная и ожидающая решения преподавателя
func (e *testEnv) paidRequest(t *testing.T, slotID int64) *model.BookingRequest {
	t.Helper()

	req, rec := e.submittedRequest(t, slotID)
	_, err := e.payments.Apply(context.Background(), rec.GatewayOrderID, model.OutcomePaid)
	require.NoError(t, err)

	return e.request(t, req.ID)
}

func (e *testEnv) countEarnings() int {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return len(e.db.earnings)
}

func (e *testEnv) countSessions() int {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return len(e.db.sessions)
}
