package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingService_CreateReservesSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)

	req, err := env.bookings.Create(ctx, CreateRequestInput{RequesterID: requesterID, SlotID: &slot.ID})
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusDraft, req.Status)
	assert.Equal(t, model.PaymentStatusUnpaid, req.PaymentStatus)
	assert.True(t, req.SlotReserved)
	assert.Equal(t, providerID, req.ProviderID)
	assert.Equal(t, int64(11000), req.AmountCharged)
	assert.Equal(t, int64(9000), req.AmountPayable)
	assert.Equal(t, 60, req.ProposedDuration)

	got := env.slot(t, slot.ID)
	assert.Equal(t, model.SlotStatusBooked, got.Status)
	assert.Equal(t, 1, got.BookedCount)

	_, err = env.bookings.Create(ctx, CreateRequestInput{RequesterID: strangerID, SlotID: &slot.ID})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookingService_ConcurrentCreateSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	slot := env.newSlot(t, 1)

	const attempts = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  int
		lost int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(requester int64) {
			defer wg.Done()
			_, err := env.bookings.Create(context.Background(), CreateRequestInput{
				RequesterID: requester,
				SlotID:      &slot.ID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++
			} else if errors.Is(err, ErrSlotUnavailable) {
				lost++
			}
		}(int64(1000 + i))
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
	assert.Equal(t, 1, env.slot(t, slot.ID).BookedCount)
}

func TestBookingService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)

	_, err := env.bookings.Create(ctx, CreateRequestInput{RequesterID: requesterID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.bookings.Create(ctx, CreateRequestInput{RequesterID: providerID, SlotID: &slot.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, model.SlotStatusAvailable, env.slot(t, slot.ID).Status)

	missing := int64(404)
	_, err = env.bookings.Create(ctx, CreateRequestInput{RequesterID: requesterID, SlotID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingService_AcceptUnpaidFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)

	req, err := env.bookings.Create(ctx, CreateRequestInput{RequesterID: requesterID, SlotID: &slot.ID})
	require.NoError(t, err)
	_, err = env.bookings.Submit(ctx, requesterID, req.ID)
	require.NoError(t, err)

	_, err = env.bookings.Accept(ctx, providerID, req.ID)
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	_, err = env.bookings.Reject(ctx, providerID, req.ID)
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	assert.Equal(t, 0, env.countSessions())
	assert.Equal(t, 0, env.countEarnings())
	assert.Equal(t, model.BookingStatusAwaitingPayment, env.request(t, req.ID).Status)
}

func TestBookingService_AcceptCreatesSessionAndEarning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)
	req := env.paidRequest(t, slot.ID)

	require.Equal(t, model.BookingStatusAwaitingDecision, req.Status)

	pending, err := env.bookings.ListPending(ctx, providerID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)

	_, err = env.bookings.Accept(ctx, strangerID, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	session, err := env.bookings.Accept(ctx, providerID, req.ID)
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusScheduled, session.Status)
	assert.Equal(t, time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC), session.StartTime)
	assert.Equal(t, time.Date(2026, 3, 11, 11, 0, 0, 0, time.UTC), session.EndTime)
	assert.Equal(t, int64(10000), session.BaseRate)
	assert.Equal(t, int64(11000), session.PayerAmount)
	assert.Equal(t, int64(9000), session.PayeeAmount)

	got := env.request(t, req.ID)
	assert.Equal(t, model.BookingStatusAccepted, got.Status)
	assert.True(t, got.SlotReserved)

	a, err := memAttendances{env.db}.Get(ctx, session.ID, requesterID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Nil(t, a.JoinedAt)

	earnings, err := env.earnings.ListForProvider(ctx, providerID)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, session.ID, earnings[0].SessionID)
	assert.Equal(t, int64(9000), earnings[0].Amount)
	assert.Equal(t, model.EarningStatusPending, earnings[0].Status)

	assert.Equal(t, 1, env.notifier.count(notify.EventRequestAccepted))
	assert.Equal(t, 1, env.notifier.count(notify.EventSessionScheduled))

	again, err := env.bookings.Accept(ctx, providerID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, again.ID)
	assert.Equal(t, 1, env.countSessions())
	assert.Equal(t, 1, env.countEarnings())

	_, err = env.bookings.Reject(ctx, providerID, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBookingService_RejectRestoresSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)
	before := env.slot(t, slot.ID)

	req := env.paidRequest(t, slot.ID)
	require.Equal(t, model.SlotStatusBooked, env.slot(t, slot.ID).Status)

	rejected, err := env.bookings.Reject(ctx, providerID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusRejected, rejected.Status)
	assert.False(t, rejected.SlotReserved)

	after := env.slot(t, slot.ID)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.BookedCount, after.BookedCount)

	_, err = env.bookings.Reject(ctx, providerID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, env.slot(t, slot.ID).BookedCount)

	_, err = env.bookings.Accept(ctx, providerID, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, env.countSessions())
	assert.Equal(t, 1, env.notifier.count(notify.EventRequestRejected))
}

func TestBookingService_RejectGroupSlotRestoresCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 4)
	require.NoError(t, env.slots.Reserve(ctx, slot.ID))

	req := env.paidRequest(t, slot.ID)
	assert.Equal(t, 2, env.slot(t, slot.ID).BookedCount)

	_, err := env.bookings.Reject(ctx, providerID, req.ID)
	require.NoError(t, err)

	got := env.slot(t, slot.ID)
	assert.Equal(t, 1, got.BookedCount)
	assert.Equal(t, model.SlotStatusAvailable, got.Status)
}

func TestBookingService_AcceptRollsBackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)
	req := env.paidRequest(t, slot.ID)

	env.db.earningCreateErr = errors.New("disk full")

	_, err := env.bookings.Accept(ctx, providerID, req.ID)
	require.Error(t, err)

	got := env.request(t, req.ID)
	assert.Equal(t, model.BookingStatusAwaitingDecision, got.Status)
	assert.Equal(t, 0, env.countSessions())
	assert.Equal(t, 0, env.countEarnings())
	assert.Equal(t, 0, env.notifier.count(notify.EventRequestAccepted))

	env.db.earningCreateErr = nil

	session, err := env.bookings.Accept(ctx, providerID, req.ID)
	require.NoError(t, err)
	assert.NotZero(t, session.ID)
	assert.Equal(t, 1, env.countEarnings())
}

func TestBookingService_ReleaseAbandoned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)

	req, err := env.bookings.Create(ctx, CreateRequestInput{RequesterID: requesterID, SlotID: &slot.ID})
	require.NoError(t, err)
	_, err = env.bookings.Submit(ctx, requesterID, req.ID)
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	n, err := env.bookings.ReleaseAbandoned(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(25 * time.Minute)
	n, err = env.bookings.ReleaseAbandoned(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := env.request(t, req.ID)
	assert.Equal(t, model.BookingStatusDraft, got.Status)
	assert.False(t, got.SlotReserved)
	assert.Equal(t, model.SlotStatusAvailable, env.slot(t, slot.ID).Status)

	resubmitted, err := env.bookings.Submit(ctx, requesterID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusAwaitingPayment, resubmitted.Status)
	assert.True(t, resubmitted.SlotReserved)
	assert.Equal(t, model.SlotStatusBooked, env.slot(t, slot.ID).Status)
}

func TestBookingService_SubmitFailsWhenSlotTaken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)

	req, err := env.bookings.Create(ctx, CreateRequestInput{RequesterID: requesterID, SlotID: &slot.ID})
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	_, err = env.bookings.ReleaseAbandoned(ctx, env.clock.Now())
	require.NoError(t, err)

	_, err = env.bookings.Create(ctx, CreateRequestInput{RequesterID: strangerID, SlotID: &slot.ID})
	require.NoError(t, err)

	_, err = env.bookings.Submit(ctx, requesterID, req.ID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, model.BookingStatusDraft, env.request(t, req.ID).Status)
	assert.Equal(t, 1, env.slot(t, slot.ID).BookedCount)
}

func TestBookingService_CourseRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.db.courses[7] = model.Course{
		ID:              7,
		ProviderID:      providerID,
		Title:           "Physics",
		BaseRate:        20000,
		DurationMinutes: 90,
		IsActive:        true,
	}
	courseID := int64(7)

	_, err := env.bookings.Create(ctx, CreateRequestInput{RequesterID: requesterID, CourseID: &courseID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	start := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)
	req, err := env.bookings.Create(ctx, CreateRequestInput{
		RequesterID:   requesterID,
		CourseID:      &courseID,
		ProposedStart: &start,
	})
	require.NoError(t, err)
	assert.False(t, req.SlotReserved)
	assert.Equal(t, "Physics", req.Title)
	assert.Equal(t, int64(22000), req.AmountCharged)
	assert.Equal(t, int64(18000), req.AmountPayable)

	_, err = env.bookings.Submit(ctx, requesterID, req.ID)
	require.NoError(t, err)
	rec, err := env.payments.CreateOrder(ctx, CreateOrderInput{
		RequesterID:      requesterID,
		BookingRequestID: req.ID,
		PayerToken:       "tokn_test",
	})
	require.NoError(t, err)
	_, err = env.payments.Apply(ctx, rec.GatewayOrderID, model.OutcomePaid)
	require.NoError(t, err)

	session, err := env.bookings.Accept(ctx, providerID, req.ID)
	require.NoError(t, err)
	assert.Nil(t, session.SlotID)
	assert.Equal(t, start, session.StartTime)
	assert.Equal(t, start.Add(90*time.Minute), session.EndTime)
	assert.Equal(t, int64(18000), session.PayeeAmount)
}

func TestBookingService_GetVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)

	req, err := env.bookings.Create(ctx, CreateRequestInput{RequesterID: requesterID, SlotID: &slot.ID})
	require.NoError(t, err)

	_, err = env.bookings.Get(ctx, requesterID, req.ID)
	assert.NoError(t, err)
	_, err = env.bookings.Get(ctx, providerID, req.ID)
	assert.NoError(t, err)
	_, err = env.bookings.Get(ctx, strangerID, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.bookings.Get(ctx, requesterID, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.bookings.Submit(ctx, strangerID, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := env.bookings.ListForRequester(ctx, requesterID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
