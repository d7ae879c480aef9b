package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotService_ConcurrentReserveOneToOne(t *testing.T) {
	env := newTestEnv(t)
	slot := env.newSlot(t, 1)

	const attempts = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		lost    int
		unknown []error
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := env.slots.Reserve(context.Background(), slot.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrSlotUnavailable):
				lost++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
	assert.Empty(t, unknown)

	got := env.slot(t, slot.ID)
	assert.Equal(t, model.SlotStatusBooked, got.Status)
	assert.Equal(t, 1, got.BookedCount)
}

func TestSlotService_GroupCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.slots.Reserve(ctx, slot.ID))
	}
	assert.ErrorIs(t, env.slots.Reserve(ctx, slot.ID), ErrSlotUnavailable)

	got := env.slot(t, slot.ID)
	assert.Equal(t, 3, got.BookedCount)
	assert.Equal(t, model.SlotStatusAvailable, got.Status, "group slots are toggled by the provider")

	require.NoError(t, env.slots.Release(ctx, slot.ID))
	assert.Equal(t, 2, env.slot(t, slot.ID).BookedCount)
	require.NoError(t, env.slots.Reserve(ctx, slot.ID))
}

func TestSlotService_ReleaseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slot := env.newSlot(t, 1)

	require.NoError(t, env.slots.Release(ctx, slot.ID))

	require.NoError(t, env.slots.Reserve(ctx, slot.ID))
	require.NoError(t, env.slots.Release(ctx, slot.ID))
	require.NoError(t, env.slots.Release(ctx, slot.ID))

	got := env.slot(t, slot.ID)
	assert.Equal(t, model.SlotStatusAvailable, got.Status)
	assert.Equal(t, 0, got.BookedCount)
}

func TestSlotService_ReserveUnknownSlot(t *testing.T) {
	env := newTestEnv(t)

	err := env.slots.Reserve(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSlotService_ListAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := memSlots{env.db}

	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	add := func(date time.Time, start time.Duration, status model.SlotStatus) int64 {
		s := &model.TimeSlot{
			ProviderID: providerID,
			Date:       date,
			StartTime:  start,
			EndTime:    start + time.Hour,
			Capacity:   1,
			BaseRate:   5000,
			Status:     status,
		}
		require.NoError(t, store.Create(ctx, s))
		return s.ID
	}

	add(today, 8*time.Hour, model.SlotStatusAvailable) // уже началось
	laterToday := add(today, 15*time.Hour, model.SlotStatusAvailable)
	tomorrowLate := add(tomorrow, 18*time.Hour, model.SlotStatusAvailable)
	tomorrowEarly := add(tomorrow, 9*time.Hour, model.SlotStatusAvailable)
	add(tomorrow, 12*time.Hour, model.SlotStatusBooked)

	slots, err := env.slots.ListAvailable(ctx, providerID, env.clock.Now())
	require.NoError(t, err)

	ids := make([]int64, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{laterToday, tomorrowEarly, tomorrowLate}, ids)
}

func TestSlotService_ExpireSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := memSlots{env.db}

	past := &model.TimeSlot{
		ProviderID: providerID,
		Date:       time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		StartTime:  10 * time.Hour,
		EndTime:    11 * time.Hour,
		Capacity:   1,
		BaseRate:   5000,
		Status:     model.SlotStatusAvailable,
	}
	require.NoError(t, store.Create(ctx, past))
	pastBooked := *past
	pastBooked.Status = model.SlotStatusBooked
	require.NoError(t, store.Create(ctx, &pastBooked))
	future := env.newSlot(t, 1)

	n, err := env.slots.ExpireSweep(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, model.SlotStatusExpired, env.slot(t, past.ID).Status)
	assert.Equal(t, model.SlotStatusBooked, env.slot(t, pastBooked.ID).Status)
	assert.Equal(t, model.SlotStatusAvailable, env.slot(t, future.ID).Status)
}

func TestSlotService_CreateSlotValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	valid := CreateSlotInput{
		ProviderID: providerID,
		Date:       time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		StartTime:  10 * time.Hour,
		EndTime:    11 * time.Hour,
		Capacity:   1,
		BaseRate:   10000,
	}

	tests := []struct {
		name   string
		modify func(in *CreateSlotInput)
		want   error
	}{
		{"zero rate", func(in *CreateSlotInput) { in.BaseRate = 0 }, pricing.ErrInvalidRate},
		{"zero capacity", func(in *CreateSlotInput) { in.Capacity = 0 }, ErrInvalidInput},
		{"end before start", func(in *CreateSlotInput) { in.EndTime = 9 * time.Hour }, ErrInvalidInput},
		{"in the past", func(in *CreateSlotInput) { in.Date = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)
			_, err := env.slots.CreateSlot(ctx, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	slot, err := env.slots.CreateSlot(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusAvailable, slot.Status)
	assert.NotZero(t, slot.ID)
}

func TestSlotService_SetGroupStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	single := env.newSlot(t, 1)
	_, err := env.slots.SetGroupStatus(ctx, providerID, single.ID, model.SlotStatusBooked)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	group := env.newSlot(t, 5)
	_, err = env.slots.SetGroupStatus(ctx, strangerID, group.ID, model.SlotStatusBooked)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := env.slots.SetGroupStatus(ctx, providerID, group.ID, model.SlotStatusBooked)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, got.Status)
	assert.ErrorIs(t, env.slots.Reserve(ctx, group.ID), ErrSlotUnavailable)

	_, err = env.slots.SetGroupStatus(ctx, providerID, group.ID, model.SlotStatusAvailable)
	require.NoError(t, err)
	assert.NoError(t, env.slots.Reserve(ctx, group.ID))
}
