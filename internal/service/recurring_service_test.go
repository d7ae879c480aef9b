package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRecurring(env *testEnv) *RecurringService {
	svc := NewRecurringService(env.db, memSchedules{env.db}, time.UTC, 4, zap.NewNop())
	svc.now = env.clock.Now
	return svc
}

// 2026-03-10 - вторник, часы тестов показывают 09:00
func weeklyInput() CreateRecurringInput {
	return CreateRecurringInput{
		ProviderID: providerID,
		Weekdays:   []time.Weekday{time.Tuesday, time.Thursday, time.Tuesday},
		StartTime:  8 * time.Hour,
		EndTime:    9 * time.Hour,
		Capacity:   1,
		BaseRate:   10000,
	}
}

func TestRecurring_CreateGeneratesFutureSlots(t *testing.T) {
	env := newTestEnv(t)
	svc := newRecurring(env)
	ctx := context.Background()

	schedules, created, err := svc.Create(ctx, weeklyInput())
	require.NoError(t, err)

	require.Len(t, schedules, 2, "duplicate weekday collapsed")
	assert.Equal(t, schedules[0].GroupID, schedules[1].GroupID)
	// сегодняшний вторник 08:00 уже прошёл
	assert.Equal(t, 7, created)

	available, err := env.slots.ListAvailable(ctx, providerID, env.clock.Now())
	require.NoError(t, err)
	assert.Len(t, available, 7)
	for _, slot := range available {
		assert.True(t, slot.StartAt(time.UTC).After(env.clock.Now()))
	}
}

func TestRecurring_GenerateAheadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	svc := newRecurring(env)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, weeklyInput())
	require.NoError(t, err)

	n, err := svc.GenerateAhead(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	env.clock.Advance(7 * 24 * time.Hour)
	n, err = svc.GenerateAhead(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one new week per weekday")
}

func TestRecurring_Deactivate(t *testing.T) {
	env := newTestEnv(t)
	svc := newRecurring(env)
	ctx := context.Background()

	schedules, _, err := svc.Create(ctx, weeklyInput())
	require.NoError(t, err)
	id := schedules[0].ID

	_, err = svc.Deactivate(ctx, strangerID, id)
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = svc.Deactivate(ctx, providerID, 9999)
	assert.True(t, errors.Is(err, ErrNotFound))

	got, err := svc.Deactivate(ctx, providerID, id)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// повторное выключение не ошибка
	_, err = svc.Deactivate(ctx, providerID, id)
	require.NoError(t, err)

	env.clock.Advance(7 * 24 * time.Hour)
	n, err := svc.GenerateAhead(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the active weekday is extended")

	list, err := svc.ListForProvider(ctx, providerID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRecurring_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := newRecurring(env)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*CreateRecurringInput)
		wantErr error
	}{
		{"no weekdays", func(in *CreateRecurringInput) { in.Weekdays = nil }, ErrInvalidInput},
		{"bad weekday", func(in *CreateRecurringInput) { in.Weekdays = []time.Weekday{7} }, ErrInvalidInput},
		{"zero capacity", func(in *CreateRecurringInput) { in.Capacity = 0 }, ErrInvalidInput},
		{"end before start", func(in *CreateRecurringInput) { in.EndTime = in.StartTime }, ErrInvalidInput},
		{"zero rate", func(in *CreateRecurringInput) { in.BaseRate = 0 }, pricing.ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := weeklyInput()
			tt.mutate(&in)
			_, _, err := svc.Create(ctx, in)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	list, err := svc.ListForProvider(ctx, providerID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
