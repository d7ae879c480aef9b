package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingJobs struct {
	expire    atomic.Int32
	release   atomic.Int32
	reconcile atomic.Int32
	series    atomic.Int32
	failSlots bool
}

func (c *countingJobs) ExpireSweep(context.Context, time.Time) (int64, error) {
	c.expire.Add(1)
	if c.failSlots {
		return 0, errors.New("db down")
	}
	return 1, nil
}

func (c *countingJobs) ReleaseAbandoned(context.Context, time.Time) (int, error) {
	c.release.Add(1)
	return 0, nil
}

func (c *countingJobs) ReconcilePending(context.Context, time.Duration) (int, error) {
	c.reconcile.Add(1)
	return 0, nil
}

func (c *countingJobs) GenerateAhead(context.Context, time.Time) (int, error) {
	c.series.Add(1)
	return 0, nil
}

func TestScheduler_RunsAllJobs(t *testing.T) {
	jobs := &countingJobs{failSlots: true}
	s := NewScheduler(jobs, jobs, jobs, 5*time.Millisecond, time.Minute, zap.NewNop())

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return jobs.reconcile.Load() >= 2
	}, time.Second, time.Millisecond)
	s.Stop()
	s.Stop()

	assert.GreaterOrEqual(t, jobs.expire.Load(), int32(2))
	assert.GreaterOrEqual(t, jobs.release.Load(), int32(2))
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	jobs := &countingJobs{}
	s := NewScheduler(jobs, jobs, jobs, time.Hour, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), jobs.expire.Load())
}

func TestScheduler_SeriesThrottled(t *testing.T) {
	jobs := &countingJobs{}
	s := NewScheduler(jobs, jobs, jobs, time.Millisecond, time.Minute, zap.NewNop()).
		WithSeries(jobs, time.Hour)

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return jobs.reconcile.Load() >= 5
	}, time.Second, time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), jobs.series.Load())
}
