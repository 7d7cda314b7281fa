package trigger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCadenceExpression(t *testing.T) {
	assert.Equal(t, "@every 5s", CadenceExpression(5*time.Second))
	assert.Equal(t, "@every 1m0s", CadenceExpression(time.Minute))
	assert.Equal(t, "@every 1s", CadenceExpression(200*time.Millisecond))
	assert.Equal(t, "@every 2s", CadenceExpression(2500*time.Millisecond))
}

func TestScheduleFuncValidation(t *testing.T) {
	s := NewScheduler()
	_, err := s.ScheduleFunc("", func(context.Context) error { return nil })
	require.Error(t, err)

	_, err = s.ScheduleFunc("@every 1s", nil)
	require.Error(t, err)

	_, err = s.ScheduleFunc("not a cron line", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestScheduleFuncRuns(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	h, err := s.ScheduleFunc("@every 100ms", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond)
	assert.NotEqual(t, ScheduleStatusScheduled, h.Status())
}

func TestFailedRunKeepsFiring(t *testing.T) {
	var failures atomic.Int32
	s := NewScheduler(WithErrorHandler(func(error) {
		failures.Add(1)
	}))
	var runs atomic.Int32
	_, err := s.ScheduleFunc("@every 100ms", func(context.Context) error {
		runs.Add(1)
		return errors.New("tick failed")
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2 && failures.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCancelStopsJob(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	h, err := s.ScheduleFunc("@every 50ms", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	h.Cancel()
	assert.Equal(t, ScheduleStatusCanceled, h.Status())

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("handle not done after cancel")
	}

	settled := runs.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, settled, runs.Load())
}

func TestConcurrentCancelAndStop(t *testing.T) {
	s := NewScheduler()
	handles := make([]Handle, 0, 8)
	for i := 0; i < 8; i++ {
		h, err := s.ScheduleFunc("@every 1h", func(context.Context) error { return nil })
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.NoError(t, s.Start(context.Background()))

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			h.Cancel()
		}(h)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, s.Stop(context.Background()))
	}()
	wg.Wait()

	for _, h := range handles {
		select {
		case <-h.Done():
		case <-time.After(time.Second):
			t.Fatal("handle not done after cancel/stop")
		}
	}
}

func TestStopMarksHandlesStopped(t *testing.T) {
	s := NewScheduler()
	h, err := s.ScheduleFunc("@every 1h", func(context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, ScheduleStatusStopped, h.Status())
}
