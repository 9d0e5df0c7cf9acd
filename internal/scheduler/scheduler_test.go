package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kjannette/moverbot/internal/models"
	"github.com/kjannette/moverbot/internal/scheduler"
)

func TestEvery_Next(t *testing.T) {
	base := time.Date(2025, 4, 5, 12, 0, 0, 0, time.UTC)
	require.Equal(t, base.Add(15*time.Minute), scheduler.Every(15*time.Minute).Next(base))
}

func TestDailyAt_Next(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	s := scheduler.DailyAt(0, 0, loc)

	before := time.Date(2025, 4, 5, 23, 59, 0, 0, loc)
	require.Equal(t, time.Date(2025, 4, 6, 0, 0, 0, 0, loc), s.Next(before))

	atMidnight := time.Date(2025, 4, 6, 0, 0, 0, 0, loc)
	require.Equal(t, time.Date(2025, 4, 7, 0, 0, 0, 0, loc), s.Next(atMidnight))

	// 22:30 UTC is 01:30 the next day in loc
	utc := time.Date(2025, 4, 5, 22, 30, 0, 0, time.UTC)
	require.True(t, time.Date(2025, 4, 7, 0, 0, 0, 0, loc).Equal(s.Next(utc)))
}

func TestScheduler_StartStop(t *testing.T) {
	var runs atomic.Int32
	sched := scheduler.New(nil, scheduler.Task{
		Name:         "tick",
		Schedule:     scheduler.Every(20 * time.Millisecond),
		InitialDelay: time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	sched.Start()
	require.True(t, sched.Running())

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	sched.Stop()
	require.False(t, sched.Running())

	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, after, runs.Load(), "task ran after Stop")

	sched.Stop()
}

func TestScheduler_Outcomes(t *testing.T) {
	var mu sync.Mutex
	got := map[string]models.TaskOutcome{}

	sched := scheduler.New(func(r scheduler.Result) {
		mu.Lock()
		got[r.Task] = r.Outcome
		mu.Unlock()
	},
		scheduler.Task{Name: "ok", Schedule: scheduler.Every(time.Hour), Run: func(context.Context) error { return nil }},
		scheduler.Task{Name: "skip", Schedule: scheduler.Every(time.Hour), Run: func(context.Context) error {
			return fmt.Errorf("%w: nothing to do", scheduler.ErrSkip)
		}},
		scheduler.Task{Name: "busy", Schedule: scheduler.Every(time.Hour), Run: func(context.Context) error {
			return models.ErrCycleInProgress
		}},
		scheduler.Task{Name: "fail", Schedule: scheduler.Every(time.Hour), Run: func(context.Context) error {
			return errors.New("boom")
		}},
		scheduler.Task{Name: "panic", Schedule: scheduler.Every(time.Hour), Run: func(context.Context) error {
			panic("kaboom")
		}},
	)

	ctx := context.Background()
	for _, name := range []string{"ok", "skip", "busy", "fail", "panic"} {
		_, err := sched.RunNow(ctx, name)
		require.NoError(t, err)
	}

	require.Equal(t, models.OutcomeSuccess, got["ok"])
	require.Equal(t, models.OutcomeSkip, got["skip"])
	require.Equal(t, models.OutcomeSkip, got["busy"])
	require.Equal(t, models.OutcomeError, got["fail"])
	require.Equal(t, models.OutcomeError, got["panic"])

	last := sched.LastResults()
	require.Contains(t, last["panic"].Error, "kaboom")

	_, err := sched.RunNow(ctx, "missing")
	require.Error(t, err)
	require.Equal(t, []string{"ok", "skip", "busy", "fail", "panic"}, sched.Tasks())
}

func TestScheduler_PanicDoesNotStopLoop(t *testing.T) {
	var runs atomic.Int32
	sched := scheduler.New(nil, scheduler.Task{
		Name:         "flaky",
		Schedule:     scheduler.Every(10 * time.Millisecond),
		InitialDelay: time.Millisecond,
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				panic("first run")
			}
			return nil
		},
	})
	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_TimeoutCancelsRun(t *testing.T) {
	sched := scheduler.New(nil, scheduler.Task{
		Name:     "slow",
		Schedule: scheduler.Every(time.Hour),
		Timeout:  20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	res, err := sched.RunNow(context.Background(), "slow")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeError, res.Outcome)
	require.Contains(t, res.Error, "deadline")
}

func TestScheduler_TriggerRules(t *testing.T) {
	ran := make(chan string, 2)
	run := func(name string) func(context.Context) error {
		return func(context.Context) error {
			ran <- name
			return nil
		}
	}
	sched := scheduler.New(nil,
		scheduler.Task{Name: "poll", Schedule: scheduler.Every(time.Hour), Manual: true, Run: run("poll")},
		scheduler.Task{Name: "flush", Schedule: scheduler.Every(time.Hour), Run: run("flush")},
	)

	require.ErrorIs(t, sched.Trigger("poll"), scheduler.ErrNotRunning)

	sched.Start()
	defer sched.Stop()

	require.ErrorIs(t, sched.Trigger("missing"), scheduler.ErrUnknownTask)
	require.ErrorIs(t, sched.Trigger("flush"), scheduler.ErrNotManual)
	require.NoError(t, sched.Trigger("poll"))

	select {
	case name := <-ran:
		require.Equal(t, "poll", name)
	case <-time.After(2 * time.Second):
		t.Fatal("triggered task did not run")
	}
	require.Len(t, ran, 0, "schedule-only task never ran")
	require.Eventually(t, func() bool {
		return sched.LastResults()["poll"].Outcome == models.OutcomeSuccess
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopWaitsForTriggeredRun(t *testing.T) {
	entered := make(chan struct{})
	var cancelled atomic.Bool
	sched := scheduler.New(nil, scheduler.Task{
		Name:     "poll",
		Schedule: scheduler.Every(time.Hour),
		Manual:   true,
		Run: func(ctx context.Context) error {
			close(entered)
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			cancelled.Store(true)
			return ctx.Err()
		},
	})
	sched.Start()
	require.NoError(t, sched.Trigger("poll"))
	<-entered

	sched.Stop()
	require.True(t, cancelled.Load(), "Stop returned before the triggered run finished")
	require.Equal(t, models.OutcomeError, sched.LastResults()["poll"].Outcome)
}
