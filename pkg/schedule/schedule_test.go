package schedule_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/membership/pkg/schedule"
)

func TestDailyAt_Next(t *testing.T) {
	t.Parallel()

	sched := schedule.DailyAt(3, 0, time.UTC)

	t.Run("before today's run", func(t *testing.T) {
		t.Parallel()

		from := time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)
		next := sched.Next(from)
		assert.Equal(t, time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC), next)
	})

	t.Run("after today's run rolls to tomorrow", func(t *testing.T) {
		t.Parallel()

		from := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		next := sched.Next(from)
		assert.Equal(t, time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC), next)
	})

	t.Run("exactly at the run time rolls forward", func(t *testing.T) {
		t.Parallel()

		from := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
		next := sched.Next(from)
		assert.Equal(t, time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC), next)
	})
}

func TestEvery_Next(t *testing.T) {
	t.Parallel()

	sched := schedule.Every(15 * time.Minute)
	from := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(15*time.Minute), sched.Next(from))
}

func TestRunner_AddJobValidation(t *testing.T) {
	t.Parallel()

	runner := schedule.NewRunner(schedule.WithLogger(discardLogger()))

	noop := func(context.Context) error { return nil }

	require.NoError(t, runner.AddJob("job", schedule.Daily(), noop))
	assert.ErrorIs(t, runner.AddJob("job", schedule.Daily(), noop), schedule.ErrJobAlreadyRegistered)
	assert.ErrorIs(t, runner.AddJob("other", nil, noop), schedule.ErrNilSchedule)
	assert.ErrorIs(t, runner.AddJob("other", schedule.Daily(), nil), schedule.ErrNilJob)
}

func TestRunner_StartWithoutJobs(t *testing.T) {
	t.Parallel()

	runner := schedule.NewRunner(schedule.WithLogger(discardLogger()))
	assert.ErrorIs(t, runner.Start(context.Background()), schedule.ErrNoJobs)
}

func TestRunner_RunDue(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	runner := schedule.NewRunner(
		schedule.WithLogger(discardLogger()),
		schedule.WithNowFunc(clock),
	)

	var runs int
	require.NoError(t, runner.AddJob("hourly", schedule.Every(time.Hour), func(context.Context) error {
		runs++
		return nil
	}))

	// Not due yet.
	runner.RunDue(context.Background())
	assert.Equal(t, 0, runs)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()

	runner.RunDue(context.Background())
	assert.Equal(t, 1, runs)

	// Due time was advanced, so an immediate re-check does nothing.
	runner.RunDue(context.Background())
	assert.Equal(t, 1, runs)
}

func TestRunner_JobFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	runner := schedule.NewRunner(
		schedule.WithLogger(discardLogger()),
		schedule.WithNowFunc(clock),
	)

	var healthyRuns int
	require.NoError(t, runner.AddJob("failing", schedule.Every(time.Minute), func(context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, runner.AddJob("panicking", schedule.Every(time.Minute), func(context.Context) error {
		panic("boom")
	}))
	require.NoError(t, runner.AddJob("healthy", schedule.Every(time.Minute), func(context.Context) error {
		healthyRuns++
		return nil
	}))

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()

	runner.RunDue(context.Background())
	assert.Equal(t, 1, healthyRuns)

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()

	runner.RunDue(context.Background())
	assert.Equal(t, 2, healthyRuns, "failing jobs keep their schedule and never block healthy ones")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
