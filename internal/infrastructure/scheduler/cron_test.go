package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronSchedulerRejectsBadExpression(t *testing.T) {
	t.Parallel()

	_, err := NewCronScheduler("every evening", time.UTC, nil)
	require.Error(t, err)
}

func TestCronSchedulerNextRunInLocation(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	sched, err := NewCronScheduler("0 20 * * *", loc, nil)
	require.NoError(t, err)

	assert.True(t, sched.Next().IsZero())
	require.NoError(t, sched.Start(context.Background(), func(time.Time) {}))
	defer sched.Stop(context.Background())

	next := sched.Next().In(loc)
	assert.Equal(t, 20, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.Error(t, sched.Start(context.Background(), func(time.Time) {}), "second start must fail")
}

func TestCronSchedulerFiresAndRecovers(t *testing.T) {
	t.Parallel()

	sched, err := NewCronScheduler("@every 1s", time.UTC, nil)
	require.NoError(t, err)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sched.Start(ctx, func(time.Time) {
		if calls.Add(1) == 1 {
			panic("first run explodes")
		}
	}))

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, sched.Stop(context.Background()))
	require.NoError(t, sched.Stop(context.Background()))
}

func TestCronSchedulerStopsWithContext(t *testing.T) {
	t.Parallel()

	sched, err := NewCronScheduler("@every 1s", time.UTC, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sched.Start(ctx, func(time.Time) {}))
	cancel()

	require.Eventually(t, func() bool { return sched.Next().IsZero() }, 2*time.Second, 20*time.Millisecond)
}
