package export

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter(t *testing.T) {
	t.Run("first turn is immediate", func(t *testing.T) {
		clock := quartz.NewMock(t)
		l := NewLimiter(10*time.Second, clock)

		require.NoError(t, l.Wait(context.Background()))
	})

	t.Run("spaces turns by the interval", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		clock := quartz.NewMock(t)
		trap := clock.Trap().NewTimer("limiter", "wait")
		defer trap.Close()
		l := NewLimiter(10*time.Second, clock)

		require.NoError(t, l.Wait(ctx))
		clock.Advance(4 * time.Second).MustWait(ctx)

		done := make(chan error, 1)
		go func() { done <- l.Wait(ctx) }()

		call := trap.MustWait(ctx)
		assert.Equal(t, 6*time.Second, call.Duration)
		call.MustRelease(ctx)

		select {
		case <-done:
			t.Fatal("second turn granted before the interval passed")
		default:
		}

		clock.Advance(6 * time.Second).MustWait(ctx)
		require.NoError(t, <-done)
	})

	t.Run("no wait once the interval has passed", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		clock := quartz.NewMock(t)
		l := NewLimiter(10*time.Second, clock)

		require.NoError(t, l.Wait(ctx))
		clock.Advance(11 * time.Second).MustWait(ctx)
		require.NoError(t, l.Wait(ctx))
	})

	t.Run("cancellation while waiting", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		clock := quartz.NewMock(t)
		trap := clock.Trap().NewTimer("limiter", "wait")
		defer trap.Close()
		l := NewLimiter(10*time.Second, clock)
		require.NoError(t, l.Wait(ctx))

		waitCtx, waitCancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- l.Wait(waitCtx) }()

		trap.MustWait(ctx).MustRelease(ctx)
		waitCancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("nil limiter", func(t *testing.T) {
		var l *Limiter
		assert.NoError(t, l.Wait(context.Background()))
	})
}

func TestClockSleeper(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	trap := clock.Trap().NewTimer("export", "poll")
	defer trap.Close()
	sleep := ClockSleeper(clock)

	done := make(chan error, 1)
	go func() { done <- sleep(ctx, 15*time.Second) }()

	call := trap.MustWait(ctx)
	assert.Equal(t, 15*time.Second, call.Duration)
	call.MustRelease(ctx)

	clock.Advance(15 * time.Second).MustWait(ctx)
	require.NoError(t, <-done)
}
