package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_ReturnsResult(t *testing.T) {
	t.Parallel()

	v, err := Run(t.Context(), time.Second, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestRun_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := Run(t.Context(), time.Second, func(context.Context) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
}

func TestRun_TimesOutWithoutWaiting(t *testing.T) {
	t.Parallel()

	// Arrange: an operation that blocks far longer than the budget
	release := make(chan struct{})
	var finished atomic.Bool
	op := func(context.Context) (int, error) {
		<-release
		finished.Store(true)
		return 1, nil
	}

	// Act
	start := time.Now()
	_, err := Run(t.Context(), 20*time.Millisecond, op)

	// Assert: returned promptly and the op was abandoned, not completed
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), time.Second)
	require.False(t, finished.Load())

	// the stranded call still runs to completion once unblocked
	close(release)
	require.Eventually(t, finished.Load, time.Second, 5*time.Millisecond)
}

func TestRun_AbandonedCallKeepsItsContext(t *testing.T) {
	t.Parallel()

	ctxErr := make(chan error, 1)
	_, err := Run(t.Context(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		ctxErr <- ctx.Err()
		return 0, nil
	})
	require.ErrorIs(t, err, ErrTimeout)

	// timing out does not cancel the operation's context
	select {
	case e := <-ctxErr:
		require.NoError(t, e)
	case <-time.After(time.Second):
		t.Fatal("operation never finished")
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	t.Parallel()

	_, err := Run(t.Context(), time.Second, func(context.Context) (int, error) { panic("bad vendor") })
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad vendor")
}

func TestRun_ParentContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := Run(ctx, time.Second, func(context.Context) (int, error) {
		time.Sleep(100 * time.Millisecond)
		return 0, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_NonPositiveTimeoutIsStillBounded(t *testing.T) {
	t.Parallel()

	v, err := Run(t.Context(), 0, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}
