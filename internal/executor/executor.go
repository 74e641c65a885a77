// Package executor bounds provider calls in wall-clock time.
//
// A call that outlives its budget is abandoned, not cancelled: Run returns
// ErrTimeout immediately and the operation keeps running on its own
// goroutine until it returns. Callers must tolerate its late side effects.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout is used when a caller passes a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when an operation does not finish within its budget.
var ErrTimeout = errors.New("executor: call timed out")

// Run executes op on a dedicated goroutine and waits at most timeout for it.
// No retry happens here.
func Run[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type result struct {
		v   T
		err error
	}
	// buffered: a stranded op must be able to deliver and exit
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- result{err: fmt.Errorf("executor: operation panicked: %v", rec)}
			}
		}()
		v, err := op(ctx)
		ch <- result{v: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-timer.C:
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
