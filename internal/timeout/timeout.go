// Package timeout runs remote calls under a hard deadline.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/fault"
)

// Error is returned when an operation did not finish before its deadline.
type Error struct {
	Op    string
	After time.Duration
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// Is matches fault.ErrTimeout and context.DeadlineExceeded.
func (e *Error) Is(target error) bool {
	return target == fault.ErrTimeout || target == context.DeadlineExceeded
}

// Call runs fn with a context that expires after d and returns its result.
// If the deadline passes first Call returns an *Error naming op, even when fn
// keeps running in the background. The derived context is always cancelled on
// return. Nothing is retried. A panic in fn is recovered and returned as an
// error matching fault.ErrUnexpected.
func Call[T any](ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if d <= 0 {
		return guarded(ctx, op, fn)
	}

	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}

	done := make(chan result, 1)

	go func() {
		v, err := guarded(cctx, op, fn)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		// fn may itself surface the deadline, report it the same way.
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, timedOut(op, d)
		}

		return r.v, r.err
	case <-cctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err //nolint:wrapcheck
		}

		return zero, timedOut(op, d)
	}
}

// Do is Call for operations without a result.
func Do(ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, d, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

// guarded runs fn and turns a panic into an error.
func guarded[T any](ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("op", op).Str("panic", fmt.Sprint(p)).Msg("remote call panicked")

			var zero T

			v, err = zero, fmt.Errorf("%w: %s panicked: %v", fault.ErrUnexpected, op, p)
		}
	}()

	return fn(ctx)
}

func timedOut(op string, d time.Duration) error {
	log.Warn().Str("op", op).Dur("after", d).Msg("remote call exceeded its deadline")

	return &Error{Op: op, After: d}
}
