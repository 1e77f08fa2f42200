package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberportal/memberportal/internal/fault"
)

var errBoom = errors.New("boom")

func TestCallReturnsResult(t *testing.T) {
	got, err := Call(context.Background(), time.Second, "profile", func(context.Context) (string, error) {
		return "u1", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "u1", got)
}

func TestCallPassesFailureThrough(t *testing.T) {
	_, err := Call(context.Background(), time.Second, "profile", func(context.Context) (int, error) {
		return 0, errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, fault.ErrTimeout)
}

func TestCallTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()

	_, err := Call(context.Background(), 20*time.Millisecond, "groups", func(context.Context) (int, error) {
		<-release // ignores its context on purpose
		return 1, nil
	})

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "groups", te.Op)
	assert.Equal(t, 20*time.Millisecond, te.After)
	require.ErrorIs(t, err, fault.ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, fault.Timeout, fault.KindOf(err))
}

func TestCallCancelsContextOnReturn(t *testing.T) {
	var seen context.Context

	_, err := Call(context.Background(), time.Minute, "sign-out", func(ctx context.Context) (bool, error) {
		seen = ctx
		return true, nil
	})

	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.ErrorIs(t, seen.Err(), context.Canceled)
}

func TestCallDeadlineSurfacedByOperation(t *testing.T) {
	err := Do(context.Background(), 10*time.Millisecond, "update", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "update", te.Op)
}

func TestCallParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, time.Second, "login", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, fault.ErrTimeout)
}

func TestCallWithoutDeadline(t *testing.T) {
	got, err := Call(context.Background(), 0, "noop", func(context.Context) (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestCallRecoversPanic(t *testing.T) {
	for _, d := range []time.Duration{0, time.Second} {
		_, err := Call(context.Background(), d, "fetch profile", func(context.Context) (int, error) {
			panic("driver bug")
		})

		require.ErrorIs(t, err, fault.ErrUnexpected)
		assert.Contains(t, err.Error(), "fetch profile panicked: driver bug")
		assert.Equal(t, fault.Unexpected, fault.KindOf(err))
	}
}
