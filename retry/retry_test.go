package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(base time.Duration, attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: base}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fixed(10*time.Millisecond, 3), func(context.Context) error {
		attempts++
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Immediate(5), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := Do(context.Background(), Immediate(3), func(context.Context) error {
		attempts++
		return expectedErr
	}, nil)
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestDo_NonRetryableStops(t *testing.T) {
	quota := errors.New("quota exceeded")
	attempts := 0
	err := Do(context.Background(), Immediate(5), func(context.Context) error {
		attempts++
		return quota
	}, func(err error) bool { return !errors.Is(err, quota) })

	assert.ErrorIs(t, err, quota)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, fixed(10*time.Millisecond, 10), func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestDo_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	err := Do(ctx, fixed(10*time.Millisecond, 10), func(context.Context) error {
		attempts++
		time.Sleep(30 * time.Millisecond)
		return errors.New("error")
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "should return context.DeadlineExceeded")
	assert.LessOrEqual(t, attempts, 3, "should stop when context times out")
}

func TestDo_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		attempts := 0
		err := Do(context.Background(), Immediate(n), func(context.Context) error {
			attempts++
			return nil
		}, nil)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Equal(t, 0, attempts)
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Exponential(3)
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
	assert.Equal(t, 8*time.Second, p.Backoff(10), "capped at MaxDelay")

	uncapped := Policy{BaseDelay: time.Second}
	assert.Equal(t, 8*time.Second, uncapped.Backoff(4))
}

func TestPolicy_JitterWithinBounds(t *testing.T) {
	p := Exponential(3)
	for range 100 {
		d := p.delay(2)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 4*time.Second)
	}
}
