package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
)

var errTransient = errors.New("503 service unavailable")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "fetch", fastRetry(5), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "fetch", fastRetry(4), func() error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	cfg := fastRetry(5)
	cfg.Retryable = func(err error) bool { return errors.Is(err, errTransient) }
	notFound := errors.New("404 not found")

	calls := 0
	err := Retry(context.Background(), "fetch", cfg, func() error {
		calls++
		return notFound
	})
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
}

func TestRetry_PermanentUnwraps(t *testing.T) {
	bad := errors.New("malformed body")
	calls := 0
	err := Retry(context.Background(), "fetch", fastRetry(5), func() error {
		calls++
		return Permanent(bad)
	})
	assert.Equal(t, bad, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, "fetch", fastRetry(5), func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestComputeDelay_CappedAtMax(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2, JitterFraction: 0.1}
	assert.LessOrEqual(t, computeDelay(10, cfg), 3*time.Second)
	d := computeDelay(1, cfg)
	assert.InDelta(t, float64(time.Second), float64(d), float64(100*time.Millisecond))
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	var transitions []State
	b := NewBreaker("eutils", BreakerConfig{
		Threshold: 2,
		Cooldown:  20 * time.Millisecond,
		OnChange:  func(_ string, to State) { transitions = append(transitions, to) },
	})
	fail := func() error { return errTransient }

	assert.Error(t, b.Do(fail))
	assert.Equal(t, StateClosed, b.State())
	assert.Error(t, b.Do(fail))
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	b := NewBreaker("baseline", BreakerConfig{Threshold: 1, Cooldown: 10 * time.Millisecond})
	_ = b.Do(func() error { return errTransient })
	time.Sleep(15 * time.Millisecond)
	_ = b.Do(func() error { return errTransient })
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen, "cooldown restarts")
}

func TestBreaker_OneTrialAtATime(t *testing.T) {
	b := NewBreaker("eutils", BreakerConfig{Threshold: 1, Cooldown: 5 * time.Millisecond})
	_ = b.Do(func() error { return errTransient })
	time.Sleep(10 * time.Millisecond)

	inTrial := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(func() error {
			close(inTrial)
			<-release
			return nil
		})
	}()
	<-inTrial
	assert.Equal(t, StateHalfOpen, b.State())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IgnoresErrorsThatDoNotCount(t *testing.T) {
	notFound := errors.New("404 not found")
	b := NewBreaker("eutils", BreakerConfig{
		Threshold: 2,
		Counts:    func(err error) bool { return errors.Is(err, errTransient) },
	})
	for range 5 {
		assert.ErrorIs(t, b.Do(func() error { return notFound }), notFound)
	}
	assert.Equal(t, StateClosed, b.State())

	_ = b.Do(func() error { return errTransient })
	_ = b.Do(func() error { return errTransient })
	assert.Equal(t, StateOpen, b.State())
}

func TestWithTimeout(t *testing.T) {
	t.Run("completes", func(t *testing.T) {
		err := WithTimeout(context.Background(), time.Second, "titles", func(ctx context.Context) error {
			return nil
		})
		assert.NoError(t, err)
	})
	t.Run("deadline", func(t *testing.T) {
		err := WithTimeout(context.Background(), 10*time.Millisecond, "titles", func(ctx context.Context) error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})
		assert.ErrorIs(t, err, apperrors.ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("propagates error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTimeout(context.Background(), time.Second, "titles", func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})
	t.Run("no limit", func(t *testing.T) {
		called := false
		err := WithTimeout(context.Background(), 0, "titles", func(ctx context.Context) error {
			called = true
			return nil
		})
		assert.NoError(t, err)
		assert.True(t, called)
	})
}
