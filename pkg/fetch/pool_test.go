package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallReturnsValue(t *testing.T) {
	p := NewPool(1)
	got, err := Call(context.Background(), p, time.Second, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCallPropagatesError(t *testing.T) {
	p := NewPool(1)
	boom := errors.New("bad symbol")
	_, err := Call(context.Background(), p, time.Second, func() (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestCallTimesOut(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := Call(context.Background(), p, 20*time.Millisecond, func() (int, error) {
		<-release
		return 0, nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second, "timeout should fire promptly")
}

func TestCallAbandonedTaskResultDiscarded(t *testing.T) {
	p := NewPool(1)
	finished := make(chan struct{})

	_, err := Call(context.Background(), p, 10*time.Millisecond, func() (int, error) {
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return 7, nil
	})
	require.ErrorIs(t, err, ErrTimeout)

	// The abandoned task keeps running to completion in the background.
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned task never completed")
	}
}

func TestRetryExhaustsOnTimeout(t *testing.T) {
	p := NewPool(1)
	var slept []time.Duration
	p.sleep = func(d time.Duration) { slept = append(slept, d) }

	var calls int32
	release := make(chan struct{})
	defer close(release)

	_, err := Retry(context.Background(), p, 2, 10*time.Millisecond, func() (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 0, nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "max_retries=2 means exactly 3 attempts")
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	p := NewPool(1)
	p.sleep = func(time.Duration) {}

	var calls int32
	boom := errors.New("invalid symbol format")
	_, err := Retry(context.Background(), p, 3, time.Second, func() (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "permanent errors must not be retried")
}

func TestRetryRetriesTransientThenSucceeds(t *testing.T) {
	p := NewPool(1)
	p.sleep = func(time.Duration) {}

	var calls int32
	got, err := Retry(context.Background(), p, 2, time.Second, func() (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, errors.New("connection reset by peer")
		}
		return 99, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 99, got)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("Network unreachable")))
	assert.True(t, IsTransient(errors.New("upstream CONNECTION refused")))
	assert.False(t, IsTransient(errors.New("symbol not found")))
	assert.False(t, IsTransient(nil))
}

func TestBackoffDelayCap(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffDelay(1))
	assert.Equal(t, 4*time.Second, backoffDelay(2))
	assert.Equal(t, 5*time.Second, backoffDelay(3))
	assert.Equal(t, 5*time.Second, backoffDelay(10))
}
