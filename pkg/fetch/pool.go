// Package fetch runs blocking provider calls on a small bounded worker pool
// with a wall-clock deadline and a capped exponential retry policy, keeping
// the command layer responsive while upstream scrape endpoints misbehave.
package fetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
)

// ErrTimeout reports that an operation exceeded its wall-clock budget. The
// underlying pool task may still be running; its result is discarded.
var ErrTimeout = errors.New("fetch: operation timed out")

const (
	defaultWorkers = 3
	backoffCap     = 5 * time.Second
)

// Pool bounds the number of provider calls in flight at once.
type Pool struct {
	runner *threading.TaskRunner
	sleep  func(time.Duration)
}

// NewPool constructs a pool with the given worker count (3 when non-positive).
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pool{
		runner: threading.NewTaskRunner(workers),
		sleep:  time.Sleep,
	}
}

// IsTransient classifies an error as a retryable upstream hiccup by substring.
// Deliberately coarse: scraped providers report failures as free text, so
// anything mentioning "network" or "connection" is treated as transient.
// Non-English provider messages can defeat this heuristic.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "network") || strings.Contains(msg, "connection")
}

// Call runs op on the pool and waits for its result up to timeout. On expiry
// it returns ErrTimeout and abandons the task; a canceled context wins over
// the timeout. Errors from op are logged and passed through.
func Call[T any](ctx context.Context, p *Pool, timeout time.Duration, op func() (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go p.runner.Schedule(func() {
		value, err := op()
		done <- outcome{value: value, err: err}
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			logx.Errorf("fetch: operation failed: %v", out.err)
			return zero, out.err
		}
		return out.value, nil
	case <-timer.C:
		logx.Infof("fetch: operation timed out after %s", timeout)
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Retry attempts Call up to maxRetries+1 times, sleeping min(2^attempt, 5s)
// before each retry. Only timeouts and transient failures are retried; any
// other error propagates immediately. When every attempt fails, the last
// observed error is returned.
func Retry[T any](ctx context.Context, p *Pool, maxRetries int, timeout time.Duration, op func() (T, error)) (T, error) {
	var (
		zero T
		last error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			p.sleep(backoffDelay(attempt))
		}

		value, err := Call(ctx, p, timeout, op)
		if err == nil {
			return value, nil
		}
		if errors.Is(err, ErrTimeout) || IsTransient(err) {
			last = err
			continue
		}
		return zero, err
	}
	logx.Errorf("fetch: retries exhausted: %v", last)
	return zero, last
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
