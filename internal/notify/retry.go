package notify

import (
	"context"
	"fmt"
	"time"

	logx "telewatch/pkg/logx"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Executor runs a blocking send operation with exponential-backoff
// retry, consulting Retryable to decide whether a failure is worth
// another attempt.
type Executor struct {
	// MaxAttempts caps the number of invocations of the operation.
	// Zero means the default of 3.
	MaxAttempts int

	// BaseDelay is the sleep before attempt 2; attempt k+1 waits
	// BaseDelay × 2^(k-1). Zero means the default of 1s.
	BaseDelay time.Duration

	// AttemptTimeout bounds each single invocation. Zero disables the
	// per-attempt deadline.
	AttemptTimeout time.Duration

	Log logx.Logger

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(name string, attempt int, err error)
}

// Run invokes op until it succeeds, a permanent error is seen, the
// attempt budget is exhausted, or ctx is cancelled. It reports the
// number of attempts actually made and whether the last one succeeded.
// Panics inside op are recovered and counted as a failed attempt.
func (e Executor) Run(ctx context.Context, name string, op func(ctx context.Context) error) (attempts int, ok bool) {
	maxAttempts := e.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	base := e.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	log := e.Log
	if log.IsZero() {
		log = logx.Nop()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return attempt - 1, false
		}

		err := e.runOnce(ctx, op)
		if err == nil {
			if attempt > 1 {
				log.Info("delivery succeeded after retry",
					logx.String("channel", name), logx.Int("attempt", attempt))
			}
			return attempt, true
		}
		lastErr = err

		if !Retryable(err) {
			log.Error("permanent delivery error",
				logx.String("channel", name), logx.Int("attempt", attempt), logx.Err(err))
			return attempt, false
		}

		if attempt == maxAttempts {
			break
		}

		delay := base << (attempt - 1)
		log.Warn("delivery attempt failed, retrying",
			logx.String("channel", name),
			logx.Int("attempt", attempt),
			logx.Int("max_attempts", maxAttempts),
			logx.Duration("backoff", delay),
			logx.Err(err))
		if e.OnRetry != nil {
			e.OnRetry(name, attempt, err)
		}
		if !sleep(ctx, delay) {
			return attempt, false
		}
	}

	log.Error("delivery failed, attempts exhausted",
		logx.String("channel", name), logx.Int("attempts", maxAttempts), logx.Err(lastErr))
	return maxAttempts, false
}

func (e Executor) runOnce(ctx context.Context, op func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()

	actx := ctx
	if e.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.AttemptTimeout)
		defer cancel()
	}
	return op(actx)
}

// sleep waits for d or until ctx is cancelled; it reports whether the
// full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
