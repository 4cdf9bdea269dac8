package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "telewatch/pkg/logx"
)

func TestRunSucceedsFirstAttempt(t *testing.T) {
	exec := Executor{BaseDelay: time.Millisecond, Log: logx.Nop()}
	calls := 0
	attempts, ok := exec.Run(context.Background(), "test", func(context.Context) error {
		calls++
		return nil
	})
	if !ok || attempts != 1 || calls != 1 {
		t.Fatalf("got ok=%v attempts=%d calls=%d, want ok=true attempts=1 calls=1", ok, attempts, calls)
	}
}

func TestRunPermanentErrorAbortsImmediately(t *testing.T) {
	exec := Executor{MaxAttempts: 3, BaseDelay: time.Second, Log: logx.Nop()}
	calls := 0
	start := time.Now()
	attempts, ok := exec.Run(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("535 authentication failed")
	})
	if ok || attempts != 1 || calls != 1 {
		t.Fatalf("got ok=%v attempts=%d calls=%d, want ok=false attempts=1 calls=1", ok, attempts, calls)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("permanent error slept before returning (%v)", elapsed)
	}
}

func TestRunTransientExhaustsBudget(t *testing.T) {
	exec := Executor{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Log: logx.Nop()}
	calls := 0
	start := time.Now()
	attempts, ok := exec.Run(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	if ok || attempts != 3 || calls != 3 {
		t.Fatalf("got ok=%v attempts=%d calls=%d, want ok=false attempts=3 calls=3", ok, attempts, calls)
	}
	// Backoff: base + 2*base = 30ms total.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected backoff sleeps, finished in %v", elapsed)
	}
}

func TestRunEventualSuccess(t *testing.T) {
	exec := Executor{MaxAttempts: 3, BaseDelay: time.Millisecond, Log: logx.Nop()}
	calls := 0
	attempts, ok := exec.Run(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	if !ok || attempts != 3 || calls != 3 {
		t.Fatalf("got ok=%v attempts=%d calls=%d, want ok=true attempts=3 calls=3", ok, attempts, calls)
	}
}

func TestRunBackoffCancellable(t *testing.T) {
	exec := Executor{MaxAttempts: 3, BaseDelay: 10 * time.Second, Log: logx.Nop()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := exec.Run(ctx, "test", func(context.Context) error {
			return errors.New("timeout")
		})
		if ok {
			t.Errorf("expected failure after cancellation")
		}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return promptly after cancellation")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	exec := Executor{MaxAttempts: 2, BaseDelay: time.Millisecond, Log: logx.Nop()}
	calls := 0
	attempts, ok := exec.Run(context.Background(), "test", func(context.Context) error {
		calls++
		panic("adapter bug")
	})
	if ok || attempts != 2 || calls != 2 {
		t.Fatalf("got ok=%v attempts=%d calls=%d, want ok=false attempts=2 calls=2", ok, attempts, calls)
	}
}

func TestRunOnRetryCallback(t *testing.T) {
	var seen []int
	exec := Executor{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Log:         logx.Nop(),
		OnRetry:     func(name string, attempt int, err error) { seen = append(seen, attempt) },
	}
	exec.Run(context.Background(), "test", func(context.Context) error {
		return errors.New("timeout")
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("OnRetry attempts = %v, want [1 2]", seen)
	}
}
