package common

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
	attempts := 0
	err := p.Do(context.Background(), "op", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do = %v, want nil", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}
	attempts := 0
	err := p.Do(context.Background(), "op", func() error {
		attempts++
		return errors.New("always")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}
	attempts := 0
	cause := errors.New("bad request")
	err := p.Do(context.Background(), "op", func() error {
		attempts++
		return Permanent(cause)
	})
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 for permanent error", attempts)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped cause", err)
	}
}

func TestRetryHonorsContext(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, Delay: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, "op", func() error { return errors.New("transient") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestIsPermanent(t *testing.T) {
	if IsPermanent(errors.New("plain")) {
		t.Error("plain error should not be permanent")
	}
	if !IsPermanent(Permanent(errors.New("fatal"))) {
		t.Error("wrapped error should be permanent")
	}
}
