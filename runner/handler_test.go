package runner

import (
	"context"
	"errors"
	"testing"
)

func TestRunRetriesUntilSuccess(t *testing.T) {
	h := NewHandler(WithMaxRetries(3))

	calls := 0
	err := h.Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRunReturnsLastError(t *testing.T) {
	var handled error
	h := NewHandler(
		WithMaxRetries(2),
		WithErrorHandler(func(err error) { handled = err }),
	)

	calls := 0
	err := h.Run(context.Background(), func(context.Context) error {
		calls++
		return errors.New("always")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if handled == nil {
		t.Fatal("expected error handler invocation")
	}
}

func TestRunRetryIfStopsEarly(t *testing.T) {
	fatal := errors.New("rejected")
	h := NewHandler(
		WithMaxRetries(5),
		WithRetryIf(func(err error) bool { return !errors.Is(err, fatal) }),
	)

	calls := 0
	err := h.Run(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error should not retry, got %d calls", calls)
	}
}

func TestRunOnceSkipsAfterSuccess(t *testing.T) {
	h := NewHandler(WithRunOnce(true))

	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}
	if err := h.Run(context.Background(), fn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := h.Run(context.Background(), fn); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("run-once handler executed %d times", calls)
	}
}
