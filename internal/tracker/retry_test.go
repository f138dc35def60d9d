package tracker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	result, err := Retry(context.Background(), policy, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("rpc unavailable")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Fatalf("expected ok after 3 calls, got %q after %d", result, calls)
	}
}

func TestRetry_ReturnsLastError(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	errs := []error{errors.New("first"), errors.New("second"), errors.New("third")}
	calls := 0
	_, err := Retry(context.Background(), policy, func() (int, error) {
		err := errs[calls]
		calls++
		return 0, err
	})

	if err != errs[2] {
		t.Fatalf("expected the last error unchanged, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_StopsWaitingWhenContextEnds(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, InitialDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, policy, func() (int, error) {
			calls++
			cancel()
			return 0, errors.New("rpc unavailable")
		})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry kept waiting after the context ended")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	t.Run("zero value", func(t *testing.T) {
		policy := RetryPolicy{}.withDefaults()
		if policy != DefaultRetryPolicy() {
			t.Fatalf("expected defaults, got %+v", policy)
		}
	})

	t.Run("cap below initial delay", func(t *testing.T) {
		policy := RetryPolicy{Attempts: 2, InitialDelay: 3 * time.Second, MaxDelay: time.Second}.withDefaults()
		if policy.MaxDelay != 3*time.Second {
			t.Fatalf("expected the cap raised to the initial delay, got %s", policy.MaxDelay)
		}
	})

	t.Run("small explicit cap kept", func(t *testing.T) {
		policy := RetryPolicy{Attempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}.withDefaults()
		if policy.MaxDelay != 2*time.Millisecond {
			t.Fatalf("expected the explicit cap, got %s", policy.MaxDelay)
		}
	})
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialDelay: time.Hour}

	cause := newError(KindDecode, "decode draw", errors.New("bad layout"))
	calls := 0
	_, err := Retry(context.Background(), policy, func() (int, error) {
		calls++
		return 0, Permanent(cause)
	})

	if err != cause {
		t.Fatalf("expected the unwrapped cause, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if Permanent(nil) != nil {
		t.Fatal("expected Permanent(nil) to stay nil")
	}
}
