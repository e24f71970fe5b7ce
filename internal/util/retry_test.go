package util

import (
	"context"
	"errors"
	"testing"
)

func TestRetry_SuccessImmediate(t *testing.T) {
	result, err := Retry(3, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, err := Retry(3, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 99, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 99 {
		t.Fatalf("expected 99, got %d", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_PersistentFailure(t *testing.T) {
	calls := 0
	_, err := Retry(3, func() (int, error) {
		calls++
		return 0, errors.New("persistent")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_MaxTriesZeroOrNegative(t *testing.T) {
	calls := 0
	_, err := Retry(0, func() (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call for maxTries=0, got %d", calls)
	}
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRetryErr_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := RetryErr(3, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryWithContext_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := RetryWithContext(ctx, 3, func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected 0 calls due to immediate cancellation, got %d", calls)
	}
}

func TestRetryErrWithContext_FunctionReturnsContextError(t *testing.T) {
	calls := 0
	err := RetryErrWithContext(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("context errors must not be retried, got %d calls", calls)
	}
}

func TestGetEnvNumeric(t *testing.T) {
	t.Setenv("TAXO_TEST_NUM", "0.35")
	if got := GetEnvNumeric("TAXO_TEST_NUM", 1); got != 0.35 {
		t.Errorf("GetEnvNumeric = %v, want 0.35", got)
	}
	if got := GetEnvNumeric("TAXO_TEST_UNSET", 1.5); got != 1.5 {
		t.Errorf("GetEnvNumeric default = %v, want 1.5", got)
	}
	t.Setenv("TAXO_TEST_NUM", "not a number")
	if got := GetEnvNumeric("TAXO_TEST_NUM", 2); got != 2 {
		t.Errorf("GetEnvNumeric on garbage = %v, want default 2", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TAXO_TEST_BOOL", "true")
	if !GetEnvBool("TAXO_TEST_BOOL", false) {
		t.Error("GetEnvBool(true) = false")
	}
	t.Setenv("TAXO_TEST_BOOL", "yes")
	if GetEnvBool("TAXO_TEST_BOOL", false) {
		t.Error("GetEnvBool on non-boolean value should fall back to default")
	}
}

func TestMinMax(t *testing.T) {
	if Min(2, 5) != 2 || Min(5, 2) != 2 {
		t.Error("Min broken")
	}
	if Max(2, 5) != 5 || Max(5, 2) != 5 {
		t.Error("Max broken")
	}
}
