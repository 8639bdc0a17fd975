package resilience

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCircuitOpenError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("calling payments: %w", &CircuitOpenError{RetryAfter: 5 * time.Second})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("errors.Is(err, ErrCircuitOpen) = false, want true")
	}

	var coe *CircuitOpenError
	if !errors.As(err, &coe) {
		t.Fatal("errors.As to *CircuitOpenError failed")
	}
	if coe.RetryAfter != 5*time.Second {
		t.Errorf("RetryAfter = %v, want 5s", coe.RetryAfter)
	}
}

func TestMaxRetriesError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&MaxRetriesError{Attempts: 4, Cause: cause})

	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("errors.Is(err, ErrMaxRetriesExceeded) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	var mre *MaxRetriesError
	if !errors.As(err, &mre) {
		t.Fatal("errors.As to *MaxRetriesError failed")
	}
	if mre.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", mre.Attempts)
	}
}

func TestMaxRetriesError_TimeoutCauseVisible(t *testing.T) {
	err := error(&MaxRetriesError{Attempts: 3, Cause: ErrTimeout})

	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
	if errors.Is(err, ErrCircuitOpen) {
		t.Error("errors.Is(err, ErrCircuitOpen) = true, want false")
	}
}

func TestSentinels_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrTimeout,
		ErrMaxRetriesExceeded,
		ErrCircuitOpen,
		ErrBulkheadFull,
		ErrRateLimited,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v", a, b)
			}
		}
	}
}
