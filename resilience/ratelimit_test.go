package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})

	if rl.config.Rate != 100 {
		t.Errorf("Rate = %f, want 100", rl.config.Rate)
	}
	if rl.config.Burst != 10 {
		t.Errorf("Burst = %d, want 10", rl.config.Burst)
	}
	if rl.Tokens() != 10 {
		t.Errorf("Tokens() = %f, want full bucket", rl.Tokens())
	}
}

func TestRateLimiter_AllowConsumesBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false, want true", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() after burst = true, want false")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 100, Burst: 1})

	if !rl.Allow() {
		t.Fatal("Allow() = false, want true")
	}
	if rl.Allow() {
		t.Fatal("Allow() = true, want false with empty bucket")
	}

	time.Sleep(30 * time.Millisecond) // 100/s refills one token in 10ms
	if !rl.Allow() {
		t.Error("Allow() after refill = false, want true")
	}
}

func TestRateLimiter_WaitAcquiresToken(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 100, Burst: 1, MaxWait: time.Second})

	if !rl.Allow() {
		t.Fatal("Allow() = false, want true")
	}

	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestRateLimiter_WaitCapExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.5, Burst: 1, MaxWait: 20 * time.Millisecond})

	if !rl.Allow() {
		t.Fatal("Allow() = false, want true")
	}

	err := rl.Wait(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Wait() = %v, want ErrRateLimited", err)
	}
}

func TestRateLimiter_Execute(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})

	invoked := 0
	op := func(ctx context.Context) error {
		invoked++
		return nil
	}

	if err := rl.Execute(context.Background(), op); err != nil {
		t.Fatalf("Execute() = %v, want nil", err)
	}
	if err := rl.Execute(context.Background(), op); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Execute() = %v, want ErrRateLimited", err)
	}
	if invoked != 1 {
		t.Errorf("invoked = %d, want 1", invoked)
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})

	rl.Allow()
	rl.Allow()
	if rl.Allow() {
		t.Fatal("Allow() = true, want false with empty bucket")
	}

	rl.Reset()
	if !rl.Allow() {
		t.Error("Allow() after Reset = false, want true")
	}
}
