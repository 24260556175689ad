package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 3, Timeout: time.Minute})
	boom := errors.New("upstream down")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: error = %v, want %v", i, err, boom)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	err := cb.Execute(ctx, func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open circuit error = %v, want %v", err, ErrCircuitOpen)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 2, Timeout: time.Minute})
	boom := errors.New("flaky")
	ctx := context.Background()

	cb.Execute(ctx, func() error { return boom })
	cb.Execute(ctx, func() error { return nil })
	cb.Execute(ctx, func() error { return boom })

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after interleaved success", cb.State())
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})
	ctx := context.Background()

	cb.Execute(ctx, func() error { return errors.New("down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(5 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after timeout", cb.State())
	}

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after probe successes", cb.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 1, Timeout: time.Millisecond})
	ctx := context.Background()

	cb.Execute(ctx, func() error { return errors.New("down") })
	time.Sleep(5 * time.Millisecond)

	boom := errors.New("still down")
	if err := cb.Execute(ctx, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("probe error = %v, want %v", err, boom)
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after failed probe", cb.State())
	}
}
