package ai

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_EnforcesCeiling(t *testing.T) {
	// 5 requests per 100ms means 20ms between grants. Six waits must span at
	// least one full inter-request interval times five.
	l := NewLimiter(5, 100*time.Millisecond)

	start := time.Now()
	for i := 0; i < 6; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond {
		t.Fatalf("6 requests completed in %s; ceiling of 5 per 100ms violated", elapsed)
	}
}

func TestLimiter_FirstRequestImmediate(t *testing.T) {
	l := NewLimiter(15, time.Minute)

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first request should not block, took %s", elapsed)
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	l := NewLimiter(1, time.Hour)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected context error while blocked on exhausted budget")
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	// Zero values must not panic or divide by zero.
	l := NewLimiter(0, 0)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
}
