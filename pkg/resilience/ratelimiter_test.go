package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/halcyon-health/devicekb/pkg/fn"
)

func TestAllow_BurstThenDeny(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens should be available immediately")
	}
	if l.Allow() {
		t.Fatal("third request should be denied")
	}
}

func TestRefill(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 10, Burst: 1})
	clock := time.Now()
	l.now = func() time.Time { return clock }

	if !l.Allow() {
		t.Fatal("first token")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}

	clock = clock.Add(150 * time.Millisecond) // 1.5 tokens at rate 10
	if !l.Allow() {
		t.Fatal("token should have refilled")
	}
	if l.Allow() {
		t.Fatal("capped at burst")
	}
}

func TestWait_CancelledContext(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow() // drain

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected context error while starved")
	}
}

func TestLimiterStageWait(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1000, Burst: 1})
	stage := LimiterStageWait(l, func(_ context.Context, n int) fn.Result[int] {
		return fn.Ok(n + 1)
	})

	r := stage(context.Background(), 1)
	v, err := r.Unwrap()
	if err != nil || v != 2 {
		t.Fatalf("stage = %d, %v", v, err)
	}
}
