package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
)

// fakeClock drives a breaker's notion of time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	b := NewBreaker("term-1", cfg)
	b.now = clock.now
	return b, clock
}

func failingOp(ctx context.Context) error { return terminal.ErrOffline }
func okOp(ctx context.Context) error      { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		Window:           time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := b.Execute(ctx, failingOp); err == nil {
			t.Fatal("expected op error")
		}
		if got := b.State(); got != BreakerClosed {
			t.Fatalf("after %d failures state = %s, want closed", i+1, got)
		}
	}

	if err := b.Execute(ctx, failingOp); err == nil {
		t.Fatal("expected op error")
	}
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("after 3 failures state = %s, want open", got)
	}
}

func TestBreaker_FailsFastWhileOpen(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		Window:           time.Minute,
	})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b.Execute(ctx, failingOp)
	}

	invoked := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if invoked {
		t.Error("op was invoked while circuit open")
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected taxonomy error, got %T", err)
	}
	if cerr.Code != CodeCircuitOpen {
		t.Errorf("code = %s, want %s", cerr.Code, CodeCircuitOpen)
	}
	if cerr.Retryable {
		t.Error("circuit_open must not be retryable")
	}
	if cerr.TerminalID != "term-1" {
		t.Errorf("terminal id = %q, want term-1", cerr.TerminalID)
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		Window:           time.Minute,
	})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b.Execute(ctx, failingOp)
	}

	clock.advance(1100 * time.Millisecond)

	invoked := false
	if err := b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	}); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !invoked {
		t.Fatal("op was not invoked after cooldown")
	}
	if got := b.State(); got != BreakerHalfOpen {
		t.Fatalf("state = %s, want half_open after one probe success", got)
	}

	// Second consecutive success closes.
	if err := b.Execute(ctx, okOp); err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state = %s, want closed after %d successes", got, 2)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		Window:           time.Minute,
	})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b.Execute(ctx, failingOp)
	}
	clock.advance(2 * time.Second)

	// Probe fails: straight back to open, no second chance.
	if err := b.Execute(ctx, failingOp); err == nil {
		t.Fatal("expected probe failure")
	}
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state = %s, want open after half_open failure", got)
	}

	// And the fresh cooldown applies.
	invoked := false
	b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if invoked {
		t.Error("op invoked during fresh cooldown")
	}
}

func TestBreaker_WindowResetsFailureCount(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		Window:           time.Minute,
	})
	ctx := context.Background()

	b.Execute(ctx, failingOp)
	b.Execute(ctx, failingOp)

	// A quiet period longer than the window forgets the streak.
	clock.advance(2 * time.Minute)
	b.Execute(ctx, failingOp)

	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state = %s, want closed: stale failures must not count", got)
	}
	if got := b.Stats().Failures; got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestBreaker_SuccessResetsClosedFailures(t *testing.T) {
	b, _ := newTestBreaker(DefaultBreakerConfig())
	ctx := context.Background()

	b.Execute(ctx, failingOp)
	b.Execute(ctx, failingOp)
	b.Execute(ctx, okOp)
	b.Execute(ctx, failingOp)

	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state = %s, want closed: success must break the streak", got)
	}
}

func TestBreakerRegistry_OneBreakerPerTerminal(t *testing.T) {
	r := NewBreakerRegistry(DefaultBreakerConfig())

	a1 := r.ForTerminal("a")
	a2 := r.ForTerminal("a")
	b := r.ForTerminal("b")

	if a1 != a2 {
		t.Error("same terminal must share one breaker")
	}
	if a1 == b {
		t.Error("different terminals must not share a breaker")
	}

	// Opening terminal a's circuit leaves terminal b untouched.
	ctx := context.Background()
	for i := 0; i < DefaultBreakerConfig().FailureThreshold; i++ {
		a1.Execute(ctx, failingOp)
	}
	if got := a1.State(); got != BreakerOpen {
		t.Fatalf("a state = %s, want open", got)
	}
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("b state = %s, want closed", got)
	}

	stats := r.Stats()
	if len(stats) != 2 {
		t.Fatalf("stats has %d entries, want 2", len(stats))
	}
	if stats["a"].State != BreakerOpen {
		t.Errorf("stats[a].State = %s, want open", stats["a"].State)
	}
}
