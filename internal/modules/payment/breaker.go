package payment

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the circuit breaker mode for one terminal.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig tunes a per-terminal circuit breaker.
type BreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive successes in half_open close it again.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
	// Window is the rolling span within which failures count as consecutive;
	// a quiet period longer than this resets the failure count.
	Window time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Window:           1 * time.Minute,
	}
}

// BreakerStats is a read-only snapshot for status displays.
type BreakerStats struct {
	State            BreakerState `json:"state"`
	Failures         int          `json:"failures"`
	Successes        int          `json:"successes"`
	LastFailure      time.Time    `json:"last_failure,omitempty"`
	NextAttemptAfter time.Time    `json:"next_attempt_after,omitempty"`
}

// Breaker short-circuits calls to a terminal that is failing repeatedly, so a
// dead terminal costs one fast error instead of a full network timeout per
// transaction attempt.
type Breaker struct {
	terminalID string
	cfg        BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	nextAttempt time.Time

	now func() time.Time
}

func NewBreaker(terminalID string, cfg BreakerConfig) *Breaker {
	return &Breaker{
		terminalID: terminalID,
		cfg:        cfg,
		state:      BreakerClosed,
		now:        time.Now,
	}
}

// Execute runs op under the breaker's admission control. While the circuit is
// open and cooling down, it fails fast with a terminal-kind error stating the
// remaining wait, without invoking op.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := op(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) admit() *Error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}
	now := b.now()
	if now.Before(b.nextAttempt) {
		remaining := b.nextAttempt.Sub(now).Round(time.Second)
		if remaining < time.Second {
			remaining = time.Second
		}
		return newError(CodeCircuitOpen,
			fmt.Sprintf("terminal unavailable, retry in %ds", int(remaining.Seconds())), nil).
			WithTerminal(b.terminalID)
	}
	// Cooldown elapsed: let one caller probe.
	b.state = BreakerHalfOpen
	b.successes = 0
	return nil
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case BreakerHalfOpen:
		// A single failure while probing reopens immediately.
		b.state = BreakerOpen
		b.failures = b.cfg.FailureThreshold
		b.nextAttempt = now.Add(b.cfg.Timeout)
	default:
		if !b.lastFailure.IsZero() && now.Sub(b.lastFailure) > b.cfg.Window {
			b.failures = 0
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = BreakerOpen
			b.nextAttempt = now.Add(b.cfg.Timeout)
		}
	}
	b.lastFailure = now
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	default:
		b.failures = 0
	}
}

// Stats returns a snapshot of the breaker for status displays.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:            b.state,
		Failures:         b.failures,
		Successes:        b.successes,
		LastFailure:      b.lastFailure,
		NextAttemptAfter: b.nextAttempt,
	}
}

// State returns the current mode.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed. Used when an operator replaces or
// re-pairs a terminal.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.state = BreakerClosed
	b.failures = 0
	b.successes = 0
	b.nextAttempt = time.Time{}
	b.mu.Unlock()
}

// BreakerRegistry hands out one breaker per terminal id, created lazily on
// first use and kept for the process lifetime.
type BreakerRegistry struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewBreakerRegistry(cfg BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// ForTerminal returns the terminal's breaker, creating it on first use.
func (r *BreakerRegistry) ForTerminal(terminalID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[terminalID]
	if !ok {
		b = NewBreaker(terminalID, r.cfg)
		r.breakers[terminalID] = b
	}
	return b
}

// Stats returns snapshots for all known breakers.
func (r *BreakerRegistry) Stats() map[string]BreakerStats {
	r.mu.Lock()
	ids := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		ids = append(ids, b)
	}
	r.mu.Unlock()

	out := make(map[string]BreakerStats, len(ids))
	for _, b := range ids {
		out[b.terminalID] = b.Stats()
	}
	return out
}
