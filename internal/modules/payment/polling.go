package payment

import (
	"math"
	"time"
)

// PollingStrategy computes poll cadence and continuation from transaction
// state and elapsed time. States implying imminent user interaction poll fast;
// a terminal still warming up in pending is backed off instead of hammered.
type PollingStrategy struct {
	// FastInterval is used while the customer is interacting with the reader.
	FastInterval time.Duration
	// SlowInterval is used in all remaining non-pending states.
	SlowInterval time.Duration
	// PendingBase seeds the exponential backoff for pending.
	PendingBase time.Duration
	// MaxInterval caps the pending backoff.
	MaxInterval time.Duration
	// MaxDuration bounds the whole polling loop.
	MaxDuration time.Duration
}

func DefaultPollingStrategy() PollingStrategy {
	return PollingStrategy{
		FastInterval: 500 * time.Millisecond,
		SlowInterval: 2 * time.Second,
		PendingBase:  500 * time.Millisecond,
		MaxInterval:  5 * time.Second,
		MaxDuration:  5 * time.Minute,
	}
}

// Interval returns the delay before the next status query. attempt counts
// consecutive polls observed in the current state, starting at 0.
func (p PollingStrategy) Interval(state TxState, attempt int) time.Duration {
	switch state {
	case StateAwaitingCard, StateCardPresent, StateAuthorizing, StateProcessing:
		return p.FastInterval
	case StatePending:
		backoff := time.Duration(float64(p.PendingBase) * math.Pow(1.5, float64(attempt)))
		if backoff > p.MaxInterval {
			return p.MaxInterval
		}
		return backoff
	default:
		return p.SlowInterval
	}
}

// ShouldContinue reports whether polling should proceed: false once a terminal
// state is reached or the elapsed time exceeds MaxDuration.
func (p PollingStrategy) ShouldContinue(state TxState, elapsed time.Duration) bool {
	if state.IsTerminal() {
		return false
	}
	return elapsed <= p.MaxDuration
}
