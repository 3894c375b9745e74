package payment

import (
	"context"
	"time"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/errlog"
	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
)

// statusFunc is one breaker-mediated status query for a transaction.
type statusFunc func(ctx context.Context) (terminal.TxResponse, error)

// applyFunc funnels a reported state into the transaction's state machine.
// A stale report (terminal state already reached) returns ErrStaleTransition.
type applyFunc func(to TxState) error

// Poller drives repeated status queries against a terminal until the
// transaction reaches a terminal state, the strategy's time budget runs out,
// or cancellation is observed. Each iteration is one timer tick plus one
// network call; there is no busy loop.
type Poller struct {
	strategy PollingStrategy
	logger   *errlog.Logger
}

func NewPoller(strategy PollingStrategy, logger *errlog.Logger) *Poller {
	return &Poller{strategy: strategy, logger: logger}
}

// Run polls tx to completion and returns its final state.
func (p *Poller) Run(ctx context.Context, tx *ActiveTransaction, query statusFunc, apply applyFunc) TxState {
	start := time.Now()
	attempt := 0
	lastState := tx.State()

	for {
		state := tx.State()
		if state != lastState {
			attempt = 0
			lastState = state
		}

		if !p.strategy.ShouldContinue(state, time.Since(start)) {
			if !state.IsTerminal() {
				p.fail(tx, apply, newError(CodeTxTimeout, "polling window elapsed without a final state", nil).
					WithTerminal(tx.Terminal.ID).WithTransaction(tx.ID))
			}
			return tx.State()
		}

		// Cooperative cancellation: the flag is set by CancelTransaction and
		// observed here, at the next suspension point.
		if tx.cancelPending() {
			_ = apply(StateCancelled)
			return tx.State()
		}

		select {
		case <-ctx.Done():
			return tx.State()
		case <-time.After(p.strategy.Interval(state, attempt)):
		}
		attempt++

		resp, err := query(ctx)
		tx.markPolled(time.Now())
		if err != nil {
			cerr := Classify(err).WithTerminal(tx.Terminal.ID).WithTransaction(tx.ID)
			p.logger.LogError(cerr.Entry(), nil)
			if cerr.Retryable {
				continue // transient: keep polling
			}
			if cerr.Code == CodeTxCancelled {
				_ = apply(StateCancelled)
			} else {
				p.fail(tx, apply, cerr)
			}
			return tx.State()
		}

		reported := stateFromTerminal(resp.Status, tx.Type)
		if reported == "" {
			// Unknown status strings are ignored rather than guessed at; the
			// next poll usually resolves them.
			continue
		}
		if err := apply(reported); err != nil {
			// Stale or out-of-order report: the machine already settled.
			return tx.State()
		}
		if reported.IsTerminal() {
			return tx.State()
		}
	}
}

func (p *Poller) fail(tx *ActiveTransaction, apply applyFunc, cerr *Error) {
	p.logger.LogError(cerr.Entry(), nil)
	_ = apply(StateFailed)
}

// stateFromTerminal maps the terminal's reported status string onto the
// lifecycle. Terminals report "completed" for settled refunds too; those are
// normalized to refunded.
func stateFromTerminal(status string, txType TxType) TxState {
	s := TxState(status)
	if !ValidState(s) {
		return ""
	}
	if txType == TypeRefund && s == StateCompleted {
		return StateRefunded
	}
	return s
}
