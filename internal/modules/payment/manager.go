package payment

import (
	"context"
	"sync"
	"time"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/errlog"
	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
	"github.com/google/uuid"
)

// Session ties a checkout to one verified terminal. The caller owns it and
// passes it into every Manager call; there is no process-wide "currently
// connected terminal".
type Session struct {
	terminal   terminal.Terminal
	verifiedAt time.Time
}

// Terminal returns the terminal this session is bound to.
func (s *Session) Terminal() terminal.Terminal { return s.terminal }

// Fresh reports whether the session's liveness check is recent enough to
// initiate a transaction.
func (s *Session) Fresh(maxAge time.Duration) bool {
	return s != nil && time.Since(s.verifiedAt) <= maxAge
}

// Manager is the top-level orchestrator: it initiates sales and refunds,
// tracks active transactions, and delegates to the breaker, builder and
// poller. Every network call goes through the terminal's circuit breaker and
// every classified error is logged before it is returned.
type Manager struct {
	client   *terminal.Client
	breakers *BreakerRegistry
	builder  *Builder
	poller   *Poller
	retry    RetryPolicy
	logger   *errlog.Logger

	// sessionTTL bounds how old a session's liveness check may be before a
	// transaction is refused.
	sessionTTL time.Duration

	mu     sync.RWMutex
	active map[string]*ActiveTransaction

	subMu sync.Mutex
	subs  map[chan StateChange]struct{}

	baseCtx context.Context
	stop    context.CancelFunc
}

func NewManager(client *terminal.Client, breakers *BreakerRegistry, builder *Builder, poller *Poller, retry RetryPolicy, logger *errlog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		client:     client,
		breakers:   breakers,
		builder:    builder,
		poller:     poller,
		retry:      retry,
		logger:     logger,
		sessionTTL: 2 * time.Minute,
		active:     make(map[string]*ActiveTransaction),
		subs:       make(map[chan StateChange]struct{}),
		baseCtx:    ctx,
		stop:       cancel,
	}
}

// SetSessionTTL overrides how old a session's liveness check may be before
// transaction calls refuse it.
func (m *Manager) SetSessionTTL(d time.Duration) {
	if d > 0 {
		m.sessionTTL = d
	}
}

// Close stops all polling loops. Active transactions keep their last state.
func (m *Manager) Close() { m.stop() }

// OpenSession verifies connectivity to the terminal and returns a session the
// caller passes into subsequent transaction calls.
func (m *Manager) OpenSession(ctx context.Context, t terminal.Terminal) (*Session, error) {
	cerr := m.send(ctx, t, func(ctx context.Context) error {
		report, err := m.client.Status(ctx, t)
		if err != nil {
			return err
		}
		if report.Status == "offline" {
			return terminal.ErrOffline
		}
		return nil
	})
	if cerr != nil {
		m.logger.LogError(cerr.Entry(), map[string]interface{}{"operation": "open_session"})
		return nil, cerr
	}
	return &Session{terminal: t, verifiedAt: time.Now()}, nil
}

// InitiateSale validates the request, sends the sale to the terminal through
// its circuit breaker, registers the resulting active transaction and starts
// its polling loop.
func (m *Manager) InitiateSale(ctx context.Context, sess *Session, req SaleRequest) (*InitiateResult, error) {
	if !sess.Fresh(m.sessionTTL) {
		cerr := newError(CodeUnverifiedSession, "terminal connection has not been verified", nil)
		if sess != nil {
			cerr.WithTerminal(sess.terminal.ID)
		}
		m.logger.LogError(cerr.Entry(), nil)
		return nil, cerr
	}

	payload, berr := m.builder.BuildSale(req)
	if berr != nil {
		berr.WithTerminal(sess.terminal.ID)
		m.logger.LogError(berr.Entry(), nil)
		return nil, berr
	}
	return m.initiate(ctx, sess.terminal, TypeSale, req.Amount, payload.Currency, payload.Reference,
		func(ctx context.Context) (terminal.TxResponse, error) {
			return m.client.Sale(ctx, sess.terminal, payload)
		})
}

// InitiateRefund follows the sale path with a refund-shaped payload; the
// original terminal transaction id is required.
func (m *Manager) InitiateRefund(ctx context.Context, sess *Session, req RefundRequest) (*InitiateResult, error) {
	if !sess.Fresh(m.sessionTTL) {
		cerr := newError(CodeUnverifiedSession, "terminal connection has not been verified", nil)
		if sess != nil {
			cerr.WithTerminal(sess.terminal.ID)
		}
		m.logger.LogError(cerr.Entry(), nil)
		return nil, cerr
	}

	payload, berr := m.builder.BuildRefund(req)
	if berr != nil {
		berr.WithTerminal(sess.terminal.ID)
		m.logger.LogError(berr.Entry(), nil)
		return nil, berr
	}
	return m.initiate(ctx, sess.terminal, TypeRefund, req.Amount, payload.Currency, payload.Reference,
		func(ctx context.Context) (terminal.TxResponse, error) {
			return m.client.Refund(ctx, sess.terminal, payload)
		})
}

func (m *Manager) initiate(ctx context.Context, t terminal.Terminal, txType TxType, amount int64, currency, reference string,
	call func(ctx context.Context) (terminal.TxResponse, error)) (*InitiateResult, error) {

	var resp terminal.TxResponse
	cerr := m.send(ctx, t, func(ctx context.Context) error {
		r, err := call(ctx)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if cerr != nil {
		cerr.WithTerminal(t.ID)
		m.logger.LogError(cerr.Entry(), map[string]interface{}{
			"operation": string(txType),
			"amount":    amount,
			"currency":  currency,
		})
		return nil, cerr
	}

	tx := &ActiveTransaction{
		ID:                    uuid.New().String(),
		TerminalTransactionID: resp.TransactionID,
		Terminal:              t,
		Type:                  txType,
		Amount:                amount,
		Currency:              currency,
		Reference:             reference,
		CreatedAt:             time.Now(),
		machine:               NewStateMachine(txType == TypeRefund),
	}

	initial := stateFromTerminal(resp.Status, txType)
	if initial == "" || initial == StateInitiating {
		initial = StatePending
	}
	_ = m.applyState(tx, initial)

	if initial.IsTerminal() {
		// The terminal settled the transaction synchronously; nothing to poll.
		return &InitiateResult{
			TransactionID:         tx.ID,
			TerminalTransactionID: tx.TerminalTransactionID,
			State:                 initial,
		}, nil
	}

	m.mu.Lock()
	m.active[tx.ID] = tx
	m.mu.Unlock()
	m.startPolling(tx)

	return &InitiateResult{
		TransactionID:         tx.ID,
		TerminalTransactionID: tx.TerminalTransactionID,
		State:                 tx.State(),
	}, nil
}

func (m *Manager) startPolling(tx *ActiveTransaction) {
	pollCtx, cancel := context.WithCancel(m.baseCtx)
	tx.mu.Lock()
	tx.stopPolling = cancel
	tx.mu.Unlock()

	query := func(ctx context.Context) (terminal.TxResponse, error) {
		var out terminal.TxResponse
		err := m.breakers.ForTerminal(tx.Terminal.ID).Execute(ctx, func(ctx context.Context) error {
			r, err := m.client.TransactionStatus(ctx, tx.Terminal, tx.TerminalTransactionID)
			if err != nil {
				return err
			}
			out = r
			return nil
		})
		return out, err
	}

	go func() {
		defer cancel()
		m.poller.Run(pollCtx, tx, query, func(to TxState) error {
			return m.applyState(tx, to)
		})
		m.RemoveActiveTransaction(tx.ID)
	}()
}

// GetTransactionStatus performs a one-shot status query against the terminal.
func (m *Manager) GetTransactionStatus(ctx context.Context, sess *Session, terminalTxID string) (TxState, error) {
	if sess == nil {
		return "", newError(CodeUnverifiedSession, "no terminal session", nil)
	}
	t := sess.terminal

	var resp terminal.TxResponse
	cerr := m.send(ctx, t, func(ctx context.Context) error {
		r, err := m.client.TransactionStatus(ctx, t, terminalTxID)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if cerr != nil {
		cerr.WithTerminal(t.ID).WithTransaction(terminalTxID)
		m.logger.LogError(cerr.Entry(), nil)
		return "", cerr
	}

	txType := TypeSale
	if tx, ok := m.findByTerminalTxID(terminalTxID); ok {
		txType = tx.Type
	}
	state := stateFromTerminal(resp.Status, txType)
	if state == "" {
		return "", newError(CodeUnknown, "terminal reported unknown status "+resp.Status, nil).
			WithTerminal(t.ID).WithTransaction(terminalTxID)
	}
	return state, nil
}

// CancelTransaction requests cancellation of an in-progress transaction.
// Returns true when the terminal accepted the cancellation; the active
// transaction is removed on success. Cancelling a settled transaction is
// refused without a terminal round-trip.
func (m *Manager) CancelTransaction(ctx context.Context, sess *Session, terminalTxID string) (bool, error) {
	tx, ok := m.findByTerminalTxID(terminalTxID)
	if !ok {
		cerr := newError(CodeTxNotFound, "no active transaction with this id", nil).WithTransaction(terminalTxID)
		m.logger.LogError(cerr.Entry(), nil)
		return false, cerr
	}
	if tx.State().IsTerminal() {
		return false, newError(CodeInvalidRequest, "transaction already settled", nil).
			WithTerminal(tx.Terminal.ID).WithTransaction(tx.ID)
	}

	cerr := m.send(ctx, tx.Terminal, func(ctx context.Context) error {
		_, err := m.client.CancelTransaction(ctx, tx.Terminal, terminalTxID)
		return err
	})
	if cerr != nil {
		cerr.WithTerminal(tx.Terminal.ID).WithTransaction(tx.ID)
		m.logger.LogError(cerr.Entry(), nil)
		return false, cerr
	}

	// Cooperative teardown: mark the transaction, record the state, and let
	// the poll loop observe the flag and exit on its next iteration.
	tx.requestCancel()
	_ = m.applyState(tx, StateCancelled)
	m.RemoveActiveTransaction(tx.ID)
	return true, nil
}

// GetActiveTransaction returns a snapshot of a live transaction.
func (m *Manager) GetActiveTransaction(transactionID string) (Snapshot, bool) {
	m.mu.RLock()
	tx, ok := m.active[transactionID]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return tx.Snapshot(), true
}

// ActiveTransactions returns snapshots of every live transaction.
func (m *Manager) ActiveTransactions() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.active))
	for _, tx := range m.active {
		out = append(out, tx.Snapshot())
	}
	return out
}

// RemoveActiveTransaction drops a transaction from the active map and stops
// its polling loop.
func (m *Manager) RemoveActiveTransaction(transactionID string) {
	m.mu.Lock()
	tx, ok := m.active[transactionID]
	if ok {
		delete(m.active, transactionID)
	}
	m.mu.Unlock()
	if ok {
		tx.mu.Lock()
		stop := tx.stopPolling
		tx.mu.Unlock()
		if stop != nil {
			stop()
		}
	}
}

// HasActiveForTerminal reports whether a terminal is referenced by any live
// transaction. Wired into the terminal registry's removal guard.
func (m *Manager) HasActiveForTerminal(terminalID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tx := range m.active {
		if tx.Terminal.ID == terminalID {
			return true
		}
	}
	return false
}

// BreakerStats exposes per-terminal breaker snapshots for status displays.
func (m *Manager) BreakerStats() map[string]BreakerStats {
	return m.breakers.Stats()
}

// ── Event stream ──────────────────────────────────────────────────────────────

// Subscribe returns a buffered channel receiving every state change. Slow
// subscribers drop notifications rather than stall polling loops.
func (m *Manager) Subscribe() chan StateChange {
	ch := make(chan StateChange, 16)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan StateChange) {
	m.subMu.Lock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
	m.subMu.Unlock()
}

func (m *Manager) publish(change StateChange) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// ── Internals ─────────────────────────────────────────────────────────────────

// applyState funnels every lifecycle update for tx through its single state
// machine, publishing a notification when the state actually changed.
func (m *Manager) applyState(tx *ActiveTransaction, to TxState) error {
	from := tx.machine.Current()
	if err := tx.machine.Advance(to); err != nil {
		return err
	}
	now := tx.machine.Current()
	if now != from {
		m.publish(StateChange{
			TransactionID:         tx.ID,
			TerminalTransactionID: tx.TerminalTransactionID,
			TerminalID:            tx.Terminal.ID,
			From:                  from,
			To:                    now,
			At:                    time.Now(),
		})
	}
	return nil
}

func (m *Manager) findByTerminalTxID(terminalTxID string) (*ActiveTransaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tx := range m.active {
		if tx.TerminalTransactionID == terminalTxID {
			return tx, true
		}
	}
	return nil, false
}

// send runs op through the terminal's circuit breaker with retry/backoff for
// retryable failures. The returned error is always classified.
func (m *Manager) send(ctx context.Context, t terminal.Terminal, op func(ctx context.Context) error) *Error {
	breaker := m.breakers.ForTerminal(t.ID)
	return m.retry.Do(ctx, func(ctx context.Context) error {
		return breaker.Execute(ctx, op)
	})
}
