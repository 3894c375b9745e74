package payment

import (
	"context"
	"sync"
	"time"

	"github.com/Sam231221/AuraSwift-sub012/internal/modules/terminal"
)

// TxType discriminates sale and refund transactions.
type TxType string

const (
	TypeSale   TxType = "SALE"
	TypeRefund TxType = "REFUND"
)

// SaleRequest is the caller's plain-data request to charge a card.
type SaleRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"` // minor currency units
	Currency    string `json:"currency" validate:"required,len=3,alpha"`
	Description string `json:"description,omitempty" validate:"max=140"`
}

// RefundRequest returns funds for a previous terminal transaction.
type RefundRequest struct {
	Amount                int64  `json:"amount" validate:"required,gt=0"`
	Currency              string `json:"currency" validate:"required,len=3,alpha"`
	OriginalTransactionID string `json:"original_transaction_id" validate:"required"`
	Description           string `json:"description,omitempty" validate:"max=140"`
}

// InitiateResult correlates the engine's transaction id with the id the
// terminal assigned.
type InitiateResult struct {
	TransactionID         string  `json:"transaction_id"`
	TerminalTransactionID string  `json:"terminal_transaction_id"`
	State                 TxState `json:"state"`
}

// StateChange is the notification delivered to subscribers on every lifecycle
// transition.
type StateChange struct {
	TransactionID         string    `json:"transaction_id"`
	TerminalTransactionID string    `json:"terminal_transaction_id"`
	TerminalID            string    `json:"terminal_id"`
	From                  TxState   `json:"from"`
	To                    TxState   `json:"to"`
	At                    time.Time `json:"at"`
}

// ActiveTransaction is a live transaction owned by the Manager: created when a
// terminal accepts a sale or refund, removed on reaching a terminal state or
// explicit cancellation.
type ActiveTransaction struct {
	ID                    string
	TerminalTransactionID string
	Terminal              terminal.Terminal
	Type                  TxType
	Amount                int64
	Currency              string
	Reference             string
	CreatedAt             time.Time

	machine *StateMachine

	mu              sync.Mutex
	lastPoll        time.Time
	cancelRequested bool
	stopPolling     context.CancelFunc
}

// State returns the current lifecycle state.
func (tx *ActiveTransaction) State() TxState { return tx.machine.Current() }

// markPolled records the poll timestamp.
func (tx *ActiveTransaction) markPolled(t time.Time) {
	tx.mu.Lock()
	tx.lastPoll = t
	tx.mu.Unlock()
}

// LastPoll returns when the transaction's status was last queried.
func (tx *ActiveTransaction) LastPoll() time.Time {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.lastPoll
}

// requestCancel flags the transaction for cooperative cancellation; the poll
// loop observes the flag on its next iteration and exits.
func (tx *ActiveTransaction) requestCancel() {
	tx.mu.Lock()
	tx.cancelRequested = true
	tx.mu.Unlock()
}

func (tx *ActiveTransaction) cancelPending() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.cancelRequested
}

// Snapshot is the read-only view handed to HTTP callers.
type Snapshot struct {
	TransactionID         string    `json:"transaction_id"`
	TerminalTransactionID string    `json:"terminal_transaction_id"`
	TerminalID            string    `json:"terminal_id"`
	Type                  TxType    `json:"type"`
	Amount                int64     `json:"amount"`
	Currency              string    `json:"currency"`
	Reference             string    `json:"reference"`
	State                 TxState   `json:"state"`
	CreatedAt             time.Time `json:"created_at"`
	LastPoll              time.Time `json:"last_poll,omitempty"`
}

// Snapshot captures the transaction's current observable state.
func (tx *ActiveTransaction) Snapshot() Snapshot {
	return Snapshot{
		TransactionID:         tx.ID,
		TerminalTransactionID: tx.TerminalTransactionID,
		TerminalID:            tx.Terminal.ID,
		Type:                  tx.Type,
		Amount:                tx.Amount,
		Currency:              tx.Currency,
		Reference:             tx.Reference,
		State:                 tx.State(),
		CreatedAt:             tx.CreatedAt,
		LastPoll:              tx.LastPoll(),
	}
}
