package payment

import (
	"errors"
	"fmt"
	"sync"
)

// TxState is a transaction lifecycle state. completed, failed, cancelled and
// refunded are absorbing: once reached, no further transitions are permitted.
type TxState string

const (
	StateInitiating   TxState = "initiating"
	StatePending      TxState = "pending"
	StateAwaitingCard TxState = "awaiting_card"
	StateCardPresent  TxState = "card_present"
	StateAuthorizing  TxState = "authorizing"
	StateProcessing   TxState = "processing"
	StateCompleted    TxState = "completed"
	StateFailed       TxState = "failed"
	StateCancelled    TxState = "cancelled"
	StateRefunded     TxState = "refunded"
)

// IsTerminal reports whether the state is absorbing.
func (s TxState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateRefunded:
		return true
	}
	return false
}

// ValidState reports whether s is a known lifecycle state.
func ValidState(s TxState) bool {
	switch s {
	case StateInitiating, StatePending, StateAwaitingCard, StateCardPresent,
		StateAuthorizing, StateProcessing, StateCompleted, StateFailed,
		StateCancelled, StateRefunded:
		return true
	}
	return false
}

// ErrStaleTransition marks an update that arrived after the transaction
// already reached a terminal state. It is a reportable no-op, not a failure:
// late poll responses are expected under concurrent polling.
var ErrStaleTransition = errors.New("transaction already in a terminal state")

// transitions lists the allowed successor states for a sale. Cancellation from
// any non-terminal state is handled separately in allowed().
var transitions = map[TxState][]TxState{
	StateInitiating:   {StatePending},
	StatePending:      {StateAwaitingCard, StateAuthorizing, StateFailed},
	StateAwaitingCard: {StateCardPresent, StateFailed},
	StateCardPresent:  {StateAuthorizing},
	StateAuthorizing:  {StateProcessing, StateFailed},
	StateProcessing:   {StateCompleted, StateFailed},
}

// StateMachine linearizes lifecycle updates for a single transaction. All
// concurrent poll responses funnel through Transition under one mutex, so
// updates are never applied out of order once a terminal state is reached.
type StateMachine struct {
	mu      sync.Mutex
	current TxState
	refund  bool
}

// NewStateMachine starts a machine in initiating. Refund machines finish at
// refunded instead of completed.
func NewStateMachine(refund bool) *StateMachine {
	return &StateMachine{current: StateInitiating, refund: refund}
}

// Current returns the present state.
func (m *StateMachine) Current() TxState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves the machine to the target state. Returns
// ErrStaleTransition when the machine is already in a terminal state, or a
// descriptive error for a transition the lifecycle does not allow.
func (m *StateMachine) Transition(to TxState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !ValidState(to) {
		return fmt.Errorf("unknown transaction state %q", to)
	}
	if m.current.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s ignored", ErrStaleTransition, m.current, to)
	}
	if to == m.current {
		return nil
	}
	if !m.allowed(to) {
		return fmt.Errorf("invalid transition %s -> %s", m.current, to)
	}
	m.current = to
	return nil
}

// Advance moves the machine to the target state, stepping through any
// intermediate states the lifecycle requires. Terminals report coarse
// progress (a reader can jump straight from pending to card_present, or
// report completed while we last saw authorizing), so the poller applies
// reported states through Advance rather than Transition.
func (m *StateMachine) Advance(to TxState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !ValidState(to) {
		return fmt.Errorf("unknown transaction state %q", to)
	}
	if m.current.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s ignored", ErrStaleTransition, m.current, to)
	}
	if to == m.current {
		return nil
	}
	path := m.pathTo(to)
	if path == nil {
		return fmt.Errorf("invalid transition %s -> %s", m.current, to)
	}
	m.current = to
	return nil
}

// pathTo finds the legal transition chain from the current state to the
// target (breadth-first over the small transition graph), or nil when none
// exists. Caller holds the mutex.
func (m *StateMachine) pathTo(to TxState) []TxState {
	if m.allowed(to) {
		return []TxState{to}
	}
	type node struct {
		state TxState
		path  []TxState
	}
	visited := map[TxState]bool{m.current: true}
	queue := []node{{state: m.current}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range m.successors(cur.state) {
			if visited[next] {
				continue
			}
			path := append(append([]TxState{}, cur.path...), next)
			if next == to {
				return path
			}
			if !next.IsTerminal() {
				visited[next] = true
				queue = append(queue, node{state: next, path: path})
			}
		}
	}
	return nil
}

func (m *StateMachine) successors(from TxState) []TxState {
	out := append([]TxState{}, transitions[from]...)
	if m.refund && from == StateProcessing {
		filtered := out[:0]
		for _, s := range out {
			if s != StateCompleted {
				filtered = append(filtered, s)
			}
		}
		out = append(filtered, StateRefunded)
	}
	return out
}

func (m *StateMachine) allowed(to TxState) bool {
	// Explicit cancellation is permitted from every non-terminal state.
	if to == StateCancelled {
		return true
	}
	if m.refund {
		// Refunds settle as refunded; completed never appears in their path.
		if to == StateCompleted {
			return false
		}
		if m.current == StateProcessing && to == StateRefunded {
			return true
		}
	} else if to == StateRefunded {
		return false
	}
	for _, next := range transitions[m.current] {
		if next == to {
			return true
		}
	}
	return false
}
