package terminal

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InUseFunc reports whether a terminal currently has an active transaction.
// The transaction manager supplies it so the registry never removes a terminal
// out from under an in-flight payment.
type InUseFunc func(terminalID string) bool

// Registry is the in-memory working set of configured terminals, backed by a
// Store for persistence.
type Registry struct {
	store Store

	mu        sync.RWMutex
	terminals map[string]Terminal
	inUse     InUseFunc
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store:     store,
		terminals: make(map[string]Terminal),
	}
}

// SetInUseCheck installs the active-transaction check. Called once during wiring.
func (r *Registry) SetInUseCheck(fn InUseFunc) {
	r.mu.Lock()
	r.inUse = fn
	r.mu.Unlock()
}

// Load replaces the working set with the persisted configuration.
func (r *Registry) Load(ctx context.Context) error {
	terminals, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load terminals: %w", err)
	}
	r.mu.Lock()
	r.terminals = make(map[string]Terminal, len(terminals))
	for _, t := range terminals {
		r.terminals[t.ID] = t
	}
	r.mu.Unlock()
	return nil
}

// Upsert adds or updates a terminal and persists the full set.
func (r *Registry) Upsert(ctx context.Context, t Terminal) error {
	if t.ID == "" {
		return fmt.Errorf("terminal id is required")
	}
	r.mu.Lock()
	r.terminals[t.ID] = t
	r.mu.Unlock()
	return r.persist(ctx)
}

// Remove deletes a terminal. Refused while the terminal is referenced by an
// active transaction.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	if r.inUse != nil && r.inUse(id) {
		r.mu.Unlock()
		return fmt.Errorf("terminal %s has an active transaction", id)
	}
	if _, ok := r.terminals[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.terminals, id)
	r.mu.Unlock()
	return r.persist(ctx)
}

// Get returns a terminal by id.
func (r *Registry) Get(id string) (Terminal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.terminals[id]
	if !ok {
		return Terminal{}, ErrNotFound
	}
	return t, nil
}

// List returns all terminals sorted by name.
func (r *Registry) List() []Terminal {
	r.mu.RLock()
	out := make([]Terminal, 0, len(r.terminals))
	for _, t := range r.terminals {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) persist(ctx context.Context) error {
	r.mu.RLock()
	snapshot := make([]Terminal, 0, len(r.terminals))
	for _, t := range r.terminals {
		snapshot = append(snapshot, t)
	}
	r.mu.RUnlock()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	if err := r.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save terminals: %w", err)
	}
	return nil
}
