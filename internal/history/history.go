// Package history keeps bounded undo and redo stacks of document snapshots.
package history

import "sync"

// DefaultLimit caps each stack when no limit is given.
const DefaultLimit = 50

// Manager holds the live value and its two snapshot stacks. History is
// linear: a checkpoint clears the redo stack.
//
// Snapshots are produced with the clone function, so values on the stacks
// never alias the live value. Manager is safe for concurrent use, but values
// returned by Current stay owned by the manager until the next mutation.
type Manager[T any] struct {
	mu      sync.RWMutex
	current T
	past    []T
	future  []T
	limit   int
	clone   func(T) T
}

// New returns a manager around initial. A non-positive limit means
// DefaultLimit.
func New[T any](initial T, clone func(T) T, limit int) *Manager[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager[T]{current: initial, clone: clone, limit: limit}
}

// Current returns the live value.
func (m *Manager[T]) Current() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Checkpoint snapshots the live value onto the undo stack and clears the
// redo stack. Call it right before a reversible mutation.
func (m *Manager[T]) Checkpoint() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.past = push(m.past, m.clone(m.current), m.limit)
	m.future = nil
}

// Apply checkpoints and runs fn on the live value. If fn fails, the live
// value is rolled back to the checkpoint and both stacks are left as they
// were. fn must not call back into m.
func (m *Manager[T]) Apply(fn func(T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.clone(m.current)
	if err := fn(m.current); err != nil {
		m.current = snap
		return err
	}
	m.past = push(m.past, snap, m.limit)
	m.future = nil
	return nil
}

// Undo restores the newest checkpoint. It reports false when there is
// nothing to undo.
func (m *Manager[T]) Undo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.past)
	if n == 0 {
		return false
	}
	prev := m.past[n-1]
	m.past = m.past[:n-1]
	m.future = push(m.future, m.clone(m.current), m.limit)
	m.current = prev
	return true
}

// Redo reapplies the newest undone state. It reports false when there is
// nothing to redo.
func (m *Manager[T]) Redo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.future)
	if n == 0 {
		return false
	}
	next := m.future[n-1]
	m.future = m.future[:n-1]
	m.past = push(m.past, m.clone(m.current), m.limit)
	m.current = next
	return true
}

// Replace swaps in a new live value without touching the stacks.
func (m *Manager[T]) Replace(v T) {
	m.mu.Lock()
	m.current = v
	m.mu.Unlock()
}

// CanUndo reports whether Undo would do anything.
func (m *Manager[T]) CanUndo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.past) > 0
}

// CanRedo reports whether Redo would do anything.
func (m *Manager[T]) CanRedo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.future) > 0
}

// Len returns the sizes of the undo and redo stacks.
func (m *Manager[T]) Len() (past, future int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.past), len(m.future)
}

// Clear empties both stacks.
func (m *Manager[T]) Clear() {
	m.mu.Lock()
	m.past, m.future = nil, nil
	m.mu.Unlock()
}

// push appends v, dropping the oldest entries beyond limit.
func push[T any](stack []T, v T, limit int) []T {
	stack = append(stack, v)
	if over := len(stack) - limit; over > 0 {
		var zero T
		for i := 0; i < over; i++ {
			stack[i] = zero
		}
		stack = append(stack[:0], stack[over:]...)
	}
	return stack
}
