// Package store holds the reactive state of a single pipeline run.
//
// A [Store] owns one [State]: a [Status] that moves forward through
// idle → preparing → executing → polling → finished, and an open data bag
// that plugins fill by shallow merge. Subscribers are notified synchronously,
// in registration order. Writes made from inside a notification are queued
// and delivered after the current notification completes, so every
// subscriber observes changes in the order they were made.
package store

import (
	"fmt"
	"maps"
	"sync"

	"github.com/Iron-Ham/testrun/internal/errors"
	"github.com/Iron-Ham/testrun/internal/event"
)

// Status is the lifecycle position of a pipeline run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPreparing Status = "preparing"
	StatusExecuting Status = "executing"
	StatusPolling   Status = "polling"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// forward maps each non-terminal status to its single forward successor.
var forward = map[Status]Status{
	StatusIdle:      StatusPreparing,
	StatusPreparing: StatusExecuting,
	StatusExecuting: StatusPolling,
	StatusPolling:   StatusFinished,
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true for finished, cancelled and failed.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusFailed
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Cancelled and failed are reachable from every non-terminal status; every
// other move must be to the direct successor.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled || next == StatusFailed {
		return true
	}
	succ, ok := forward[s]
	return ok && succ == next
}

// State is a snapshot of a pipeline run.
type State struct {
	Status Status
	Data   map[string]any
}

// Value returns the data entry for key.
func (s State) Value(key string) (any, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// String returns the data entry for key if it is a non-empty string.
func (s State) String(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

// Store is the reactive container for one State. It is safe for concurrent
// use.
type Store struct {
	mu          sync.Mutex
	state       State
	changes     event.Emitter[State]
	pending     []State
	dispatching bool
}

// New creates a Store in the idle status with empty data.
func New() *Store {
	return &Store{
		state: State{Status: StatusIdle, Data: map[string]any{}},
	}
}

// State returns a consistent snapshot of the current state. The returned
// Data map is a copy and may be read freely.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Status returns the current status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status
}

// Subscribe registers handler for every subsequent state change.
func (s *Store) Subscribe(handler func(State)) event.Disposable {
	return s.changes.Subscribe(handler)
}

// SetData shallow-merges partial into the data bag and notifies subscribers.
// It is a no-op once the status is terminal; the return value reports
// whether the merge was applied.
func (s *Store) SetData(partial map[string]any) bool {
	s.mu.Lock()
	if s.state.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	next := make(map[string]any, len(s.state.Data)+len(partial))
	maps.Copy(next, s.state.Data)
	maps.Copy(next, partial)
	s.state.Data = next
	s.enqueueLocked()
	s.mu.Unlock()

	s.dispatch()
	return true
}

// SetStatus moves to next. Setting the current status again is a no-op.
// Any move that is not allowed by [Status.CanTransitionTo] returns an error
// wrapping [errors.ErrInvalidTransition].
func (s *Store) SetStatus(next Status) error {
	s.mu.Lock()
	cur := s.state.Status
	if cur == next {
		s.mu.Unlock()
		return nil
	}
	if !cur.CanTransitionTo(next) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, cur, next)
	}
	s.state.Status = next
	s.enqueueLocked()
	s.mu.Unlock()

	s.dispatch()
	return nil
}

// Advance moves from one status to the next only if the store is still in
// from. It returns false without error when another writer got there first
// (for example a concurrent cancel), and an error when from -> to is not a
// legal edge at all.
func (s *Store) Advance(from, to Status) (bool, error) {
	return s.AdvanceWith(from, to, nil)
}

// AdvanceWith is Advance that also merges partial into the data bag. Both
// changes land in a single notification, so subscribers never see the new
// status without the data that came with it.
func (s *Store) AdvanceWith(from, to Status, partial map[string]any) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, from, to)
	}

	s.mu.Lock()
	if s.state.Status != from {
		s.mu.Unlock()
		return false, nil
	}
	if len(partial) > 0 {
		next := make(map[string]any, len(s.state.Data)+len(partial))
		maps.Copy(next, s.state.Data)
		maps.Copy(next, partial)
		s.state.Data = next
	}
	s.state.Status = to
	s.enqueueLocked()
	s.mu.Unlock()

	s.dispatch()
	return true, nil
}

// Terminate moves to a terminal status (cancelled or failed) from any
// non-terminal status. It returns false if the store was already terminal.
func (s *Store) Terminate(to Status) bool {
	if to != StatusCancelled && to != StatusFailed {
		return false
	}

	s.mu.Lock()
	if s.state.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	s.state.Status = to
	s.enqueueLocked()
	s.mu.Unlock()

	s.dispatch()
	return true
}

func (s *Store) snapshotLocked() State {
	return State{Status: s.state.Status, Data: maps.Clone(s.state.Data)}
}

func (s *Store) enqueueLocked() {
	s.pending = append(s.pending, s.snapshotLocked())
}

// dispatch drains the pending queue unless another call is already doing
// so, in which case that call will deliver what was just queued.
func (s *Store) dispatch() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true

	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.changes.Fire(next)
		s.mu.Lock()
	}

	s.dispatching = false
	s.mu.Unlock()
}
