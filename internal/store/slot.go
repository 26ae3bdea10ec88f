// Package store owns the canonical copies of every entity the storefront has
// fetched. Values go in and come out as deep copies, so no caller can observe
// a mutation made by another.
package store

import (
	"sync"
	"time"
)

// Status is the fetch lifecycle of a slot.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a point-in-time copy of a slot.
type State[T any] struct {
	Data      T
	HasData   bool
	Status    Status
	Err       error
	Key       string
	UpdatedAt time.Time
}

// Loading reports whether a fetch is outstanding.
func (s State[T]) Loading() bool {
	return s.Status == StatusLoading
}

// Slot holds one entity (or one list of entities) together with its fetch
// status. Every write replaces the whole value.
type Slot[T any] struct {
	clone func(T) T
	now   func() time.Time

	mu        sync.RWMutex
	data      T
	hasData   bool
	status    Status
	err       error
	key       string
	wanted    string
	updatedAt time.Time
}

// NewSlot creates an empty slot that copies values with clone.
func NewSlot[T any](clone func(T) T) *Slot[T] {
	return &Slot[T]{clone: clone, now: time.Now}
}

// Begin marks a fetch for key as started. Only the most recent key passed to
// Begin may later Commit or Fail.
func (s *Slot[T]) Begin(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wanted = key
	s.status = StatusLoading
}

// Wanted returns the key of the most recent Begin.
func (s *Slot[T]) Wanted() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wanted
}

// Commit stores a copy of v as the result for key. It returns false and
// leaves the slot untouched when key has been superseded by a later Begin.
func (s *Slot[T]) Commit(key string, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != s.wanted {
		return false
	}
	s.data = s.clone(v)
	s.hasData = true
	s.status = StatusReady
	s.err = nil
	s.key = key
	s.updatedAt = s.now()
	return true
}

// Put stores a copy of v unconditionally. It is used for mutation results,
// which always reflect the latest server state.
func (s *Slot[T]) Put(key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wanted = key
	s.data = s.clone(v)
	s.hasData = true
	s.status = StatusReady
	s.err = nil
	s.key = key
	s.updatedAt = s.now()
}

// Fail records err for key while keeping the previous data. It returns false
// when key has been superseded.
func (s *Slot[T]) Fail(key string, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != s.wanted {
		return false
	}
	s.status = StatusFailed
	s.err = err
	return true
}

// Get returns a copy of the current data.
func (s *Slot[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasData {
		var zero T
		return zero, false
	}
	return s.clone(s.data), true
}

// GetKey returns a copy of the current data when it was stored under key.
func (s *Slot[T]) GetKey(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasData || s.key != key {
		var zero T
		return zero, false
	}
	return s.clone(s.data), true
}

// Snapshot returns a copy of the whole slot.
func (s *Slot[T]) Snapshot() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State[T]{
		HasData:   s.hasData,
		Status:    s.status,
		Err:       s.err,
		Key:       s.key,
		UpdatedAt: s.updatedAt,
	}
	if s.hasData {
		st.Data = s.clone(s.data)
	}
	return st
}

// Clear resets the slot to idle and drops its data. Pending fetches are
// superseded.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	s.data = zero
	s.hasData = false
	s.status = StatusIdle
	s.err = nil
	s.key = ""
	s.wanted = ""
	s.updatedAt = time.Time{}
}
