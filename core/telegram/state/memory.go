package state

import (
	"sync"
	"sync/atomic"
)

// slot guards one user's session. A dead slot has been removed from the map
// and must be looked up again.
type slot[T any] struct {
	mu   sync.Mutex
	val  *T
	dead bool
}

// Manager stores one session value per user id.
type Manager[T any] struct {
	mu    sync.Mutex
	slots map[int64]*slot[T]
	live  atomic.Int64
}

// NewManager constructs an empty in-memory session store.
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{slots: make(map[int64]*slot[T])}
}

// UpdateFunc receives a copy of the current session (nil when none exists) and
// returns the value to store. Returning nil removes the session. On error the
// stored value is left untouched.
type UpdateFunc[T any] func(cur *T) (*T, error)

// Update runs fn under the user's lock.
func (m *Manager[T]) Update(userID int64, fn UpdateFunc[T]) error {
	for {
		s := m.acquire(userID)
		s.mu.Lock()
		if s.dead {
			s.mu.Unlock()
			continue
		}

		var cur *T
		if s.val != nil {
			cp := *s.val
			cur = &cp
		}

		next, err := fn(cur)
		switch {
		case err != nil:
			if s.val == nil {
				m.drop(userID, s)
			}
		case next == nil:
			m.drop(userID, s)
		default:
			if s.val == nil {
				m.live.Add(1)
			}
			s.val = next
		}
		s.mu.Unlock()
		return err
	}
}

// Get returns a copy of the user's session.
func (m *Manager[T]) Get(userID int64) (T, bool) {
	var zero T
	m.mu.Lock()
	s := m.slots[userID]
	m.mu.Unlock()
	if s == nil {
		return zero, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead || s.val == nil {
		return zero, false
	}
	return *s.val, true
}

// InProgress reports whether the user has a stored session.
func (m *Manager[T]) InProgress(userID int64) bool {
	_, ok := m.Get(userID)
	return ok
}

// Len returns the number of stored sessions.
func (m *Manager[T]) Len() int {
	return int(m.live.Load())
}

func (m *Manager[T]) acquire(userID int64) *slot[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[userID]
	if !ok {
		s = &slot[T]{}
		m.slots[userID] = s
	}
	return s
}

// drop must be called with s.mu held.
func (m *Manager[T]) drop(userID int64, s *slot[T]) {
	m.mu.Lock()
	if m.slots[userID] == s {
		delete(m.slots, userID)
	}
	m.mu.Unlock()
	if s.val != nil {
		m.live.Add(-1)
	}
	s.val = nil
	s.dead = true
}
