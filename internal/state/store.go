package state

import (
	"sync"
)

// Store owns the current State. Every mutation goes through Update or
// UpdateIf, which apply one transition atomically and then notify the UI.
type Store struct {
	mu       sync.RWMutex
	state    State
	drawFunc func()
}

func New(drawFunc func()) *Store {
	return &Store{
		state:    Initial(),
		drawFunc: drawFunc,
	}
}

func (s *Store) SetDrawFunc(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawFunc = f
}

// Snapshot returns the current state. The result must not be modified.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Generation returns the current session generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

// Update applies fn to the current state and returns the new state.
func (s *Store) Update(fn func(State) State) State {
	s.mu.Lock()
	s.state = fn(s.state)
	next, draw := s.state, s.drawFunc
	s.mu.Unlock()

	if draw != nil {
		draw()
	}
	return next
}

// UpdateIf applies fn only while the store is still in generation gen.
// It reports whether the transition was applied.
func (s *Store) UpdateIf(gen uint64, fn func(State) State) bool {
	s.mu.Lock()
	if s.state.Generation != gen {
		s.mu.Unlock()
		return false
	}
	s.state = fn(s.state)
	draw := s.drawFunc
	s.mu.Unlock()

	if draw != nil {
		draw()
	}
	return true
}
