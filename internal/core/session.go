package core

import "sync"

// Session holds the single active user for the process lifetime. It is not
// part of the persisted document: logging out never mutates state.
type Session struct {
	mu   sync.RWMutex
	user *User
}

// NewSession constructs an empty session.
func NewSession() *Session {
	return &Session{}
}

// Current returns the active user, if any.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Clear drops the active user.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

func (s *Session) set(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}
