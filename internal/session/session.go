package session

import (
	"sync"
	"time"
)

// Logout reasons.
const (
	ReasonExplicit     = "explicit"
	ReasonUnauthorized = "unauthorized"
	ReasonExpired      = "expired"
)

// Record is the persisted form of a session.
type Record struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Subject   string    `json:"subject,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Listener is told when a session logs out.
type Listener func(s *Session, reason string)

// Session is the credential context handed to every upstream client bound to
// one user. The token is read-only until Logout, the only transition.
type Session struct {
	mu        sync.RWMutex
	record    Record
	loggedOut bool
	reason    string
	listeners []Listener
}

func newSession(rec Record) *Session {
	return &Session{record: rec}
}

func (s *Session) ID() string {
	return s.record.ID
}

// Token returns the bearer token, or "" after logout.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loggedOut {
		return ""
	}
	return s.record.Token
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loggedOut {
		return ""
	}
	return s.record.Username
}

func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Role
}

func (s *Session) ExpiresAt() time.Time {
	return s.record.ExpiresAt
}

// Active reports whether the session still holds a token.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loggedOut
}

// LogoutReason is empty while the session is active.
func (s *Session) LogoutReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// Record returns a copy of the persisted state.
func (s *Session) Record() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Subscribe registers fn for the logout broadcast. Subscribing to a session
// that already logged out calls fn immediately.
func (s *Session) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.loggedOut {
		reason := s.reason
		s.mu.Unlock()
		fn(s, reason)
		return
	}
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Expire logs the session out after an upstream rejected its token.
func (s *Session) Expire(reason string) {
	if reason == "" {
		reason = ReasonUnauthorized
	}
	s.Logout(reason)
}

// Logout clears the credentials and notifies subscribers once.
// It reports whether this call performed the transition.
func (s *Session) Logout(reason string) bool {
	s.mu.Lock()
	if s.loggedOut {
		s.mu.Unlock()
		return false
	}
	s.loggedOut = true
	s.reason = reason
	s.record.Token = ""
	s.record.Username = ""
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(s, reason)
	}
	return true
}
