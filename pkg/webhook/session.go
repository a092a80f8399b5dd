package webhook

import "sync"

// SessionState is the authentication state of a webhook session
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session holds the bearer token issued by the webhook node. It is only
// mutated by the Client that owns it.
type Session struct {
	mu    sync.Mutex
	token string
}

// State returns the current session state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return StateUnauthenticated
	}

	return StateAuthenticated
}

// Token returns the bearer token and whether the session is authenticated
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token, s.token != ""
}

func (s *Session) authenticated(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

func (s *Session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
}
