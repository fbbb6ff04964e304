package authorizer

import "sync"

// Status is the state of a session.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusSuccess Status = "success"
	StatusDenied  Status = "denied"
	StatusFailure Status = "failure"
)

// state leaves StatusWaiting at most once per session.
type state struct {
	mu     sync.Mutex
	status Status
	token  string
	cause  error
}

func (s *state) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusWaiting
	s.token = ""
	s.cause = nil
}

// commit records a terminal status and reports whether it won.
func (s *state) commit(status Status, token string, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusWaiting {
		return false
	}
	s.status = status
	s.token = token
	s.cause = cause
	return true
}

func (s *state) snapshot() (Status, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.token, s.cause
}
