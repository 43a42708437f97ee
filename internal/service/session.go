package service

import (
	"context"
	"sync"
)

// CurrentUser identifies the account behind an authenticated request.
type CurrentUser struct {
	ID    string
	Email string
}

// UserSession is the explicit session context of one request or
// connection. Middleware builds it after the token has been validated; it is
// handed to whatever may end the session, such as the proctoring monitor.
type UserSession struct {
	mu     sync.Mutex
	user   CurrentUser
	active bool
	auth   *AuthService
}

// NewUserSession returns an authenticated session for user.
func NewUserSession(auth *AuthService, user CurrentUser) *UserSession {
	return &UserSession{auth: auth, user: user, active: true}
}

// CurrentUser returns the signed-in user.
func (s *UserSession) CurrentUser() CurrentUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// IsAuthenticated reports whether SignOut has not been called yet.
func (s *UserSession) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SignOut revokes the user's tokens. Only the first call reaches Redis;
// later calls are no-ops.
func (s *UserSession) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.mu.Unlock()

	if s.auth == nil {
		return nil
	}
	return s.auth.ResetSession(ctx, s.user.ID)
}
