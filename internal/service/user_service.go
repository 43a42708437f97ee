package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
)

// UserStore is the account persistence UserService needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// UserService handles account lifecycle: signup, login, refresh, logout and
// password changes.
type UserService struct {
	users UserStore
	auth  *AuthService
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, auth *AuthService) *UserService {
	return &UserService{users: users, auth: auth}
}

// Signup creates an account and signs it in.
func (s *UserService) Signup(ctx context.Context, req model.SignupRequest) (*model.AuthResponse, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	return s.signIn(ctx, u)
}

// Login verifies credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	return s.signIn(ctx, u)
}

// Refresh rotates the token pair of a refresh token's owner.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	pair, claims, err := s.auth.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{User: *u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Me returns the account of the session.
func (s *UserService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ChangePassword replaces the password and issues a new token pair. Tokens
// issued before the change stop working.
func (s *UserService) ChangePassword(ctx context.Context, userID string, req model.ChangePasswordRequest) (*model.AuthResponse, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.CheckPassword(u.PasswordHash, req.CurrentPassword); err != nil {
		return nil, err
	}

	hash, err := s.auth.HashPassword(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	return s.signIn(ctx, u)
}

// Logout ends the session of the user.
func (s *UserService) Logout(ctx context.Context, session *UserSession) error {
	return session.SignOut(ctx)
}

func (s *UserService) signIn(ctx context.Context, u *model.User) (*model.AuthResponse, error) {
	pair, err := s.auth.IssueTokens(ctx, u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{User: *u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}
