package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitskillbridge/skillbridge-backend/internal/config"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrNoActiveSession    = errors.New("no active session")
	ErrWrongTokenType     = errors.New("wrong token type")
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
}

// TokenPair is an access token and the refresh token issued with it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService handles password hashing, JWT issuance and the Redis-backed
// session registry. Only the most recently issued pair of a user is valid.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
	now func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, now: time.Now}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueTokens signs a fresh access/refresh pair and registers both JTIs,
// replacing any pair issued earlier.
func (s *AuthService) IssueTokens(ctx context.Context, userID, email string) (TokenPair, error) {
	access, accessJTI, err := s.sign(userID, email, TokenTypeAccess, s.cfg.JWTExpiry)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshJTI, err := s.sign(userID, email, TokenTypeRefresh, s.cfg.RefreshExpiry)
	if err != nil {
		return TokenPair{}, err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.UserSessionKey(userID), accessJTI, s.cfg.JWTExpiry)
	pipe.Set(ctx, config.CacheKey.UserRefreshKey(userID), refreshJTI, s.cfg.RefreshExpiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return TokenPair{}, fmt.Errorf("store session: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) sign(userID, email string, tt TokenType, ttl time.Duration) (string, string, error) {
	jti := uuid.New().String()
	now := s.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tt,
		UserID:    userID,
		Email:     email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, jti, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateSession checks that the token's JTI matches the registered one
// for its type.
func (s *AuthService) ValidateSession(ctx context.Context, claims *Claims) error {
	key := config.CacheKey.UserSessionKey(claims.UserID)
	if claims.TokenType == TokenTypeRefresh {
		key = config.CacheKey.UserRefreshKey(claims.UserID)
	}

	stored, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoActiveSession
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != claims.ID {
		return ErrSessionInvalidated
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new pair. The old pair
// stops working.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, *Claims, error) {
	claims, err := s.ValidateToken(refreshToken)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return TokenPair{}, nil, ErrWrongTokenType
	}
	if err := s.ValidateSession(ctx, claims); err != nil {
		return TokenPair{}, nil, err
	}

	pair, err := s.IssueTokens(ctx, claims.UserID, claims.Email)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, claims, nil
}

// ResetSession removes a user's registered tokens. Every outstanding
// access and refresh token of the user is rejected afterwards.
func (s *AuthService) ResetSession(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx,
		config.CacheKey.UserSessionKey(userID),
		config.CacheKey.UserRefreshKey(userID),
	).Err()
}
