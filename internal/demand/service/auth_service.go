package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduardopventura/demandflow/internal/demand/entity"
	"github.com/eduardopventura/demandflow/internal/demand/repository"
	"github.com/eduardopventura/demandflow/internal/middleware"
)

// ErrInvalidCredentials wrong username or password. Deliberately the same
// error for both so login probing cannot tell them apart.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService issues and revokes access tokens. Revoked token ids live in
// redis until the token would have expired anyway.
type AuthService struct {
	repos    *repository.Repositories
	rdb      *redis.Client
	logger   *zap.Logger
	secret   string
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAuthService(repos *repository.Repositories, rdb *redis.Client, secret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		repos:    repos,
		rdb:      rdb,
		logger:   logger,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// LoginResult issued token plus the authenticated user.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *entity.User `json:"user"`
}

// Login verifies the credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.repos.User.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != entity.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Name)
	}
	claims := middleware.JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
		Email:    user.Email,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	lastLogin := now
	user.LastLoginAt = &lastLogin
	if err := s.repos.User.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("record last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes a token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Set(ctx, revocationKey(token), "1", s.tokenTTL).Err()
}

// IsRevoked reports whether a token has been revoked.
func (s *AuthService) IsRevoked(ctx context.Context, token string) bool {
	if s.rdb == nil {
		return false
	}
	n, err := s.rdb.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		s.logger.Warn("revocation check failed", zap.Error(err))
		return false
	}
	return n > 0
}

func revocationKey(token string) string {
	return "demandflow:revoked:" + token
}
