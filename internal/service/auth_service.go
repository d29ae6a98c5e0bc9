package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"cabinrent/internal/config"
	"cabinrent/internal/database"
	"cabinrent/internal/domain"
	"cabinrent/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "cabinrent"

// Claims is the payload of an access token.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() Actor {
	return Actor{ID: c.UserID, Username: c.Username}
}

func (c *Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// AuthService checks passwords and issues HS256 bearer tokens.
type AuthService struct {
	users       domain.UserRepository
	cache       domain.CacheStore
	secret      []byte
	ttl         time.Duration
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	logger      *zerolog.Logger
}

func NewAuthService(users domain.UserRepository, cache domain.CacheStore, cfg config.APIAuthConfig, logger *zerolog.Logger) *AuthService {
	s := &AuthService{
		users:       users,
		cache:       cache,
		secret:      []byte(cfg.JWTSecret),
		ttl:         cfg.TokenTTL,
		maxAttempts: cfg.LoginAttempts,
		window:      cfg.LoginWindow,
		now:         time.Now,
		logger:      nopLogger(logger),
	}
	if s.ttl <= 0 {
		s.ttl = 12 * time.Hour
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 5
	}
	if s.window <= 0 {
		s.window = 15 * time.Minute
	}
	return s
}

// Login verifies credentials and returns a signed token with its expiry.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, *models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	if s.cache != nil {
		allowed, err := s.cache.CheckRateLimit(ctx, "login:"+username, s.maxAttempts, s.window)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Login rate limit check failed")
		} else if !allowed {
			return "", time.Time{}, nil, ErrTooManyAttempts
		}
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// same work as a wrong password so usernames cannot be discovered by timing
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return "", time.Time{}, nil, ErrInvalidCredentials
		}
		return "", time.Time{}, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("Failed login attempt")
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	token, expires, err := s.IssueToken(user)
	if err != nil {
		return "", time.Time{}, nil, err
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to record last login")
	} else {
		user.LastLoginAt = &now
	}
	s.logger.Info().Str("username", username).Msg("User logged in")
	return token, expires, user, nil
}

func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates signature, algorithm and expiry.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate parses a token and refreshes its role from the stored account,
// so a demoted or deleted user loses access before the token expires.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load token user: %w", err)
	}
	claims.Username = user.Username
	claims.Role = user.Role
	return claims, nil
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("no such user"), bcrypt.DefaultCost)
	})
	return dummy
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
