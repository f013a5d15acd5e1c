package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ibuddy-app/ibuddy-service/internal/cache"
	"github.com/ibuddy-app/ibuddy-service/internal/events"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

// SessionConfig controls how session tokens are signed.
type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// Claims identify the user a session belongs to.
type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	events    events.Publisher
	config    SessionConfig
	users     *cache.Helper
	now       func() time.Time
}

// NewAuthService builds the session service. users may be nil, in which case
// every Authenticate reads the repository.
func NewAuthService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.Publisher, config SessionConfig, users *cache.Helper) AuthService {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &authService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    publisher,
		config:    config,
		users:     users,
		now:       time.Now,
	}
}

// Signup registers a buddy. Higher roles are granted by staff only.
func (s *authService) Signup(ctx context.Context, req *SignupRequest) (*Session, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().Create(ctx, &models.User{
		Email:     strings.TrimSpace(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      models.RoleBuddy,
	}, req.Password)
	if err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	publish(ctx, s.logger, s.events, events.UserCreated, user, user.ID, map[string]any{"role": user.Role, "signup": true})
	s.logger.Info("User signed up", "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) Signin(ctx context.Context, req *SigninRequest) (*Session, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.repo.User().VerifyLogin(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify login: %w", err)
	}
	if user == nil {
		s.logger.Info("Rejected sign in", "email", req.Email)
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *authService) issue(user *models.User) (*Session, error) {
	now := s.now()
	expiresAt := now.Add(s.config.TTL)
	claims := &Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves the user behind a token. The stored user wins over
// the claims so role changes apply to live sessions.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, ErrInvalidSession
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if s.config.Issuer != "" && claims.Issuer != s.config.Issuer {
		return nil, ErrInvalidSession
	}

	user, err := cache.GetOrLoad(ctx, s.users, claims.Subject, cache.SessionUserTTL, func() (*models.User, error) {
		return s.repo.User().GetByID(ctx, claims.Subject)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidSession
	}
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, actor *models.User, req *ChangePasswordRequest) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	verified, err := s.repo.User().VerifyLogin(ctx, actor.Email, req.CurrentPassword)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if verified == nil {
		return validator.Field("currentPassword", "Current password is incorrect", nil)
	}
	if err := s.repo.User().ChangePassword(ctx, actor.ID, req.NewPassword); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	s.logger.Info("Password changed", "user_id", actor.ID)
	return nil
}
