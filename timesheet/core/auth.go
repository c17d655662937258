package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"piecework.app/piecework/security"
	"piecework.app/piecework/timesheet/model"
	"piecework.app/piecework/timesheet/repository"
)

const (
	DefaultSessionTTL      = 7 * 24 * time.Hour
	DefaultRevalidateAfter = 24 * time.Hour
	DefaultQueryTimeout    = 8 * time.Second
)

type AuthSettings struct {
	Secret          []byte
	SessionTTL      time.Duration
	RevalidateAfter time.Duration
	QueryTimeout    time.Duration
}

// Session is what a successful sign-in hands to the client.
type Session struct {
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         *model.User  `json:"user"`
	Capabilities []Capability `json:"capabilities"`
}

type AuthService struct {
	repo     *repository.Repository
	settings AuthSettings
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(repo *repository.Repository, settings AuthSettings, logger *zap.Logger) *AuthService {
	if settings.SessionTTL <= 0 {
		settings.SessionTTL = DefaultSessionTTL
	}
	if settings.RevalidateAfter <= 0 {
		settings.RevalidateAfter = DefaultRevalidateAfter
	}
	if settings.QueryTimeout <= 0 {
		settings.QueryTimeout = DefaultQueryTimeout
	}
	return &AuthService{
		repo:     repo,
		settings: settings,
		logger:   logger.Named("auth"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// checkAccount confirms the user and its company may still sign in.
func (s *AuthService) checkAccount(ctx context.Context, user *model.User) error {
	if !user.Active {
		return ErrAccountDisabled
	}
	company, err := s.repo.Companies.FindByID(ctx, user.CompanyID)
	if err != nil {
		return fmt.Errorf("load company %s: %w", user.CompanyID, err)
	}
	if !company.Active {
		return ErrAccountDisabled
	}
	return nil
}

func (s *AuthService) issue(user *model.User, issuedAt, expiresAt time.Time) (string, error) {
	return security.CreateSessionToken(security.SessionIdentity{
		UserID:      user.ID,
		Username:    user.Username,
		Name:        user.Name,
		Role:        string(user.Role),
		CompanyID:   user.CompanyID,
		ValidatedAt: issuedAt.Unix(),
	}, s.settings.Secret, issuedAt, expiresAt)
}

func timeoutError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after waiting for the database: %w", op, err)
	}
	return err
}

// Login checks the credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fieldError("username", "username and password are required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.QueryTimeout)
	defer cancel()

	user, err := s.repo.Users.FindByUsername(ctx, username)
	if repository.IsNotFound(err) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, timeoutError("sign in", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("sign in rejected", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}
	if err := s.checkAccount(ctx, user); err != nil {
		return nil, timeoutError("sign in", err)
	}

	now := s.now()
	expires := now.Add(s.settings.SessionTTL)
	token, err := s.issue(user, now, expires)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("last login not recorded", zap.String("user", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	s.logger.Info("signed in", zap.String("user", user.ID), zap.String("role", string(user.Role)))
	return &Session{Token: token, ExpiresAt: expires, User: user, Capabilities: Capabilities(user.Role)}, nil
}

// Validate resolves a session token to its actor. Tokens last checked
// against the store longer ago than the revalidation window are checked
// again, and a refreshed token is returned alongside; otherwise the
// returned token is empty.
func (s *AuthService) Validate(ctx context.Context, token string) (Actor, string, error) {
	now := s.now()
	claims, err := security.ParseSessionToken(token, s.settings.Secret, now)
	if err != nil {
		return Actor{}, "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	actor := Actor{
		UserID:    claims.UserID,
		Name:      claims.Name,
		Role:      model.Role(claims.Role),
		CompanyID: claims.CompanyID,
	}
	if now.Sub(time.Unix(claims.ValidatedAt, 0)) < s.settings.RevalidateAfter {
		return actor, "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.QueryTimeout)
	defer cancel()

	user, err := s.repo.Users.FindByID(ctx, claims.UserID)
	if repository.IsNotFound(err) {
		return Actor{}, "", ErrSessionExpired
	}
	if err != nil {
		return Actor{}, "", timeoutError("session check", err)
	}
	if err := s.checkAccount(ctx, user); err != nil {
		if errors.Is(err, ErrAccountDisabled) {
			return Actor{}, "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return Actor{}, "", timeoutError("session check", err)
	}

	refreshed, err := s.issue(user, now, claims.ExpiresAt.Time)
	if err != nil {
		return Actor{}, "", err
	}
	s.logger.Debug("session revalidated", zap.String("user", user.ID))
	return Actor{UserID: user.ID, Name: user.Name, Role: user.Role, CompanyID: user.CompanyID}, refreshed, nil
}

// Me returns the signed-in user with the capabilities the UI gates on.
func (s *AuthService) Me(ctx context.Context, actor Actor) (*Session, error) {
	user, err := s.repo.Users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Capabilities: Capabilities(user.Role)}, nil
}

// ChangePassword replaces the actor's password after checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	if len(next) < 8 {
		return fieldError("newPassword", "must be at least 8 characters")
	}
	user, err := s.repo.Users.FindByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.repo.Users.Update(ctx, user)
}
