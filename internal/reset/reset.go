// Package reset implements the password reset flow: opaque one-time
// tokens issued against an account email, redeemed for a password
// change within their lifetime.
package reset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/onestopcrm/crmgate/internal/account"
	"github.com/onestopcrm/crmgate/internal/observability"
)

// ErrInvalidOrExpiredToken is returned when a reset token is unknown,
// already used, or past its lifetime.
var ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")

// ErrNotFound is returned by a Store when a token does not exist.
var ErrNotFound = errors.New("reset token not found")

// DefaultTTL is the default reset token lifetime.
const DefaultTTL = time.Hour

const tokenBytes = 32

// Record is a stored reset token.
type Record struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists reset token records. Multiple outstanding records may
// exist for the same email; each is redeemable independently.
type Store interface {
	// Save stores a record under its token.
	Save(ctx context.Context, rec Record) error

	// Get returns the record for a token, or ErrNotFound.
	Get(ctx context.Context, token string) (*Record, error)

	// Delete removes the record for a token. Deleting an unknown
	// token is not an error.
	Delete(ctx context.Context, token string) error
}

// Service issues and redeems password reset tokens.
type Service struct {
	accounts account.Store
	store    Store
	ttl      time.Duration
	logger   observability.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a password reset service.
func NewService(accounts account.Store, store Store, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		store:    store,
		ttl:      DefaultTTL,
		logger:   observability.NopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken issues a reset token for the account with the given
// email. For unknown or inactive accounts it returns an empty token
// and no error, so callers can answer identically whether or not the
// email exists.
func (s *Service) GenerateToken(ctx context.Context, email string) (string, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			s.logger.Debug("reset requested for unknown email")
			return "", nil
		}
		return "", fmt.Errorf("reset: lookup account: %w", err)
	}
	if !acc.IsActive() {
		s.logger.Debug("reset requested for inactive account",
			observability.String("account_id", acc.ID),
		)
		return "", nil
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reset: generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	rec := Record{
		Token:     token,
		Email:     acc.Email,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("reset: save token: %w", err)
	}

	s.logger.Info("reset token issued",
		observability.String("account_id", acc.ID),
	)
	return token, nil
}

// Redeem consumes a reset token and sets the account password to
// newPassword. The token is deleted whether expired or redeemed, so a
// token works at most once. Other outstanding tokens for the same
// email remain valid.
func (s *Service) Redeem(ctx context.Context, token, newPassword string) error {
	rec, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("reset: load token: %w", err)
	}

	if !s.now().Before(rec.ExpiresAt) {
		if err := s.store.Delete(ctx, token); err != nil {
			s.logger.Warn("delete expired reset token", observability.Error(err))
		}
		return ErrInvalidOrExpiredToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("reset: hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, rec.Email, string(hash)); err != nil {
		return fmt.Errorf("reset: update password: %w", err)
	}

	if err := s.store.Delete(ctx, token); err != nil {
		s.logger.Warn("delete redeemed reset token", observability.Error(err))
	}

	s.logger.Info("password reset completed")
	return nil
}
