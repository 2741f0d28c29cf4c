// Package token issues and verifies the signed bearer tokens used by
// the pipeline. The wire format is three dot-joined standard-base64
// segments: a JSON header, a JSON payload, and an HMAC-SHA256
// signature over the first two segments. Standard (padded) base64 is
// deliberate: it matches the established wire format, which predates
// the JOSE base64url compact serialization.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onestopcrm/crmgate/internal/account"
	"github.com/onestopcrm/crmgate/internal/auth"
)

// ErrInvalidToken is returned by Verify for every rejection: malformed
// string, signature mismatch, expiry, and inactive or missing subject.
// The cause is wrapped for logs but callers respond uniformly.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTTL is the default token lifetime.
const DefaultTTL = 30 * time.Minute

// header is the fixed token header.
type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// payload is the token payload. Times are unix seconds.
type payload struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Service issues and verifies tokens. Verification re-reads the
// subject's account on every call, so suspending an account revokes
// its outstanding tokens at the next request without a blacklist.
type Service struct {
	secret   []byte
	ttl      time.Duration
	accounts account.Store
	now      func() time.Time
}

// ServiceOption is a functional option for the service.
type ServiceOption func(*Service)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new token service.
func NewService(secret string, accounts account.Store, opts ...ServiceOption) *Service {
	s := &Service{
		secret:   []byte(secret),
		ttl:      DefaultTTL,
		accounts: accounts,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for the account. It always succeeds.
func (s *Service) Issue(acc *account.Account) string {
	now := s.now()

	headerJSON, _ := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	payloadJSON, _ := json.Marshal(payload{
		UserID:    acc.ID,
		Email:     acc.Email,
		Role:      acc.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})

	headerB64 := base64.StdEncoding.EncodeToString(headerJSON)
	payloadB64 := base64.StdEncoding.EncodeToString(payloadJSON)
	signature := s.sign(headerB64 + "." + payloadB64)

	return headerB64 + "." + payloadB64 + "." + signature
}

// Verify checks the token and resolves its subject to a live identity.
// It implements auth.Verifier.
func (s *Service) Verify(ctx context.Context, tokenString string) (*auth.Identity, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}

	expected := s.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	payloadJSON, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %v", ErrInvalidToken, err)
	}

	var p payload
	if err := json.Unmarshal(payloadJSON, &p); err != nil {
		return nil, fmt.Errorf("%w: payload parse: %v", ErrInvalidToken, err)
	}

	if p.ExpiresAt <= s.now().Unix() {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	acc, err := s.accounts.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return nil, fmt.Errorf("verify token subject: %w", err)
	}
	if !acc.IsActive() {
		return nil, fmt.Errorf("%w: subject inactive", ErrInvalidToken)
	}

	return &auth.Identity{
		ID:     acc.ID,
		Email:  acc.Email,
		Role:   acc.Role,
		Status: acc.Status,
	}, nil
}

// sign computes the base64 HMAC-SHA256 signature of the signing input.
func (s *Service) sign(signingInput string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signingInput))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var _ auth.Verifier = (*Service)(nil)
