package auth

import (
	"net/http"
	"strings"

	"github.com/onestopcrm/crmgate/internal/session"
)

// Default credential transport names.
const (
	// DefaultTokenCookie is the cookie carrying a bearer token directly.
	DefaultTokenCookie = "auth_token"

	// DefaultSessionCookie is the cookie carrying the server session ID.
	DefaultSessionCookie = "crm_session"

	bearerPrefix = "Bearer "
)

// Extractor locates a candidate token for a request. Sources are
// checked in a fixed priority order: Authorization header, server
// session, token cookie. The first non-empty value wins.
type Extractor struct {
	sessions      session.Store
	tokenCookie   string
	sessionCookie string
}

// ExtractorOption is a functional option for the extractor.
type ExtractorOption func(*Extractor)

// WithTokenCookie overrides the token cookie name.
func WithTokenCookie(name string) ExtractorOption {
	return func(e *Extractor) {
		e.tokenCookie = name
	}
}

// WithSessionCookie overrides the session cookie name.
func WithSessionCookie(name string) ExtractorOption {
	return func(e *Extractor) {
		e.sessionCookie = name
	}
}

// NewExtractor creates a new credential extractor. The session store
// may be nil, in which case the session source is skipped.
func NewExtractor(sessions session.Store, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		sessions:      sessions,
		tokenCookie:   DefaultTokenCookie,
		sessionCookie: DefaultSessionCookie,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the first token found, or ErrNoCredentials.
func (e *Extractor) Extract(r *http.Request) (string, error) {
	if token := bearerFromHeader(r); token != "" {
		return token, nil
	}

	if token := e.tokenFromSession(r); token != "" {
		return token, nil
	}

	if cookie, err := r.Cookie(e.tokenCookie); err == nil && cookie.Value != "" {
		return strings.TrimSpace(cookie.Value), nil
	}

	return "", ErrNoCredentials
}

// tokenFromSession resolves the session cookie against the session
// store. Missing or expired sessions are treated as no credential.
func (e *Extractor) tokenFromSession(r *http.Request) string {
	if e.sessions == nil {
		return ""
	}

	cookie, err := r.Cookie(e.sessionCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}

	token, err := e.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		return ""
	}
	return token
}

// bearerFromHeader extracts a bearer token from the Authorization header.
func bearerFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
