package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onestopcrm/crmgate/internal/util"
)

// staticVerifier resolves a fixed token to a fixed identity.
type staticVerifier struct {
	token    string
	identity *Identity
}

func (v *staticVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == v.token {
		return v.identity, nil
	}
	return nil, errors.New("invalid token")
}

func newTestGate(opts ...GateOption) *Gate {
	verifier := &staticVerifier{
		token:    "good-token",
		identity: &Identity{ID: "1", Email: "a@b.c", Role: "team_member", Status: "active"},
	}
	return NewGate(NewExtractor(nil), verifier, opts...)
}

func passthrough(t *testing.T) (http.Handler, *bool) {
	t.Helper()

	reached := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}), &reached
}

func TestGate_ValidTokenPasses(t *testing.T) {
	t.Parallel()

	g := newTestGate()
	var got *Identity
	handler := g.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
	r.Header.Set("Authorization", "Bearer good-token")

	handler.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, got)
	assert.Equal(t, "1", got.ID)
}

func TestGate_APIRequestGets401Envelope(t *testing.T) {
	t.Parallel()

	g := newTestGate()
	handler, reached := passthrough(t)
	wrapped := g.Middleware()(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *reached)

	var env util.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "Unauthorized. Please login to access this resource.", env.Message)
}

func TestGate_InvalidTokenSameResponseAsMissing(t *testing.T) {
	t.Parallel()

	g := newTestGate()
	handler, _ := passthrough(t)
	wrapped := g.Middleware()(handler)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
	r.Header.Set("Authorization", "Bearer forged-token")
	wrapped.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var env util.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Unauthorized. Please login to access this resource.", env.Message)
}

func TestGate_PageRequestRedirectsToLogin(t *testing.T) {
	t.Parallel()

	g := newTestGate()
	handler, reached := passthrough(t)
	wrapped := g.Middleware()(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, *reached)
}

func TestGate_PublicPathPasses(t *testing.T) {
	t.Parallel()

	g := newTestGate(WithPublicPaths("/api/v1/auth/login"))
	handler, reached := passthrough(t)
	wrapped := g.Middleware()(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *reached)
}

func TestGate_PublicPathStillResolvesIdentity(t *testing.T) {
	t.Parallel()

	g := newTestGate(WithPublicPaths("/api/v1/auth/me"))
	var got *Identity
	wrapped := g.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	r.Header.Set("Authorization", "Bearer good-token")
	wrapped.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, got)
	assert.Equal(t, "1", got.ID)
}

func TestGate_CustomLoginPath(t *testing.T) {
	t.Parallel()

	g := newTestGate(WithLoginPath("/signin"))
	handler, _ := passthrough(t)
	wrapped := g.Middleware()(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))

	assert.Equal(t, "/signin", rec.Header().Get("Location"))
}
