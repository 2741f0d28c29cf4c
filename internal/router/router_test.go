package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onestopcrm/crmgate/internal/util"
)

func okHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func TestRouter_ExactMatch(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/api/v1/clients", okHandler("list"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "list", rec.Body.String())
}

func TestRouter_PathParams(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/api/v1/projects/{id}/tasks/{taskId}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(Param(req.Context(), "id") + ":" + Param(req.Context(), "taskId")))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects/42/tasks/7", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42:7", rec.Body.String())
}

func TestRouter_PlaceholderDoesNotSpanSegments(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/files/{id}", okHandler("file"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/a/b", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_FirstRegisteredWins(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/api/v1/quotes/calculate", okHandler("literal"))
	r.Get("/api/v1/quotes/{id}", okHandler("param"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/calculate", nil))
	assert.Equal(t, "literal", rec.Body.String())

	// Duplicate registrations resolve to the first one.
	r2 := New()
	r2.Get("/dup", okHandler("first"))
	r2.Get("/dup", okHandler("second"))

	rec2 := httptest.NewRecorder()
	r2.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/dup", nil))
	assert.Equal(t, "first", rec2.Body.String())
}

func TestRouter_NotFound(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/known", okHandler("ok"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var env util.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "Route not found", env.Message)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/api/v1/deals/{id}", okHandler("show"))
	r.Put("/api/v1/deals/{id}", okHandler("update"))
	r.Delete("/api/v1/deals/{id}", okHandler("delete"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/deals/3", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, PUT, DELETE", rec.Header().Get("Allow"))

	var env util.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "Method not allowed", env.Message)
}

func TestRouter_TrailingSlashIsDistinct(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/items", okHandler("items"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_BasePathStripping(t *testing.T) {
	t.Parallel()

	r := New(WithBasePath("/crm"))
	r.Get("/api/v1/users", okHandler("users"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crm/api/v1/users", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Without the base path the route still resolves.
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestRouter_BasePathStripsOnlyAtSegmentBoundary(t *testing.T) {
	t.Parallel()

	r := New(WithBasePath("/crm"))
	r.Get("/foo", okHandler("foo"))

	// /crmfoo shares the base path bytes but is a different first
	// segment; it must not be rewritten to /foo.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crmfoo", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/crm/foo", nil))
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestRouter_RegistrationAfterDispatchPanics(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/a", okHandler("a"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a", nil))

	assert.Panics(t, func() {
		r.Get("/b", okHandler("b"))
	})
}

func TestRouter_ConcurrentDispatch(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/clients/{id}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(Param(req.Context(), "id")))
	})

	var wg sync.WaitGroup
	codes := make([]int, 16)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients/7", nil))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}

	r := New()
	r.Use(mark("global1"), mark("global2"))
	r.Get("/x", okHandler("x"), mark("route"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, []string{"global1", "global2", "route"}, order)
}

func TestRouter_MiddlewareShortCircuit(t *testing.T) {
	t.Parallel()

	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}

	reached := false
	r := New()
	r.Get("/x", func(w http.ResponseWriter, req *http.Request) {
		reached = true
	}, deny)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)
}

func TestRouter_Match(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/api/v1/users/{id}", okHandler("show"))

	route, params, err := r.Match(http.MethodGet, "/api/v1/users/9")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/users/{id}", route.Pattern)
	assert.Equal(t, map[string]string{"id": "9"}, params)

	_, _, err = r.Match(http.MethodPost, "/api/v1/users/9")
	var notAllowed *util.MethodNotAllowedError
	require.ErrorAs(t, err, &notAllowed)
	assert.Equal(t, []string{"GET"}, notAllowed.Allowed)

	_, _, err = r.Match(http.MethodGet, "/nope")
	var notFound *util.RouteNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRouter_InvalidPatternPanics(t *testing.T) {
	t.Parallel()

	r := New()
	assert.Panics(t, func() {
		r.Get("/bad/{1id}", okHandler("bad"))
	})
}
