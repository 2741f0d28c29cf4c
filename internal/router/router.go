package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/onestopcrm/crmgate/internal/util"
)

// Middleware is a composable request check. It may pass the request to
// the next handler or respond and return, short-circuiting everything
// after it.
type Middleware func(http.Handler) http.Handler

// Route is a single registered (method, pattern) pair.
type Route struct {
	Method     string
	Pattern    string
	Handler    http.Handler
	Middleware []Middleware

	matcher *patternMatcher
}

// Router is the route table and dispatcher. Routes are registered at
// startup and the table is read-only afterwards, so dispatch needs no
// synchronization. Routes are scanned linearly in registration order
// and the first (method, pattern) match wins, which makes duplicate
// registrations resolve to the first one registered.
type Router struct {
	routes   []*Route
	global   []Middleware
	basePath string
	frozen   atomic.Bool
}

// Option is a functional option for the router.
type Option func(*Router)

// WithBasePath sets a prefix stripped from request paths before
// matching, for deployments mounted below the server root.
func WithBasePath(basePath string) Option {
	return func(r *Router) {
		r.basePath = strings.TrimSuffix(basePath, "/")
	}
}

// New creates a new router.
func New(opts ...Option) *Router {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use appends global middleware, run before route middleware on every
// dispatched request.
func (r *Router) Use(mw ...Middleware) {
	r.global = append(r.global, mw...)
}

// Handle registers a route. It panics on registration after the first
// dispatch or on an invalid pattern; both are startup programming
// errors.
func (r *Router) Handle(method, pattern string, handler http.Handler, mw ...Middleware) {
	if r.frozen.Load() {
		panic("router: route registered after first dispatch")
	}

	matcher, err := newPatternMatcher(pattern)
	if err != nil {
		panic(fmt.Sprintf("router: invalid pattern %q: %v", pattern, err))
	}

	r.routes = append(r.routes, &Route{
		Method:     strings.ToUpper(method),
		Pattern:    pattern,
		Handler:    handler,
		Middleware: mw,
		matcher:    matcher,
	})
}

// HandleFunc registers a route with a handler function.
func (r *Router) HandleFunc(method, pattern string, handler http.HandlerFunc, mw ...Middleware) {
	r.Handle(method, pattern, handler, mw...)
}

// Get registers a GET route.
func (r *Router) Get(pattern string, handler http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodGet, pattern, handler, mw...)
}

// Post registers a POST route.
func (r *Router) Post(pattern string, handler http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPost, pattern, handler, mw...)
}

// Put registers a PUT route.
func (r *Router) Put(pattern string, handler http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPut, pattern, handler, mw...)
}

// Delete registers a DELETE route.
func (r *Router) Delete(pattern string, handler http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodDelete, pattern, handler, mw...)
}

// ServeHTTP dispatches the request.
//
// The path is normalized by stripping the configured base path and
// forcing a leading slash; trailing slashes are not normalized, so
// /items and /items/ are distinct. If a pattern matches the path but
// no route matches the method, the response is 405 with an Allow
// header carrying the union of methods registered for the matching
// patterns. If nothing matches the path at all, the response is 404.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.frozen.CompareAndSwap(false, true)

	path := r.normalize(req.URL.Path)

	route, params, err := r.Match(req.Method, path)
	if err != nil {
		var notAllowed *util.MethodNotAllowedError
		if errors.As(err, &notAllowed) {
			r.methodNotAllowed(w, notAllowed.Allowed)
			return
		}
		r.notFound(w)
		return
	}

	r.invoke(w, req, route, path, params)
}

// Match scans the table for the first route matching both method and
// path. It returns a MethodNotAllowedError carrying the union of
// registered methods when only the method fails to match, and a
// RouteNotFoundError when no pattern matches the path.
func (r *Router) Match(method, path string) (*Route, map[string]string, error) {
	var allowed []string
	for _, route := range r.routes {
		matched, params := route.matcher.match(path)
		if !matched {
			continue
		}
		if route.Method != method {
			allowed = appendMethod(allowed, route.Method)
			continue
		}
		return route, params, nil
	}

	if len(allowed) > 0 {
		return nil, nil, util.NewMethodNotAllowedError(method, path, allowed)
	}
	return nil, nil, util.NewRouteNotFoundError(method, path)
}

// invoke runs the middleware chain and the handler for a matched
// route. Global middleware runs first, then route middleware, both in
// registration order; any rejection short-circuits the rest.
func (r *Router) invoke(w http.ResponseWriter, req *http.Request, route *Route, path string, params map[string]string) {
	ctx := req.Context()
	if params != nil {
		ctx = contextWithParams(ctx, params)
	}
	req = req.WithContext(ctx)
	req.URL.Path = path

	handler := route.Handler
	for i := len(route.Middleware) - 1; i >= 0; i-- {
		handler = route.Middleware[i](handler)
	}
	for i := len(r.global) - 1; i >= 0; i-- {
		handler = r.global[i](handler)
	}

	handler.ServeHTTP(w, req)
}

// normalize strips the base path and forces a leading slash. The base
// path is stripped only at a segment boundary, so /crmfoo is not
// rewritten under base path /crm.
func (r *Router) normalize(path string) string {
	if r.basePath != "" && strings.HasPrefix(path, r.basePath) {
		rest := path[len(r.basePath):]
		if rest == "" || rest[0] == '/' {
			path = rest
		}
	}
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return path
}

// notFound renders the 404 envelope.
func (r *Router) notFound(w http.ResponseWriter) {
	util.RespondError(w, http.StatusNotFound, "Route not found")
}

// methodNotAllowed renders the 405 envelope with the Allow header.
func (r *Router) methodNotAllowed(w http.ResponseWriter, allowed []string) {
	w.Header().Set(util.HeaderAllow, strings.Join(allowed, ", "))
	util.RespondJSON(w, http.StatusMethodNotAllowed, util.Envelope{
		Success: false,
		Message: "Method not allowed",
		Data:    map[string]any{"allowed": allowed},
	})
}

// appendMethod appends a method if not already present, preserving
// first-seen order for the Allow header.
func appendMethod(methods []string, method string) []string {
	for _, m := range methods {
		if m == method {
			return methods
		}
	}
	return append(methods, method)
}

// Context key type for path parameters.
type paramsContextKey struct{}

// contextWithParams attaches extracted path parameters to the context.
func contextWithParams(ctx context.Context, params map[string]string) context.Context {
	return context.WithValue(ctx, paramsContextKey{}, params)
}

// Params returns the named path parameters extracted for the matched
// route, or nil when the route has none.
func Params(ctx context.Context) map[string]string {
	params, _ := ctx.Value(paramsContextKey{}).(map[string]string)
	return params
}

// Param returns a single named path parameter.
func Param(ctx context.Context, name string) string {
	return Params(ctx)[name]
}
