// Package gateway is the entry point of the CRM REST API: it parses the
// versioned path, authenticates the caller, dispatches to a resource and
// records the outcome.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leadkit/gateway/internal/metrics"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/server/middleware"
	"github.com/leadkit/gateway/internal/service"
)

// Config controls gateway behavior.
type Config struct {
	// FunctionName is stripped when it is the first path segment.
	FunctionName string
	// Debug appends internal error text to 500 responses.
	Debug bool
	CORS  CORSPolicy
	// IPRateLimit caps requests per minute per client address ahead of key
	// lookup. Zero disables the guard.
	IPRateLimit int
}

// Authenticator validates the caller of a request.
type Authenticator interface {
	Authenticate(r *http.Request) service.AuthResult
}

// Auditor records a finished request.
type Auditor interface {
	Record(res service.AuthResult, r *http.Request, status int, elapsed time.Duration, requestID string, err error)
}

// Gateway is an http.Handler serving /{function}/v1/...
type Gateway struct {
	cfg       Config
	authn     Authenticator
	audit     Auditor
	logger    *slog.Logger
	resources map[string]Resource
	guard     func(http.Handler) http.Handler
	handler   http.Handler
}

// New creates a gateway with no resources registered.
func New(cfg Config, authn Authenticator, audit Auditor, logger *slog.Logger) *Gateway {
	g := &Gateway{
		cfg:       cfg,
		authn:     authn,
		audit:     audit,
		logger:    logger,
		resources: make(map[string]Resource),
		guard:     middleware.LimitByIP(cfg.IPRateLimit),
	}
	g.handler = cfg.CORS.handler(http.HandlerFunc(g.serve))
	return g
}

// Register mounts res at /v1/{name}.
func (g *Gateway) Register(name string, res Resource) {
	g.resources[name] = res
}

// Resources returns the registered resource names in order.
func (g *Gateway) Resources() []string {
	names := make([]string, 0, len(g.resources))
	for name := range g.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())
	rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	var (
		res      service.AuthResult
		callErr  error
		resource = "none"
	)
	defer func() {
		elapsed := time.Since(start)
		g.audit.Record(res, r, rw.status, elapsed, requestID, callErr)
		metrics.GatewayRequests.WithLabelValues(resource, r.Method, strconv.Itoa(rw.status)).Inc()
		metrics.GatewayDuration.WithLabelValues(resource, r.Method).Observe(elapsed.Seconds())
	}()

	// Throttled requests are audited too.
	g.guard(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		res, resource, callErr = g.handle(rw, r, requestID)
	})).ServeHTTP(rw, r)
}

// handle runs one request past the address guard. It returns the caller's
// auth result, the resource label for metrics and the handler error.
func (g *Gateway) handle(rw *statusWriter, r *http.Request, requestID string) (service.AuthResult, string, error) {
	var res service.AuthResult

	if origin := r.Header.Get("Origin"); !g.cfg.CORS.Allowed(origin) {
		problem.Write(rw, http.StatusForbidden, "Origin not allowed", requestID)
		return res, "none", nil
	}

	if r.Method == http.MethodOptions {
		h := rw.Header()
		h.Set("Access-Control-Allow-Headers", strings.Join(AllowedHeaders, ", "))
		h.Set("Access-Control-Allow-Methods", strings.Join(AllowedMethods, ", "))
		rw.WriteHeader(http.StatusNoContent)
		return res, "none", nil
	}

	route, err := ParseRoute(r.URL.Path, g.cfg.FunctionName)
	if errors.Is(err, errInvalidVersion) {
		problem.Write(rw, http.StatusBadRequest, "Invalid API version. Use /v1/", requestID)
		return res, "none", nil
	}
	if route.Resource == "" {
		g.discovery(rw)
		return res, "discovery", nil
	}

	res = g.authn.Authenticate(r)
	setRateLimitHeaders(rw, res)
	if !res.OK {
		problem.Write(rw, res.Status, res.Detail, requestID)
		return res, "none", nil
	}

	target, ok := g.resources[route.Resource]
	if !ok || err != nil {
		problem.Write(rw, http.StatusNotFound, "Endpoint not found", requestID)
		return res, "none", nil
	}

	callErr := g.dispatch(target, rw, &Request{Request: r, Route: route, Auth: res, RequestID: requestID})
	if callErr == nil {
		return res, route.Resource, nil
	}
	if problem.StatusOf(callErr) >= http.StatusInternalServerError {
		g.logger.Error("resource handler failed",
			"resource", route.Resource,
			"method", r.Method,
			"request_id", requestID,
			"error", callErr,
		)
	}
	if !rw.wroteHeader {
		problem.WriteError(rw, callErr, g.cfg.Debug, requestID)
	}
	return res, route.Resource, callErr
}

// dispatch runs the resource, converting a panic into an error.
func (g *Gateway) dispatch(target Resource, w http.ResponseWriter, req *Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("resource handler panicked", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return target.Serve(w, req)
}

type discoveryResource struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (g *Gateway) discovery(w http.ResponseWriter) {
	prefix := "/" + APIVersion + "/"
	if g.cfg.FunctionName != "" {
		prefix = "/" + g.cfg.FunctionName + prefix
	}
	resources := make([]discoveryResource, 0, len(g.resources))
	for _, name := range g.Resources() {
		resources = append(resources, discoveryResource{Name: name, Path: prefix + name})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"name":           "LeadKit CRM API",
		"version":        APIVersion,
		"authentication": "Authorization: Bearer ks_live_...",
		"documentation":  "/openapi.json",
		"resources":      resources,
	})
}

func setRateLimitHeaders(w http.ResponseWriter, res service.AuthResult) {
	d := res.RateLimit
	if d == nil || d.Degraded {
		return
	}
	h := w.Header()
	if d.Limit > 0 {
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}
	if !d.Allowed && d.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(int((d.RetryAfter+time.Second-1)/time.Second)))
	}
}

// statusWriter captures the status code for the audit log.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
