package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leadkit/gateway/internal/audit"
	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/handler"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/ratelimit"
	"github.com/leadkit/gateway/internal/service"
	"github.com/leadkit/gateway/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const testAdminSecret = "test-secret-for-admin-tokens"

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server *Server
	store  *store.Store
	tokens *service.AdminTokens
	audit  *audit.Logger
}

type envOptions struct {
	adminSecret    string
	ipLimit        int
	untrustedProxy bool
	ready          []ReadyCheck
}

// newTestEnv creates a fully wired Server over an in-memory store.
func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("store.NewMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(ratelimit.NewStoreCounter(s), logger)
	auditLog := audit.New(s, logger, 64)
	t.Cleanup(func() { auditLog.Close(context.Background()) })

	gw := gateway.New(gateway.Config{FunctionName: "crm-api", IPRateLimit: opts.ipLimit},
		service.NewAuthenticator(s, limiter, logger), auditLog, logger)
	handler.Register(gw, s)

	tokens := service.NewAdminTokens(opts.adminSecret)
	cfg := DefaultConfig()
	cfg.TrustProxyHeaders = !opts.untrustedProxy
	cfg.ShutdownTimeout = 5 * time.Second

	ready := opts.ready
	if ready == nil {
		ready = []ReadyCheck{{Name: "store", Check: s.Ping}}
	}

	srv := New(cfg, Deps{
		Gateway:     gw,
		Admin:       handler.NewAdminHandler(s, logger),
		AdminTokens: tokens,
		OpenAPI:     handler.NewOpenAPIHandler("crm-api", "test"),
		Ready:       ready,
	}, logger)

	return &testEnv{server: srv, store: s, tokens: tokens, audit: auditLog}
}

// do executes an HTTP request against the test server and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// doBearer executes a request with a bearer token.
func (e *testEnv) doBearer(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, map[string]string{"Authorization": "Bearer " + token})
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func assertContentType(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rr.Header().Get("Content-Type")
	if got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Operational endpoints
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, "GET", "/healthz", nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, "GET", "/readyz", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
	checks, ok := resp["checks"].(map[string]interface{})
	if !ok {
		t.Fatal("expected checks to be a map")
	}
	if checks["store"] != "ok" {
		t.Errorf("checks[store] = %v, want ok", checks["store"])
	}
}

func TestReadyz_Degraded(t *testing.T) {
	env := newTestEnv(t, envOptions{ready: []ReadyCheck{
		{Name: "store", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	}})

	rr := env.do(t, "GET", "/readyz", nil)
	assertStatus(t, rr, http.StatusServiceUnavailable)

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["status"] != "degraded" {
		t.Errorf("status = %q, want %q", resp["status"], "degraded")
	}
	checks := resp["checks"].(map[string]interface{})
	if checks["redis"] != "error: connection refused" {
		t.Errorf("checks[redis] = %v", checks["redis"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.do(t, "GET", "/crm-api/v1", nil)

	rr := env.do(t, "GET", "/metrics", nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "leadkit_gateway_requests_total") {
		t.Error("expected gateway request counter in /metrics output")
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, "GET", "/openapi.json", nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var doc map[string]interface{}
	decodeJSON(t, rr, &doc)
	if doc["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v, want 3.1.0", doc["openapi"])
	}
}

// ---------------------------------------------------------------------------
// Gateway mounting
// ---------------------------------------------------------------------------

func TestGatewayMounted(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, "GET", "/crm-api/v1", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["name"] != "LeadKit CRM API" {
		t.Errorf("name = %v", resp["name"])
	}

	rr = env.do(t, "GET", "/crm-api/v1/contacts", nil)
	assertStatus(t, rr, http.StatusUnauthorized)
	assertContentType(t, rr, "application/problem+json")
}

func TestGatewayRequestsAreAudited(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, "GET", "/crm-api/v1/contacts", map[string]string{"X-Request-ID": "audit-me"})
	assertStatus(t, rr, http.StatusUnauthorized)

	if err := env.audit.Close(context.Background()); err != nil {
		t.Fatalf("audit.Close: %v", err)
	}
	logs, err := env.store.ListRequestLogs(context.Background(), store.RequestLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListRequestLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d audit rows, want 1", len(logs))
	}
	if logs[0].RequestID != "audit-me" || logs[0].Status != http.StatusUnauthorized {
		t.Errorf("audit row = %+v", logs[0])
	}
}

func TestIPRateLimit(t *testing.T) {
	env := newTestEnv(t, envOptions{ipLimit: 2})

	for i := 0; i < 2; i++ {
		assertStatus(t, env.do(t, "GET", "/crm-api/v1", nil), http.StatusOK)
	}
	rr := env.do(t, "GET", "/crm-api/v1", nil)
	assertStatus(t, rr, http.StatusTooManyRequests)
	assertContentType(t, rr, "application/problem+json")

	// Operational endpoints sit outside the guard.
	assertStatus(t, env.do(t, "GET", "/healthz", nil), http.StatusOK)
}

func TestIPRateLimit_ThrottledRequestsAreAudited(t *testing.T) {
	env := newTestEnv(t, envOptions{ipLimit: 2})

	const requests = 4
	for i := 0; i < requests; i++ {
		env.do(t, "GET", "/crm-api/v1/contacts", nil)
	}

	if err := env.audit.Close(context.Background()); err != nil {
		t.Fatalf("audit.Close: %v", err)
	}
	logs, err := env.store.ListRequestLogs(context.Background(), store.RequestLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListRequestLogs: %v", err)
	}
	if len(logs) != requests {
		t.Fatalf("got %d audit rows, want %d", len(logs), requests)
	}
	throttled := 0
	for _, l := range logs {
		if l.Status == http.StatusTooManyRequests {
			throttled++
		}
	}
	if throttled != 2 {
		t.Errorf("throttled rows = %d, want 2", throttled)
	}
}

func TestUntrustedProxyHeadersIgnored(t *testing.T) {
	for _, tc := range []struct {
		name      string
		untrusted bool
		want      string
	}{
		{"trusted", false, "203.0.113.5"},
		{"untrusted", true, "192.0.2.1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{untrustedProxy: tc.untrusted})
			env.do(t, "GET", "/crm-api/v1/contacts", map[string]string{"X-Forwarded-For": "203.0.113.5"})

			if err := env.audit.Close(context.Background()); err != nil {
				t.Fatalf("audit.Close: %v", err)
			}
			logs, err := env.store.ListRequestLogs(context.Background(), store.RequestLogFilter{Limit: 10})
			if err != nil {
				t.Fatalf("ListRequestLogs: %v", err)
			}
			if len(logs) != 1 {
				t.Fatalf("got %d audit rows, want 1", len(logs))
			}
			if logs[0].ClientIP != tc.want {
				t.Errorf("client_ip = %q, want %q", logs[0].ClientIP, tc.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Admin API
// ---------------------------------------------------------------------------

func TestAdmin_DisabledWithoutSecret(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, "GET", "/admin/v1/organizations", nil)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestAdmin_RequiresToken(t *testing.T) {
	env := newTestEnv(t, envOptions{adminSecret: testAdminSecret})

	assertStatus(t, env.do(t, "GET", "/admin/v1/organizations", nil), http.StatusUnauthorized)
	assertStatus(t, env.doBearer(t, "GET", "/admin/v1/organizations", "not-a-jwt"), http.StatusUnauthorized)

	other := service.NewAdminTokens("some-other-secret")
	forged, err := other.Issue("mallory", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	assertStatus(t, env.doBearer(t, "GET", "/admin/v1/organizations", forged), http.StatusUnauthorized)
}

func TestAdmin_ListOrganizations(t *testing.T) {
	env := newTestEnv(t, envOptions{adminSecret: testAdminSecret})
	for i := 0; i < 2; i++ {
		org := &model.Organization{Name: fmt.Sprintf("Org %d", i)}
		if err := env.store.CreateOrganization(context.Background(), org); err != nil {
			t.Fatalf("CreateOrganization: %v", err)
		}
	}

	token, err := env.tokens.Issue("ops", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rr := env.doBearer(t, "GET", "/admin/v1/organizations", token)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Data []model.Organization `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Data) != 2 {
		t.Errorf("got %d organizations, want 2", len(resp.Data))
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestServe_ShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
