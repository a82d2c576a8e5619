package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadkit/gateway/internal/audit"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/ratelimit"
	"github.com/leadkit/gateway/internal/service"
	"github.com/leadkit/gateway/internal/store"
)

type harness struct {
	store *store.Store
	gw    *Gateway
	audit *audit.Logger
	org   *model.Organization
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

func newHarnessWith(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	org := &model.Organization{Name: "Acme"}
	require.NoError(t, s.CreateOrganization(context.Background(), org))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(ratelimit.NewStoreCounter(s), logger)
	auditLog := audit.New(s, logger, 1024)

	cfg := Config{
		FunctionName: "crm-api",
		CORS:         CORSPolicy{Origins: []string{"https://app.leadkit.dev"}},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	gw := New(cfg, service.NewAuthenticator(s, limiter, logger), auditLog, logger)

	gw.Register("contacts", ResourceFunc(func(w http.ResponseWriter, req *Request) error {
		if !req.Can(model.EntityContacts, model.ActionRead) {
			return problem.Forbidden("API key lacks permission to read contacts")
		}
		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(map[string]string{
			"organization_id": req.OrganizationID(),
			"id":              req.Route.ID,
		})
	}))
	gw.Register("boom", ResourceFunc(func(w http.ResponseWriter, req *Request) error {
		panic("kaboom")
	}))
	gw.Register("broken", ResourceFunc(func(w http.ResponseWriter, req *Request) error {
		return errors.New("database on fire")
	}))

	return &harness{store: s, gw: gw, audit: auditLog, org: org}
}

func (h *harness) issue(t *testing.T, mutate func(*model.APIKey)) string {
	t.Helper()
	key := &model.APIKey{
		OrganizationID:     h.org.ID,
		Name:               "test",
		Permissions:        model.ReadOnlyPermissions(),
		RateLimitPerMinute: 100,
		RateLimitPerDay:    1000,
	}
	if mutate != nil {
		mutate(key)
	}
	raw, err := service.IssueAPIKey(context.Background(), h.store, key, model.KeyEnvLive)
	require.NoError(t, err)
	return raw
}

func (h *harness) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.gw.ServeHTTP(rr, req)
	return rr
}

// auditCount flushes the audit logger and returns the number of persisted
// entries.
func (h *harness) auditCount(t *testing.T) int64 {
	t.Helper()
	require.NoError(t, h.audit.Close(context.Background()))
	n, err := h.store.CountRequestLogs(context.Background())
	require.NoError(t, err)
	return n
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) problem.Details {
	t.Helper()
	assert.Equal(t, problem.ContentType, rr.Header().Get("Content-Type"))
	var p problem.Details
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, rr.Code, p.Status)
	return p
}

func TestDiscoveryIsPublic(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodGet, "/crm-api/v1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var doc struct {
		Version   string `json:"version"`
		Resources []struct {
			Name string `json:"name"`
			Path string `json:"path"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "v1", doc.Version)
	require.Len(t, doc.Resources, 3)
	assert.Equal(t, "boom", doc.Resources[0].Name)
	assert.Equal(t, "/crm-api/v1/contacts", doc.Resources[2].Path)
}

func TestInvalidVersion(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodGet, "/crm-api/v2/contacts", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	p := decodeProblem(t, rr)
	assert.Contains(t, p.Detail, "Invalid API version")
}

func TestMissingAndMalformedCredentials(t *testing.T) {
	h := newHarness(t)

	for _, token := range []string{"", "not-a-key", "ks_prod_abcdefghijklmnopqrst", "ks_live_short"} {
		rr := h.do(http.MethodGet, "/crm-api/v1/contacts", token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, token)
		p := decodeProblem(t, rr)
		assert.Equal(t, service.DetailMissingKey, p.Detail)
	}
}

func TestUnknownPrefixAndWrongSecretLookIdentical(t *testing.T) {
	h := newHarness(t)
	raw := h.issue(t, nil)

	wrongSecret := raw[:len(raw)-1] + "X"
	unknownPrefix := "ks_live_ZZZZZZZZ" + raw[model.KeyPrefixLength:]

	a := h.do(http.MethodGet, "/crm-api/v1/contacts", wrongSecret)
	b := h.do(http.MethodGet, "/crm-api/v1/contacts", unknownPrefix)

	assert.Equal(t, http.StatusUnauthorized, a.Code)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, decodeProblem(t, a).Detail, decodeProblem(t, b).Detail)
}

func TestInactiveAndExpiredKeysRejected(t *testing.T) {
	h := newHarness(t)
	past := time.Now().Add(-time.Hour)

	inactive := h.issue(t, nil)
	keys, err := h.store.ListAPIKeys(context.Background(), h.org.ID)
	require.NoError(t, err)
	require.NoError(t, h.store.RevokeAPIKey(context.Background(), keys[0].ID))
	expired := h.issue(t, func(k *model.APIKey) { k.ExpiresAt = &past })

	for _, token := range []string{inactive, expired} {
		rr := h.do(http.MethodGet, "/crm-api/v1/contacts", token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
}

func TestSuccessfulCallScopesTenantAndSetsHeaders(t *testing.T) {
	h := newHarness(t)
	raw := h.issue(t, nil)

	rr := h.do(http.MethodGet, "/crm-api/v1/contacts/c-42", raw)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, h.org.ID, body["organization_id"])
	assert.Equal(t, "c-42", body["id"])
	assert.Equal(t, "100", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rr.Header().Get("X-RateLimit-Remaining"))
}

func TestAuthenticationPrecedesUnknownResource(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodGet, "/crm-api/v1/invoices", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(http.MethodGet, "/crm-api/v1/invoices", h.issue(t, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Endpoint not found", decodeProblem(t, rr).Detail)

	rr = h.do(http.MethodGet, "/crm-api/v1/contacts/a/b/c/d", h.issue(t, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPermissionDenied(t *testing.T) {
	h := newHarness(t)
	raw := h.issue(t, func(k *model.APIKey) { k.Permissions = model.Permissions{} })

	rr := h.do(http.MethodGet, "/crm-api/v1/contacts", raw)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "API key lacks permission to read contacts", decodeProblem(t, rr).Detail)
}

func TestConcurrentRequestsRespectMinuteLimit(t *testing.T) {
	h := newHarness(t)
	const limit = 5
	raw := h.issue(t, func(k *model.APIKey) { k.RateLimitPerMinute = limit })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		codes   = map[int]int{}
		retryOK = true
	)
	for i := 0; i < limit+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := h.do(http.MethodGet, "/crm-api/v1/contacts", raw)
			mu.Lock()
			defer mu.Unlock()
			codes[rr.Code]++
			if rr.Code == http.StatusTooManyRequests && rr.Header().Get("Retry-After") == "" {
				retryOK = false
			}
		}()
	}
	wg.Wait()

	// A minute rollover mid-test can admit one extra request.
	assert.LessOrEqual(t, codes[http.StatusOK], limit+1)
	assert.GreaterOrEqual(t, codes[http.StatusOK], limit)
	assert.Equal(t, limit+1, codes[http.StatusOK]+codes[http.StatusTooManyRequests])
	assert.True(t, retryOK, "429 responses carry Retry-After")
}

func TestPanicBecomesInternalError(t *testing.T) {
	h := newHarness(t)
	raw := h.issue(t, nil)

	rr := h.do(http.MethodGet, "/crm-api/v1/boom", raw)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, problem.GenericDetail, p.Detail)
	assert.NotContains(t, rr.Body.String(), "kaboom")
}

func TestInternalErrorHidesCauseUnlessDebug(t *testing.T) {
	h := newHarness(t)
	raw := h.issue(t, nil)

	rr := h.do(http.MethodGet, "/crm-api/v1/broken", raw)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "database on fire")

	h.gw.cfg.Debug = true
	rr = h.do(http.MethodGet, "/crm-api/v1/broken", raw)
	assert.Contains(t, rr.Body.String(), "database on fire")
}

func TestPreflight(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/crm-api/v1/contacts", nil)
	req.Header.Set("Origin", "https://app.leadkit.dev")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
	rr := httptest.NewRecorder()
	h.gw.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.leadkit.dev", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "x-client-info")
	assert.Empty(t, rr.Body.String())
}

func TestDisallowedOriginRejected(t *testing.T) {
	h := newHarness(t)
	raw := h.issue(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/crm-api/v1/contacts", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Authorization", "Bearer "+raw)
	rr := httptest.NewRecorder()
	h.gw.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestEveryRequestIsAudited(t *testing.T) {
	h := newHarness(t)
	raw := h.issue(t, nil)

	h.do(http.MethodGet, "/crm-api/v1/contacts", "")
	h.do(http.MethodGet, "/crm-api/v1/contacts", raw)
	h.do(http.MethodGet, "/crm-api/v2/contacts", raw)
	h.do(http.MethodGet, "/crm-api/v1/invoices", raw)
	h.do(http.MethodGet, "/crm-api/v1/boom", raw)
	h.do(http.MethodOptions, "/crm-api/v1/contacts", "")

	assert.Equal(t, int64(6), h.auditCount(t))

	logs, err := h.store.ListRequestLogs(context.Background(), store.RequestLogFilter{Limit: 10})
	require.NoError(t, err)
	var unauthenticated int
	for _, entry := range logs {
		if entry.Status == http.StatusUnauthorized {
			unauthenticated++
			assert.Nil(t, entry.OrganizationID)
			require.NotNil(t, entry.Error)
		}
	}
	assert.Equal(t, 1, unauthenticated)
}

func TestAddressGuardRejectionsAreAudited(t *testing.T) {
	h := newHarnessWith(t, func(c *Config) { c.IPRateLimit = 2 })
	raw := h.issue(t, nil)

	var codes []int
	for i := 0; i < 4; i++ {
		codes = append(codes, h.do(http.MethodGet, "/crm-api/v1/contacts", raw).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, int64(4), h.auditCount(t))

	logs, err := h.store.ListRequestLogs(context.Background(), store.RequestLogFilter{Limit: 10})
	require.NoError(t, err)
	var throttled int
	for _, entry := range logs {
		if entry.Status == http.StatusTooManyRequests {
			throttled++
			assert.Nil(t, entry.APIKeyID)
		}
	}
	assert.Equal(t, 2, throttled)
}
