package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/ratelimit"
	"github.com/leadkit/gateway/internal/service"
	"github.com/leadkit/gateway/internal/store"
)

type nopAuditor struct{}

func (nopAuditor) Record(service.AuthResult, *http.Request, int, time.Duration, string, error) {}

// testEnv holds a gateway with every CRM resource mounted over an in-memory
// store, plus two tenants.
type testEnv struct {
	store *store.Store
	gw    *gateway.Gateway
	orgA  *model.Organization
	orgB  *model.Organization
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("store.NewMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	orgA := &model.Organization{Name: "Acme"}
	orgB := &model.Organization{Name: "Globex"}
	require.NoError(t, s.CreateOrganization(ctx, orgA))
	require.NoError(t, s.CreateOrganization(ctx, orgB))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(ratelimit.NewStoreCounter(s), logger)
	gw := gateway.New(gateway.Config{FunctionName: "crm-api"},
		service.NewAuthenticator(s, limiter, logger), nopAuditor{}, logger)
	Register(gw, s)

	return &testEnv{store: s, gw: gw, orgA: orgA, orgB: orgB}
}

// key issues a credential for org with the given permissions.
func (e *testEnv) key(t *testing.T, org *model.Organization, perms model.Permissions) string {
	t.Helper()
	k := &model.APIKey{
		OrganizationID:     org.ID,
		Name:               "test",
		Permissions:        perms,
		RateLimitPerMinute: 1000,
		RateLimitPerDay:    100000,
	}
	raw, err := service.IssueAPIKey(context.Background(), e.store, k, model.KeyEnvTest)
	if err != nil {
		t.Fatalf("IssueAPIKey: %v", err)
	}
	return raw
}

func (e *testEnv) pipeline(t *testing.T, org *model.Organization, isDefault bool) (*model.Pipeline, []model.Stage) {
	t.Helper()
	p := &model.Pipeline{OrganizationID: org.ID, Name: "Sales", IsDefault: isDefault}
	stages := []model.Stage{
		{Name: "Qualified", Probability: 20},
		{Name: "Proposal", Probability: 60},
		{Name: "Won", Probability: 100, IsWon: true},
		{Name: "Lost", IsLost: true},
	}
	require.NoError(t, e.store.CreatePipeline(context.Background(), p, stages))
	return p, stages
}

// do executes a request against the gateway and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = toJSON(t, body)
	}
	req := httptest.NewRequest(method, "/crm-api/v1"+path, rd)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.gw.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	if s, ok := v.(string); ok {
		return bytes.NewBufferString(s)
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func detailOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var p problem.Details
	decodeJSON(t, rr, &p)
	return p.Detail
}

type contactEnvelope struct {
	Data    model.Contact `json:"data"`
	Created bool          `json:"created"`
}

type listEnvelope[T any] struct {
	Data []T            `json:"data"`
	Meta model.PageMeta `json:"meta"`
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}
