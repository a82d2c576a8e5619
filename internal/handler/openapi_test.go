package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadkit/gateway/internal/model"
	"github.com/leadkit/gateway/internal/openapi"
)

func TestDocument(t *testing.T) {
	doc, err := Document("crm-api", "test")
	require.NoError(t, err)

	assert.Equal(t, "3.1.0", doc.OpenAPI)
	assert.Equal(t, "test", doc.Info.Version)
	assert.Equal(t, []string{"companies", "contacts", "deals", "pipelines", "tags", "tasks"}, openapi.Tags(doc))

	for path := range doc.Paths.Map() {
		assert.True(t, strings.HasPrefix(path, "/crm-api/v1/"), path)
	}

	contacts := doc.Paths.Value("/crm-api/v1/contacts")
	require.NotNil(t, contacts)
	assert.NotNil(t, contacts.Get)
	assert.NotNil(t, contacts.Post)
	assert.Nil(t, contacts.Delete)

	input := doc.Components.Schemas["ContactInput"].Value
	assert.Equal(t, []string{"email"}, input.Required)
	status := input.Properties["status"].Value
	assert.Equal(t, []any{"lead", "customer", "churned"}, status.Enum)
}

func TestDocument_NoFunctionName(t *testing.T) {
	doc, err := Document("", "test")
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Value("/v1/tasks/{id}/complete"))
}

// Every documented operation must reach a handler: no route-level 404 or 405.
func TestDocument_MatchesRoutes(t *testing.T) {
	env := newTestEnv(t)
	token := env.key(t, env.orgA, model.FullPermissions())

	for _, d := range documentedOps() {
		path := strings.NewReplacer("{id}", uuid.NewString(), "{tagId}", uuid.NewString()).Replace(d.path)
		var body any
		if d.op.Body != "" {
			body = map[string]any{}
		}
		rr := env.do(t, d.method, path, token, body)
		if rr.Code == http.StatusMethodNotAllowed {
			t.Errorf("%s %s: method not allowed", d.method, d.path)
			continue
		}
		if rr.Code == http.StatusNotFound && detailOf(t, rr) == "Endpoint not found" {
			t.Errorf("%s %s: endpoint not found", d.method, d.path)
		}
	}
}

func TestOpenAPIHandler(t *testing.T) {
	h := NewOpenAPIHandler("crm-api", "1.0.0")

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
		assertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var doc map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
		assert.Equal(t, "3.1.0", doc["openapi"])
		assert.Contains(t, doc["paths"], "/crm-api/v1/deals/{id}/stage")
	}
}
