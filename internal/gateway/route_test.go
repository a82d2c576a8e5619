package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoute(t *testing.T) {
	tests := []struct {
		path string
		want Route
	}{
		{"/crm-api/v1/contacts", Route{Resource: "contacts"}},
		{"/v1/contacts", Route{Resource: "contacts"}},
		{"/v1/contacts/", Route{Resource: "contacts"}},
		{"/crm-api/v1/contacts/c1", Route{Resource: "contacts", ID: "c1"}},
		{"/crm-api/v1/contacts/c1/tags", Route{Resource: "contacts", ID: "c1", Sub: "tags"}},
		{"/crm-api/v1/contacts/c1/tags/t9", Route{Resource: "contacts", ID: "c1", Sub: "tags", SubID: "t9"}},
		{"/crm-api/v1", Route{}},
		{"/v1/", Route{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParseRoute(tt.path, "crm-api")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRouteInvalidVersion(t *testing.T) {
	for _, path := range []string{"/crm-api/v2/contacts", "/contacts", "/", "", "/other-fn/v1/contacts"} {
		_, err := ParseRoute(path, "crm-api")
		assert.ErrorIs(t, err, errInvalidVersion, path)
	}
}

func TestParseRouteOnlyStripsConfiguredFunction(t *testing.T) {
	got, err := ParseRoute("/v1/v1/contacts", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Resource)
}

func TestParseRouteTooDeep(t *testing.T) {
	got, err := ParseRoute("/v1/contacts/a/b/c/d", "")
	assert.ErrorIs(t, err, errTooDeep)
	assert.Equal(t, "contacts", got.Resource)
}

func TestCORSPolicyAllowed(t *testing.T) {
	p := CORSPolicy{
		Origins:         []string{"https://app.leadkit.dev"},
		SubdomainSuffix: "leadkit.app",
	}

	assert.True(t, p.Allowed(""))
	assert.True(t, p.Allowed("https://app.leadkit.dev"))
	assert.True(t, p.Allowed("https://acme.leadkit.app"))
	assert.True(t, p.Allowed("https://a.b.leadkit.app"))
	assert.False(t, p.Allowed("https://leadkit.app"))
	assert.False(t, p.Allowed("https://evilleadkit.app"))
	assert.False(t, p.Allowed("https://evil.example"))
	assert.False(t, p.Allowed("ftp://acme.leadkit.app"))

	assert.True(t, CORSPolicy{Origins: []string{"*"}}.Allowed("https://anything.example"))
	assert.False(t, CORSPolicy{}.Allowed("https://anything.example"))
}
