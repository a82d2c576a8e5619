package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadkit/gateway/internal/config"
	"github.com/leadkit/gateway/internal/model"
)

func TestParseStages_Default(t *testing.T) {
	stages, err := parseStages(defaultStages)
	require.NoError(t, err)
	require.Len(t, stages, 6)

	assert.Equal(t, "Lead", stages[0].Name)
	assert.Equal(t, 10, stages[0].Probability)
	assert.Equal(t, 3, stages[3].Position)

	won := stages[4]
	assert.True(t, won.IsWon)
	assert.Equal(t, 100, won.Probability)
	assert.Equal(t, model.DealStatusWon, won.DealStatus())

	lost := stages[5]
	assert.True(t, lost.IsLost)
	assert.Equal(t, 0, lost.Probability)
}

func TestParseStages_Whitespace(t *testing.T) {
	stages, err := parseStages(" Open : 20 , Closed:WON ,")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "Open", stages[0].Name)
	assert.Equal(t, 20, stages[0].Probability)
	assert.True(t, stages[1].IsWon)
}

func TestParseStages_Invalid(t *testing.T) {
	for _, in := range []string{"", "Lead", ":10", "Lead:abc", "Lead:101", "Lead:-1"} {
		if _, err := parseStages(in); err == nil {
			t.Errorf("parseStages(%q) expected error", in)
		}
	}
}

func TestPermissionPreset(t *testing.T) {
	full, err := permissionPreset("full")
	require.NoError(t, err)
	assert.Equal(t, model.FullPermissions(), full)

	ro, err := permissionPreset("read-only")
	require.NoError(t, err)
	assert.Equal(t, model.ReadOnlyPermissions(), ro)

	none, err := permissionPreset("none")
	require.NoError(t, err)
	assert.Equal(t, model.Permissions{}, none)

	_, err = permissionPreset("root")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.AdminSecret = "s3cret"
	cfg.RateLimit.Redis.Password = "hunter2"
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "postgres://crm:pw@db/crm"

	out := redact(*cfg)
	assert.Equal(t, redacted, out.Auth.AdminSecret)
	assert.Equal(t, redacted, out.RateLimit.Redis.Password)
	assert.Equal(t, redacted, out.Database.DSN)

	// The original is untouched.
	assert.Equal(t, "s3cret", cfg.Auth.AdminSecret)
}

func TestRedact_KeepsSQLitePath(t *testing.T) {
	out := redact(*config.Default())
	assert.Equal(t, "leadkit.db", out.Database.DSN)
	assert.Empty(t, out.Auth.AdminSecret)
}

func TestVersionCmd_JSON(t *testing.T) {
	cmd := newVersionCmd("1.2.3", "abc123", "2026-01-01")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())

	var info versionInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, "v1", info.APIVersion)
}

func TestConfigInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadkit.yaml")

	cmd := newConfigInitCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--path", path})
	require.NoError(t, cmd.Execute())
	assert.True(t, strings.Contains(buf.String(), path))

	again := newConfigInitCmd()
	again.SetOut(&bytes.Buffer{})
	again.SetErr(&bytes.Buffer{})
	again.SetArgs([]string{"--path", path})
	assert.Error(t, again.Execute())
}

func TestVersionString(t *testing.T) {
	defer func(v string) { appVersion = v }(appVersion)

	tests := map[string]string{"": "dev", "dev": "dev", "1.0.0": "v1.0.0", "v2.1.0": "v2.1.0"}
	for in, want := range tests {
		appVersion = in
		if got := versionString(); got != want {
			t.Errorf("versionString() with %q = %q, want %q", in, got, want)
		}
	}
}
