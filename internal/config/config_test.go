package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-agency-admin/internal/config"
	"github.com/stretchr/testify/require"
)

func TestSession_GetInactivityTimeout(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset defaults to 120 minutes", "", 120 * time.Minute},
		{"configured minutes", "45", 45 * time.Minute},
		{"invalid falls back", "soon", 120 * time.Minute},
		{"zero falls back", "0", 120 * time.Minute},
		{"negative falls back", "-5", 120 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INACTIVITY_TIMEOUT_MINUTES", tt.value)
			require.Equal(t, tt.want, config.Session{}.GetInactivityTimeout())
		})
	}
}

func TestSession_GetAuthTimeout(t *testing.T) {
	t.Setenv("AUTH_TIMEOUT_SECONDS", "")
	require.Equal(t, 15*time.Second, config.Session{}.GetAuthTimeout())
	t.Setenv("AUTH_TIMEOUT_SECONDS", "4")
	require.Equal(t, 4*time.Second, config.Session{}.GetAuthTimeout())
	t.Setenv("AUTH_TIMEOUT_SECONDS", "-1")
	require.Equal(t, 15*time.Second, config.Session{}.GetAuthTimeout())
}

func TestEnvVars(t *testing.T) {
	t.Run("port gets a colon prefix", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		require.Equal(t, ":9090", config.EnvVars{}.GetPort())
	})

	t.Run("api base url trailing slash trimmed", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "https://api.agency.example/")
		require.Equal(t, "https://api.agency.example", config.EnvVars{}.GetAPIBaseURL())
	})

	t.Run("refresh mode", func(t *testing.T) {
		t.Setenv("REFRESH_MODE", "OAuth2")
		require.Equal(t, config.RefreshModeOAuth2, config.EnvVars{}.GetRefreshMode())

		t.Setenv("REFRESH_MODE", "anything")
		require.Equal(t, config.RefreshModeCookie, config.EnvVars{}.GetRefreshMode())
	})
}

func TestCachePolicy(t *testing.T) {
	dir := t.TempDir()

	t.Run("built-in overrides without a policy file", func(t *testing.T) {
		t.Setenv("CACHE_POLICY_FILE", "")
		c := config.Cache{}
		require.Equal(t, 30*time.Second, c.GetDefaultStaleTime())
		require.Equal(t, 5*time.Minute, c.GetDefaultKeepAlive())
		require.Equal(t, 30*time.Minute, c.GetStaleTimeOverrides()["config"])
	})

	t.Run("policy file merges over built-ins", func(t *testing.T) {
		path := filepath.Join(dir, "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
defaultStaleTime: 10s
defaultKeepAlive: 1m
staleTimes:
  config: 1h
  reports: 2m
`), 0o600))
		t.Setenv("CACHE_POLICY_FILE", path)

		c := config.Cache{}
		require.Equal(t, 10*time.Second, c.GetDefaultStaleTime())
		require.Equal(t, time.Minute, c.GetDefaultKeepAlive())
		overrides := c.GetStaleTimeOverrides()
		require.Equal(t, time.Hour, overrides["config"])
		require.Equal(t, 2*time.Minute, overrides["reports"])
	})

	t.Run("invalid duration is rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("staleTimes:\n  config: forever\n"), 0o600))

		_, err := config.LoadCachePolicy(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "staleTimes.config")
	})

	t.Run("unreadable policy file falls back to defaults", func(t *testing.T) {
		t.Setenv("CACHE_POLICY_FILE", filepath.Join(dir, "missing.yaml"))
		require.Equal(t, 30*time.Second, config.Cache{}.GetDefaultStaleTime())
	})
}
