package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	portEnvVar            = "PORT"
	appNameVar            = "APP_NAME"
	apiBaseURLVar         = "API_BASE_URL"
	redisURLVar           = "REDIS_URL"
	redisPasswordVar      = "REDIS_PASSWORD"
	refreshModeVar        = "REFRESH_MODE"
	oauthClientIDVar      = "OAUTH_CLIENT_ID"
	cachePolicyFileVar    = "CACHE_POLICY_FILE"
	jwtSecretVar          = "JWT_SECRET"
	adminEmailVar         = "ADMIN_EMAIL"
	adminPasswordVar      = "ADMIN_PASSWORD"
	inactivityTimeoutVar  = "INACTIVITY_TIMEOUT_MINUTES"
	authTimeoutVar        = "AUTH_TIMEOUT_SECONDS"
	defaultAdminEmail     = "admin@agency.local"
	defaultAdminPassword  = "Admin1234"
	defaultOAuthClientID  = "agency-admin"
	defaultDevelopmentJWT = "dev-only-secret-change-me"
)

// RefreshMode selects how the client renews its access token.
type RefreshMode string

const (
	// RefreshModeCookie posts to /auth/refresh with the refresh cookie.
	RefreshModeCookie RefreshMode = "cookie"
	// RefreshModeOAuth2 uses the refresh_token grant on /oauth2/token.
	RefreshModeOAuth2 RefreshMode = "oauth2"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Agency Admin")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetAPIBaseURL returns the base URL of the agency REST API (e.g., "https://api.agency.example")
func (EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiBaseURLVar, "http://localhost:8080"), "/")
}

// GetRedisURL returns the address of the Redis server used as the shared
// session scope. Empty means the in-process store is used.
func (EnvVars) GetRedisURL() string {
	return GetEnv(redisURLVar, "")
}

func (EnvVars) GetRedisPassword() string {
	return GetEnv(redisPasswordVar, "")
}

func (EnvVars) GetRefreshMode() RefreshMode {
	switch RefreshMode(strings.ToLower(GetEnv(refreshModeVar, string(RefreshModeCookie)))) {
	case RefreshModeOAuth2:
		return RefreshModeOAuth2
	default:
		return RefreshModeCookie
	}
}

func (EnvVars) GetOAuthClientID() string {
	return GetEnv(oauthClientIDVar, defaultOAuthClientID)
}

func (EnvVars) GetCachePolicyFile() string {
	return GetEnv(cachePolicyFileVar, "")
}

func (EnvVars) GetJWTSecret() string {
	return GetEnv(jwtSecretVar, defaultDevelopmentJWT)
}

func (EnvVars) GetAdminEmail() string {
	return GetEnv(adminEmailVar, defaultAdminEmail)
}

func (EnvVars) GetAdminPassword() string {
	return GetEnv(adminPasswordVar, defaultAdminPassword)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
