package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
	CacheConfig
	TokenConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetAPIBaseURL() string
	GetRedisURL() string
	GetRedisPassword() string
	GetRefreshMode() RefreshMode
	GetOAuthClientID() string
	GetCachePolicyFile() string
	GetJWTSecret() string
	GetAdminEmail() string
	GetAdminPassword() string
}

// SessionConfig holds the timings of the session activity monitor.
type SessionConfig interface {
	GetInactivityTimeout() time.Duration
	GetRefreshThreshold() time.Duration
	GetRefreshCheckInterval() time.Duration
	GetActivityThrottle() time.Duration
	GetAuthTimeout() time.Duration
}

// CacheConfig holds the freshness and retention defaults of the query cache.
type CacheConfig interface {
	GetDefaultStaleTime() time.Duration
	GetDefaultKeepAlive() time.Duration
	GetStaleTimeOverrides() map[string]time.Duration
}

// TokenConfig is used by the mock backend when issuing tokens.
type TokenConfig interface {
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
}

type mainConfig struct {
	EnvVars
	Session
	Cache
	Tokens
}

func New() Config {
	return mainConfig{}
}
