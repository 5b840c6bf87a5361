package config

import (
	"strconv"
	"time"
)

const (
	defaultInactivityTimeout = 120 * time.Minute
	defaultAuthTimeout       = 15 * time.Second
)

type Session struct{}

var _ SessionConfig = Session{}

// GetInactivityTimeout reads INACTIVITY_TIMEOUT_MINUTES. Missing, invalid
// or non-positive values fall back to 120 minutes.
func (Session) GetInactivityTimeout() time.Duration {
	raw := GetEnv(inactivityTimeoutVar, "")
	if raw == "" {
		return defaultInactivityTimeout
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return defaultInactivityTimeout
	}
	return time.Duration(minutes) * time.Minute
}

func (Session) GetRefreshThreshold() time.Duration {
	return 30 * time.Minute
}

func (Session) GetRefreshCheckInterval() time.Duration {
	return 1 * time.Minute
}

func (Session) GetActivityThrottle() time.Duration {
	return 1 * time.Second
}

// GetAuthTimeout bounds each login, logout and refresh call, read from
// AUTH_TIMEOUT_SECONDS. Missing or non-positive values give 15 seconds.
func (Session) GetAuthTimeout() time.Duration {
	seconds, err := strconv.Atoi(GetEnv(authTimeoutVar, ""))
	if err != nil || seconds <= 0 {
		return defaultAuthTimeout
	}
	return time.Duration(seconds) * time.Second
}
