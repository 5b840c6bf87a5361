package activity

import (
	"time"

	"github.com/jrsteele09/go-agency-admin/internal/config"
)

// State is the session state of one tab.
type State int

const (
	Unauthenticated State = iota
	Active
	RefreshPending
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Active:
		return "active"
	case RefreshPending:
		return "refresh-pending"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// loggedIn reports whether s is a state in which timers run.
func (s State) loggedIn() bool {
	return s == Active || s == RefreshPending
}

// Options are the monitor's timings.
type Options struct {
	InactivityTimeout    time.Duration // idle time before a forced logout
	RefreshThreshold     time.Duration // refresh when the token expires sooner than this
	RefreshCheckInterval time.Duration // minimum gap between refresh checks
	ActivityThrottle     time.Duration // minimum gap between recorded activities
}

func OptionsFromConfig(cfg config.SessionConfig) Options {
	return Options{
		InactivityTimeout:    cfg.GetInactivityTimeout(),
		RefreshThreshold:     cfg.GetRefreshThreshold(),
		RefreshCheckInterval: cfg.GetRefreshCheckInterval(),
		ActivityThrottle:     cfg.GetActivityThrottle(),
	}
}
