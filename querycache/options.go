package querycache

import (
	"time"

	"github.com/jrsteele09/go-agency-admin/internal/config"
)

// Options control how long an entry is served without refetching and how
// long it is retained once nothing uses it.
type Options struct {
	StaleAfter time.Duration
	KeepAlive  time.Duration
}

// PolicyFunc supplies default options for a key.
type PolicyFunc func(key Key) Options

// merge fills zero fields of o from defaults.
func (o Options) merge(defaults Options) Options {
	if o.StaleAfter <= 0 {
		o.StaleAfter = defaults.StaleAfter
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = defaults.KeepAlive
	}
	return o
}

// PolicyFromConfig applies the configured stale window of the key's
// resource, falling back to the default.
func PolicyFromConfig(cfg config.CacheConfig) PolicyFunc {
	staleAfter := cfg.GetDefaultStaleTime()
	keepAlive := cfg.GetDefaultKeepAlive()
	overrides := cfg.GetStaleTimeOverrides()

	return func(key Key) Options {
		opts := Options{StaleAfter: staleAfter, KeepAlive: keepAlive}
		if d, ok := overrides[key.Resource()]; ok {
			opts.StaleAfter = d
		}
		return opts
	}
}

// StaticPolicy applies opts to every key.
func StaticPolicy(opts Options) PolicyFunc {
	return func(Key) Options { return opts }
}
