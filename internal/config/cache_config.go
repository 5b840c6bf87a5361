package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	defaultStaleTime = 30 * time.Second
	defaultKeepAlive = 5 * time.Minute
)

// builtinStaleTimes lists resources whose data changes rarely enough to
// be served from cache for longer than the default.
var builtinStaleTimes = map[string]time.Duration{
	"config": 30 * time.Minute,
}

type Cache struct{}

var _ CacheConfig = Cache{}

func (Cache) GetDefaultStaleTime() time.Duration {
	policy, ok := loadConfiguredPolicy()
	if ok && policy.DefaultStaleTime > 0 {
		return policy.DefaultStaleTime
	}
	return defaultStaleTime
}

func (Cache) GetDefaultKeepAlive() time.Duration {
	policy, ok := loadConfiguredPolicy()
	if ok && policy.DefaultKeepAlive > 0 {
		return policy.DefaultKeepAlive
	}
	return defaultKeepAlive
}

// GetStaleTimeOverrides returns per-resource stale windows: the built-in
// reference data entries merged with any from CACHE_POLICY_FILE.
func (Cache) GetStaleTimeOverrides() map[string]time.Duration {
	overrides := make(map[string]time.Duration, len(builtinStaleTimes))
	for resource, d := range builtinStaleTimes {
		overrides[resource] = d
	}
	if policy, ok := loadConfiguredPolicy(); ok {
		for resource, d := range policy.StaleTimes {
			overrides[resource] = d
		}
	}
	return overrides
}

// CachePolicy is the parsed form of a cache policy file.
type CachePolicy struct {
	DefaultStaleTime time.Duration
	DefaultKeepAlive time.Duration
	StaleTimes       map[string]time.Duration
}

type cachePolicyFile struct {
	DefaultStaleTime string            `yaml:"defaultStaleTime"`
	DefaultKeepAlive string            `yaml:"defaultKeepAlive"`
	StaleTimes       map[string]string `yaml:"staleTimes"`
}

// LoadCachePolicy reads a YAML cache policy file. Durations use Go syntax
// ("30s", "15m").
//
//	defaultStaleTime: 30s
//	defaultKeepAlive: 5m
//	staleTimes:
//	  config: 1h
//	  reports: 2m
func LoadCachePolicy(path string) (*CachePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config LoadCachePolicy] read %s: %w", path, err)
	}

	var raw cachePolicyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("[config LoadCachePolicy] parse %s: %w", path, err)
	}

	policy := &CachePolicy{StaleTimes: make(map[string]time.Duration, len(raw.StaleTimes))}
	if policy.DefaultStaleTime, err = parseOptionalDuration(raw.DefaultStaleTime); err != nil {
		return nil, fmt.Errorf("[config LoadCachePolicy] defaultStaleTime: %w", err)
	}
	if policy.DefaultKeepAlive, err = parseOptionalDuration(raw.DefaultKeepAlive); err != nil {
		return nil, fmt.Errorf("[config LoadCachePolicy] defaultKeepAlive: %w", err)
	}
	for resource, value := range raw.StaleTimes {
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("[config LoadCachePolicy] staleTimes.%s: %w", resource, err)
		}
		policy.StaleTimes[resource] = d
	}
	return policy, nil
}

func parseOptionalDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

func loadConfiguredPolicy() (*CachePolicy, bool) {
	path := GetEnv(cachePolicyFileVar, "")
	if path == "" {
		return nil, false
	}
	policy, err := LoadCachePolicy(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Ignoring cache policy file")
		return nil, false
	}
	return policy, true
}
