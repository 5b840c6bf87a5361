// Package querycache caches the results of API reads per query key.
//
// A read serves fresh data from the cache and otherwise fetches, sharing
// one fetch between concurrent readers of the same key. Mutations declare
// the keys they affect; those entries are marked stale and refetched for
// any active subscriber. Entries nobody uses are dropped after their
// keep-alive window.
package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-agency-admin/clock"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the data of one key.
type Fetcher func(ctx context.Context) (any, error)

type Cache struct {
	clock  clock.Clock
	policy PolicyFunc
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	key       Key
	opts      Options
	fetcher   Fetcher
	data      any
	hasData   bool
	fetchedAt time.Time

	gen         uint64 // bumped by every invalidation
	dataGen     uint64 // gen at which the stored data's fetch started
	invalidated bool

	subscribers map[*Subscription]struct{}
	gc          *clock.Timer
	gcGen       uint64
}

func (e *entry) fresh(now time.Time) bool {
	return e.hasData && !e.invalidated && now.Before(e.fetchedAt.Add(e.opts.StaleAfter))
}

func New(clk clock.Clock, policy PolicyFunc) *Cache {
	return &Cache{
		clock:   clk,
		policy:  policy,
		entries: make(map[string]*entry),
	}
}

// entryLocked returns the entry for key, creating it if needed. Non-zero
// fields of opts override the policy.
func (c *Cache) entryLocked(key Key, opts Options) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: key, subscribers: make(map[*Subscription]struct{})}
		e.opts = opts.merge(c.policy(key))
		c.entries[id] = e
	} else if opts != (Options{}) {
		e.opts = opts.merge(c.policy(key))
	}
	return e
}

// Read returns the data for key, fetching it when the cached copy is
// missing or stale. Readers of a key that is already being fetched wait
// for that fetch. The fetch is not cancelled by ctx; ctx only bounds how
// long this caller waits, and the result is still cached.
func (c *Cache) Read(ctx context.Context, key Key, fetch Fetcher, opts Options) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key, opts)
	e.fetcher = fetch
	if e.fresh(c.clock.Now()) {
		data := e.data
		if len(e.subscribers) == 0 {
			c.armGCLocked(e)
		}
		c.mu.Unlock()
		return data, nil
	}
	// The waiting caller is a consumer; keep-alive restarts once the fetch
	// settles.
	c.stopGCLocked(e)
	c.mu.Unlock()

	return c.fetch(ctx, key, fetch)
}

// Get is a typed Read.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.Read(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, Options{})
	if err != nil {
		return zero, err
	}
	typed, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("[querycache Get] %s holds %T, not %T", key, data, zero)
	}
	return typed, nil
}

func (c *Cache) fetch(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	flight := c.group.DoChan(key.String(), func() (any, error) {
		return c.run(context.WithoutCancel(ctx), key, fetch)
	})
	select {
	case result := <-flight:
		return result.Val, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) run(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	id := key.String()

	c.mu.Lock()
	e := c.entryLocked(key, Options{})
	startGen := e.gen
	c.mu.Unlock()

	log.Debug().Str("key", id).Msg("Fetching query")
	data, err := callFetcher(ctx, fetch)
	if err != nil {
		err = fmt.Errorf("[querycache Read] %s: %w", id, err)
	}

	c.mu.Lock()
	if current, ok := c.entries[id]; !ok || current != e {
		// Cleared or evicted while fetching; the result belongs to nobody.
		c.mu.Unlock()
		return data, err
	}
	subscribers := e.snapshotSubscribers()
	if err != nil {
		if len(e.subscribers) == 0 {
			c.armGCLocked(e)
		}
		c.mu.Unlock()
		publish(subscribers, Update{Key: key, Err: err})
		return nil, err
	}

	// A fetch that started before a newer stored one never overwrites it.
	if !e.hasData || startGen >= e.dataGen {
		e.data = data
		e.hasData = true
		e.fetchedAt = c.clock.Now()
		e.dataGen = startGen
		e.invalidated = startGen != e.gen
	}
	if len(e.subscribers) == 0 {
		c.armGCLocked(e)
	}
	c.mu.Unlock()

	publish(subscribers, Update{Key: key, Data: data})
	return data, nil
}

// callFetcher converts a panicking fetcher into an error so that every
// waiter gets a result.
func callFetcher(ctx context.Context, fetch Fetcher) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// armGCLocked schedules removal of e once its keep-alive window passes
// with no subscriber.
func (c *Cache) armGCLocked(e *entry) {
	e.gc.Stop()
	e.gcGen++
	gen := e.gcGen
	id := e.key.String()
	e.gc = c.clock.AfterFunc(e.opts.KeepAlive, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		current, ok := c.entries[id]
		if !ok || current != e || current.gcGen != gen || len(current.subscribers) > 0 {
			return
		}
		delete(c.entries, id)
		log.Debug().Str("key", id).Msg("Evicted unused query")
	})
}

func (c *Cache) stopGCLocked(e *entry) {
	e.gc.Stop()
	e.gc = nil
	e.gcGen++
}

// Invalidate marks every entry whose key starts with one of patterns as
// stale. Entries with subscribers are refetched in the background; the
// rest are refetched on their next read. It returns the number of entries
// marked.
func (c *Cache) Invalidate(patterns ...Key) int {
	type refetch struct {
		key   Key
		fetch Fetcher
	}
	var refetches []refetch

	c.mu.Lock()
	marked := 0
	for id, e := range c.entries {
		if !matchesAny(e.key, patterns) {
			continue
		}
		e.gen++
		e.invalidated = true
		// Readers after this point must not join a fetch that started
		// before it.
		c.group.Forget(id)
		marked++
		if len(e.subscribers) > 0 && e.fetcher != nil {
			refetches = append(refetches, refetch{key: e.key, fetch: e.fetcher})
		}
	}
	c.mu.Unlock()

	log.Debug().Int("marked", marked).Int("refetching", len(refetches)).Msg("Invalidated queries")
	for _, r := range refetches {
		go func() {
			if _, err := c.fetch(context.Background(), r.key, r.fetch); err != nil {
				log.Warn().Err(err).Str("key", r.key.String()).Msg("Background refetch failed")
			}
		}()
	}
	return marked
}

func matchesAny(key Key, patterns []Key) bool {
	for _, p := range patterns {
		if key.HasPrefix(p) {
			return true
		}
	}
	return false
}

// Write runs a mutation and, when it succeeds, invalidates the keys it
// declared. A failed mutation invalidates nothing.
func (c *Cache) Write(ctx context.Context, invalidates []Key, mutate func(ctx context.Context) error) error {
	if err := mutate(ctx); err != nil {
		return err
	}
	c.Invalidate(invalidates...)
	return nil
}

// Clear drops every entry. In-flight fetches complete but are not stored.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		c.stopGCLocked(e)
		c.group.Forget(id)
	}
	c.entries = make(map[string]*entry)
	log.Debug().Msg("Cleared query cache")
}

// Peek reports what is cached for key without fetching.
func (c *Cache) Peek(key Key) (data any, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return nil, false, false
	}
	return e.data, e.fresh(c.clock.Now()), true
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
