package querycache

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Update is a new result for a subscribed key.
type Update struct {
	Key  Key
	Data any
	Err  error
}

// Subscription is an active consumer of a key. While it is open the entry
// is never evicted and is refetched whenever it is invalidated.
type Subscription struct {
	cache *Cache
	key   Key

	mu      sync.Mutex
	updates chan Update
	closed  bool
}

// Subscribe registers a consumer of key. The current data is delivered
// straight away when fresh; otherwise a fetch is started.
func (c *Cache) Subscribe(key Key, fetch Fetcher, opts Options) *Subscription {
	sub := &Subscription{cache: c, key: key, updates: make(chan Update, 1)}

	c.mu.Lock()
	e := c.entryLocked(key, opts)
	e.fetcher = fetch
	e.subscribers[sub] = struct{}{}
	c.stopGCLocked(e)
	fresh := e.fresh(c.clock.Now())
	data := e.data
	c.mu.Unlock()

	if fresh {
		sub.send(Update{Key: key, Data: data})
		return sub
	}
	go func() {
		if _, err := c.fetch(context.Background(), key, fetch); err != nil {
			log.Debug().Err(err).Str("key", key.String()).Msg("Subscription fetch failed")
		}
	}()
	return sub
}

// Updates delivers the latest result for the key. Older undelivered
// results are replaced. The channel is closed by Close.
func (s *Subscription) Updates() <-chan Update {
	return s.updates
}

// Close stops the subscription. An in-flight fetch for the key still
// completes and is cached. When the last subscriber leaves, the entry's
// keep-alive window starts.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.updates)
	s.mu.Unlock()

	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[s.key.String()]
	if !ok {
		return
	}
	delete(e.subscribers, s)
	if len(e.subscribers) == 0 {
		c.armGCLocked(e)
	}
}

func (s *Subscription) send(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- u
}

func (e *entry) snapshotSubscribers() []*Subscription {
	subs := make([]*Subscription, 0, len(e.subscribers))
	for s := range e.subscribers {
		subs = append(subs, s)
	}
	return subs
}

func publish(subs []*Subscription, u Update) {
	for _, s := range subs {
		s.send(u)
	}
}
