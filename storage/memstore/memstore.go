// Package memstore is an in-process storage.Store. Handles opened on the
// same Broker share one keyspace, the way browser tabs share local storage.
package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-agency-admin/internal/utils"
	"github.com/jrsteele09/go-agency-admin/storage"
	"github.com/rs/zerolog/log"
)

// eventBuffer bounds the events queued for a slow watcher. Cross-tab
// delivery is best effort; overflow is logged and dropped.
const eventBuffer = 256

// Broker owns a shared keyspace and fans writes out to every handle.
type Broker struct {
	mu      sync.RWMutex
	values  map[string]string
	handles map[*Store]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		values:  make(map[string]string),
		handles: make(map[*Store]struct{}),
	}
}

// Open returns a new handle on the broker's keyspace.
func (b *Broker) Open() *Store {
	s := &Store{broker: b}
	b.mu.Lock()
	b.handles[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// New returns a store with its own private keyspace. Used for the
// tab-isolated scope and in tests.
func New() *Store {
	return NewBroker().Open()
}

var _ storage.Store = (*Store)(nil)

// Store is one handle on a Broker.
type Store struct {
	broker *Broker

	mu       sync.Mutex
	watchers []*watcher
	closed   bool
}

type watcher struct {
	mu     sync.Mutex
	ch     chan storage.ChangeEvent
	closed bool
}

func (w *watcher) send(ev storage.ChangeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- ev:
	default:
		log.Warn().Str("key", ev.Key).Msg("memstore: watcher buffer full, dropping change event")
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.broker.mu.RLock()
	defer s.broker.mu.RUnlock()
	value, ok := s.broker.values[key]
	return value, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.broker.mu.Lock()
	old, existed := s.broker.values[key]
	s.broker.values[key] = value
	others := s.othersLocked()
	s.broker.mu.Unlock()

	if existed && old == value {
		return nil
	}
	ev := storage.ChangeEvent{Key: key, NewValue: utils.Ptr(value)}
	if existed {
		ev.OldValue = utils.Ptr(old)
	}
	notify(others, ev)
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.broker.mu.Lock()
	old, existed := s.broker.values[key]
	delete(s.broker.values, key)
	others := s.othersLocked()
	s.broker.mu.Unlock()

	if !existed {
		return nil
	}
	notify(others, storage.ChangeEvent{Key: key, OldValue: utils.Ptr(old)})
	return nil
}

func (s *Store) Watch(ctx context.Context) (<-chan storage.ChangeEvent, error) {
	w := &watcher{ch: make(chan storage.ChangeEvent, eventBuffer)}

	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.removeWatcher(w)
		w.close()
	}()
	return w.ch, nil
}

// Close detaches the handle from its broker and closes its watchers.
func (s *Store) Close() {
	s.broker.mu.Lock()
	delete(s.broker.handles, s)
	s.broker.mu.Unlock()

	s.mu.Lock()
	watchers := s.watchers
	s.watchers = nil
	s.closed = true
	s.mu.Unlock()

	for _, w := range watchers {
		w.close()
	}
}

// othersLocked returns every handle except s. Caller holds broker.mu.
func (s *Store) othersLocked() []*Store {
	others := make([]*Store, 0, len(s.broker.handles))
	for h := range s.broker.handles {
		if h != s {
			others = append(others, h)
		}
	}
	return others
}

func (s *Store) removeWatcher(target *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watchers {
		if w == target {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			return
		}
	}
}

func (s *Store) snapshotWatchers() []*watcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return append([]*watcher(nil), s.watchers...)
}

func notify(handles []*Store, ev storage.ChangeEvent) {
	for _, h := range handles {
		for _, w := range h.snapshotWatchers() {
			w.send(ev)
		}
	}
}
