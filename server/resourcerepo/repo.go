// Package resourcerepo is the in-memory record store behind the mock API's
// CRUD endpoints. Records are schemaless JSON objects grouped in named
// collections.
package resourcerepo

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-agency-admin/clock"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
)

// Reserved fields set by the store.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
)

// SearchParam is the filter key that matches a substring of any string
// field, case insensitively.
const SearchParam = "q"

// Document is one record as decoded from JSON.
type Document map[string]any

// ID returns the record's id or "".
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// String returns field as a string, or "" when it is absent or not a
// string.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Number returns field as a float64. JSON numbers decode as float64.
func (d Document) Number(field string) float64 {
	switch v := d[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

type collection struct {
	docs  map[string]Document
	order []string // ids in creation order
}

type Store struct {
	clock clock.Clock

	lock        sync.RWMutex
	collections map[string]*collection
}

// New creates a store with the named collections. Other names are
// rejected with ErrUnknownResource.
func New(clk clock.Clock, names ...string) *Store {
	s := &Store{clock: clk, collections: make(map[string]*collection, len(names))}
	for _, name := range names {
		s.collections[name] = &collection{docs: make(map[string]Document)}
	}
	return s
}

// Collections returns the collection names, sorted.
func (s *Store) Collections() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return slices.Sorted(maps.Keys(s.collections))
}

func (s *Store) collectionLocked(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnknownResource, "%q", name)
	}
	return c, nil
}

// List returns the records of name matching every filter value, oldest
// first.
func (s *Store) List(name string, filter url.Values) ([]Document, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	c, err := s.collectionLocked(name)
	if err != nil {
		return nil, fmt.Errorf("[Store List] %w", err)
	}
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		if matches(doc, filter) {
			out = append(out, maps.Clone(doc))
		}
	}
	return out, nil
}

func (s *Store) Get(name, id string) (Document, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	c, err := s.collectionLocked(name)
	if err != nil {
		return nil, fmt.Errorf("[Store Get] %w", err)
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[Store Get] %s/%s", name, id)
	}
	return maps.Clone(doc), nil
}

// Create stores doc under a new id and returns the stored record.
func (s *Store) Create(name string, doc Document) (Document, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	c, err := s.collectionLocked(name)
	if err != nil {
		return nil, fmt.Errorf("[Store Create] %w", err)
	}
	stored := maps.Clone(doc)
	if stored == nil {
		stored = Document{}
	}
	id := uuid.New().String()
	stored[FieldID] = id
	stored[FieldCreatedAt] = s.clock.Now().UTC().Format(timeLayout)
	c.docs[id] = stored
	c.order = append(c.order, id)
	return maps.Clone(stored), nil
}

// Update replaces the record id with doc, keeping its id and creation
// time.
func (s *Store) Update(name, id string, doc Document) (Document, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	c, err := s.collectionLocked(name)
	if err != nil {
		return nil, fmt.Errorf("[Store Update] %w", err)
	}
	existing, ok := c.docs[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[Store Update] %s/%s", name, id)
	}
	stored := maps.Clone(doc)
	if stored == nil {
		stored = Document{}
	}
	stored[FieldID] = id
	stored[FieldCreatedAt] = existing[FieldCreatedAt]
	c.docs[id] = stored
	return maps.Clone(stored), nil
}

func (s *Store) Delete(name, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	c, err := s.collectionLocked(name)
	if err != nil {
		return fmt.Errorf("[Store Delete] %w", err)
	}
	if _, ok := c.docs[id]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "[Store Delete] %s/%s", name, id)
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
	return nil
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func matches(doc Document, filter url.Values) bool {
	for field, values := range filter {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		want := values[0]
		if field == SearchParam {
			if !containsText(doc, want) {
				return false
			}
			continue
		}
		v, ok := doc[field]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func containsText(doc Document, text string) bool {
	text = strings.ToLower(text)
	for _, v := range doc {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), text) {
			return true
		}
	}
	return false
}
