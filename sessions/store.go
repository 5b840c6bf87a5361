package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-agency-admin/storage"
)

// Store reads and writes the session record through a storage.Store.
type Store struct {
	backend storage.Store
}

func NewStore(backend storage.Store) *Store {
	return &Store{backend: backend}
}

// Backend returns the underlying storage, for watching changes.
func (s *Store) Backend() storage.Store {
	return s.backend
}

// Load returns the persisted record. A missing login flag yields a zero
// Record; unparsable timestamps are treated as missing.
func (s *Store) Load(ctx context.Context) (Record, error) {
	var rec Record

	loggedIn, ok, err := s.backend.Get(ctx, KeyIsLoggedIn)
	if err != nil {
		return rec, fmt.Errorf("[sessions Load] %s: %w", KeyIsLoggedIn, err)
	}
	rec.IsLoggedIn = ok && loggedIn == EncodeBool(true)

	if rec.SessionExpiry, err = s.loadTime(ctx, KeySessionExpiry); err != nil {
		return rec, err
	}
	if rec.LastActivity, err = s.loadTime(ctx, KeyLastActivity); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *Store) loadTime(ctx context.Context, key string) (time.Time, error) {
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("[sessions Load] %s: %w", key, err)
	}
	if !ok {
		return time.Time{}, nil
	}
	t, err := DecodeTime(value)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// Create writes a new logged-in record.
func (s *Store) Create(ctx context.Context, expiry, lastActivity time.Time) error {
	if err := s.SetLastActivity(ctx, lastActivity); err != nil {
		return err
	}
	if err := s.SetExpiry(ctx, expiry); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, KeyIsLoggedIn, EncodeBool(true)); err != nil {
		return fmt.Errorf("[sessions Create] %s: %w", KeyIsLoggedIn, err)
	}
	return nil
}

// SetExpiry stores a new session expiry.
func (s *Store) SetExpiry(ctx context.Context, expiry time.Time) error {
	if err := s.backend.Set(ctx, KeySessionExpiry, EncodeTime(expiry)); err != nil {
		return fmt.Errorf("[sessions SetExpiry] %w", err)
	}
	return nil
}

// SetLastActivity stores at, unless a later activity is already stored.
func (s *Store) SetLastActivity(ctx context.Context, at time.Time) error {
	current, err := s.loadTime(ctx, KeyLastActivity)
	if err != nil {
		return err
	}
	if !current.IsZero() && !at.After(current) {
		return nil
	}
	if err := s.backend.Set(ctx, KeyLastActivity, EncodeTime(at)); err != nil {
		return fmt.Errorf("[sessions SetLastActivity] %w", err)
	}
	return nil
}

// Clear removes every key of the record.
func (s *Store) Clear(ctx context.Context) error {
	for _, key := range Keys {
		if err := s.backend.Remove(ctx, key); err != nil {
			return fmt.Errorf("[sessions Clear] %s: %w", key, err)
		}
	}
	return nil
}
