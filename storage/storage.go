// Package storage defines the key/value stores that hold session state.
//
// A tab owns two scopes: a tab-isolated store nobody else sees, and a
// handle on the shared store every open tab writes to. Writes to the shared
// store are delivered to the other handles as ChangeEvents, never to the
// handle that wrote them.
package storage

import "context"

// ChangeEvent describes a write made through another handle. A nil
// NewValue means the key was removed.
type ChangeEvent struct {
	Key      string
	OldValue *string
	NewValue *string
}

// Removed reports whether the event is a key removal.
func (e ChangeEvent) Removed() bool {
	return e.NewValue == nil
}

// Store is a string key/value store with change notification.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Watch returns a channel of changes made through other handles. The
	// channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan ChangeEvent, error)
}
