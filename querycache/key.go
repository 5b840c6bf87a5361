package querycache

import (
	"encoding/json"
	"net/url"
	"slices"
)

// Key identifies a cached query: a resource name followed by an optional
// record id and an optional encoded filter, e.g. ["customer", "42"] or
// ["customers", "city=Lisbon"].
type Key []string

func NewKey(segments ...string) Key {
	return Key(segments)
}

// With returns k extended with the encoded filter. An empty filter leaves
// k unchanged.
func (k Key) With(filter url.Values) Key {
	if len(filter) == 0 {
		return k
	}
	return append(slices.Clone(k), filter.Encode())
}

// Resource returns the first segment of k.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether every segment of prefix matches the start of
// k. ["customers"] matches every filtered customers list.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	return slices.Equal(k[:len(prefix)], prefix)
}

func (k Key) String() string {
	data, _ := json.Marshal([]string(k))
	return string(data)
}
