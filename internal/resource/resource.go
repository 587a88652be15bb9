// Package resource holds the shared domain types for cached resources:
// the primary-key derivation and the cache entry shape that both the
// in-memory cache and the snapshot store operate on.
package resource

import (
	"strings"
	"time"
)

// KeySeparator joins the resource type and id into a primary key.
// Resource types must not contain it; ids may.
const KeySeparator = ":"

// Key derives the primary cache key for a resource. The derivation is
// deterministic: the same (type, id) pair always yields the same key,
// and the key is stable for the entry's lifetime.
func Key(resourceType, id string) string {
	return resourceType + KeySeparator + id
}

// TypeOf extracts the resource type from a primary key.
func TypeOf(key string) string {
	if i := strings.Index(key, KeySeparator); i >= 0 {
		return key[:i]
	}
	return key
}

// IDOf extracts the resource id from a primary key.
func IDOf(key string) string {
	if i := strings.Index(key, KeySeparator); i >= 0 {
		return key[i+len(KeySeparator):]
	}
	return ""
}

// Entry is a single cached resource. Value is an opaque snapshot: the
// cache never inspects it, and callers must not mutate it after storing.
type Entry struct {
	Value     any
	ExpiresAt time.Time // zero means the entry never expires
	Tags      []string
}

// Expired reports whether the entry's lifetime has elapsed at the given
// instant. An entry whose ExpiresAt equals now is already expired.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !e.ExpiresAt.After(now)
}
