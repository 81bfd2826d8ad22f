// store/store.go
package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound key 不存在或已过期
	ErrNotFound = errors.New("key not found")
	// ErrVersionConflict is returned by Put when the caller's version no
	// longer matches the stored entry, meaning a concurrent writer won.
	ErrVersionConflict = errors.New("version conflict")
)

// Store is a TTL key-value store with compare-and-swap writes and
// acquire-if-absent locks. The memory implementation below is the default;
// the interface is shaped so a Redis-backed one can slot in unchanged.
type Store interface {
	// Get returns the value and its current version.
	Get(key string) ([]byte, int64, error)

	// Put writes value only if the stored version still equals version.
	// Pass version 0 to create a key that must not exist yet. A ttl of 0
	// keeps the key's remaining ttl; on create it means no expiry.
	Put(key string, value []byte, version int64, ttl time.Duration) (int64, error)

	// SetNX acquires key if absent, with ttl. Returns false when held.
	SetNX(key string, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Removing an absent key is not an error.
	Delete(key string) error

	// CompareAndDelete removes key only while it still holds value.
	// Returns whether this call removed it, so concurrent claimants can
	// tell who won.
	CompareAndDelete(key string, value []byte) (bool, error)

	// Keys returns all live keys with the given prefix.
	Keys(prefix string) ([]string, error)

	Close()
}
