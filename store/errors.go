package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing object for a content hash.
	ErrNotFound = errors.New("store: object not found")

	// ErrUnknownTrade reports a trade id with no chain row.
	ErrUnknownTrade = errors.New("store: unknown trade")

	// ErrConcurrentAppend reports a lost optimistic race on a chain row:
	// the row's length no longer matched the expected length at commit.
	ErrConcurrentAppend = errors.New("store: concurrent append")

	// ErrHashCollision reports an attempt to write different bytes under
	// an existing content hash. With SHA-256 this indicates corruption or
	// a defective encoder, never a genuine collision.
	ErrHashCollision = errors.New("store: hash collision")
)

// failure wraps a backend error so callers can distinguish store-level
// conditions (the sentinels above) from backend faults.
func failure(op string, err error) error {
	return fmt.Errorf("store: %s: %w", op, err)
}
