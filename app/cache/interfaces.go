package cache

import (
	"context"
	"time"
)

// Store is the key-value abstraction backing the raw document cache, the
// processed entry store, the metadata cache and the source registry. A ttl
// of zero means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error

	// Update rewrites a key through an optimistic read-modify-write cycle:
	// fn receives the current value (exists reports whether the key is set)
	// and returns the replacement. Concurrent writers to the same key cause
	// a bounded retry, so the last snapshot read inside fn is always the one
	// the write is based on.
	Update(ctx context.Context, key string, fn func(current string, exists bool) (string, error)) error

	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	Close() error
}
