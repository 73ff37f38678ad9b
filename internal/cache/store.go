package cache

import (
	"context"
	"time"
)

// Store is a shared key-value capability with TTL semantics. Process-local
// state (rate-limit counters, session lookups) sits behind this interface so a
// single-process map can be swapped for Redis in multi-instance deployments
// without changing call sites.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
