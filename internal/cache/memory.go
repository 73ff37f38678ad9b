package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local Store. It is concurrency-safe and evicts
// expired entries lazily on access plus opportunistically during writes.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]*memoryEntry
	clock func() time.Time
}

// NewMemoryStore constructs an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]*memoryEntry),
		clock: time.Now,
	}
}

// WithClock overrides the time source, primarily for tests.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	entry, ok := s.data[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &memoryEntry{expiresAt: now.Add(window)}
		s.data[key] = entry
	}

	entry.count++

	return entry.count, entry.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	expires := now.Add(ttl)
	if ttl <= 0 {
		expires = now.Add(time.Hour)
	}
	s.data[key] = &memoryEntry{value: value, expiresAt: expires}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		delete(s.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// sweepLocked drops expired entries. Called with the mutex held; entries are
// small and short-lived, so the O(n) pass is acceptable for a single process.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, entry := range s.data {
		if now.After(entry.expiresAt) {
			delete(s.data, key)
		}
	}
}
