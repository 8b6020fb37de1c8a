package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/weather-cache-proxy/internal/weather"
)

// entry is a cached payload with its absolute expiry. A zero expiresAt never
// expires.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a concurrency-safe in-memory implementation of weather.Cache.
// Expired entries are hidden from Get immediately and removed by Sweep.
type MemoryCache struct {
	mu  sync.RWMutex
	now func() time.Time

	// key: cache key, value: payload
	data map[string]entry
}

// NewMemoryCache creates an empty MemoryCache. If now is nil, time.Now is used.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		now:  now,
		data: make(map[string]entry),
	}
}

// Get returns the payload stored under key if it has not expired.
func (s *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok || s.expired(e, s.now()) {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set stores value under key, replacing any previous entry and restarting its
// TTL. A ttl <= 0 stores the entry without expiry.
func (s *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = e
	return nil
}

// Sweep removes entries that have expired at now and returns how many were
// removed.
func (s *MemoryCache) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.data {
		if s.expired(e, now) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (s *MemoryCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryCache) expired(e entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

var _ weather.Cache = (*MemoryCache)(nil)
