package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/weather-bot/internal/weather"
)

// DefaultFreshnessWindow is the age after which a cached record is treated as absent.
const DefaultFreshnessWindow = 24 * time.Hour

var (
	// ErrNotFound is returned when no fresh data is available for a key.
	ErrNotFound = weather.ErrCacheMiss
)

// Clock returns the current time. Tests replace it to move time forward.
type Clock func() time.Time

type entry struct {
	record    weather.Record
	fetchedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Cache.
type MemoryStore struct {
	mu sync.RWMutex

	// key: kind + city key
	data map[string]entry

	window time.Duration
	now    Clock
}

// NewMemoryStore creates a new MemoryStore. A non-positive window falls back to 24h.
func NewMemoryStore(window time.Duration, now Clock) *MemoryStore {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		data:   make(map[string]entry),
		window: window,
		now:    now,
	}
}

// Get returns the record for (city, kind) if it was stored less than the window ago.
func (s *MemoryStore) Get(_ context.Context, city string, kind weather.Kind) (weather.Record, error) {
	s.mu.RLock()
	e, ok := s.data[cacheKey(city, kind)]
	s.mu.RUnlock()

	if !ok || !fresh(e.fetchedAt, s.now(), s.window) {
		return weather.Record{}, ErrNotFound
	}
	return withFetchedAt(e.record, e.fetchedAt), nil
}

// GetStale returns the stored record regardless of its age.
func (s *MemoryStore) GetStale(_ context.Context, city string, kind weather.Kind) (weather.Record, error) {
	s.mu.RLock()
	e, ok := s.data[cacheKey(city, kind)]
	s.mu.RUnlock()

	if !ok {
		return weather.Record{}, ErrNotFound
	}
	return withFetchedAt(e.record, e.fetchedAt), nil
}

// Put overwrites any prior entry for (city, kind), stamping it with the current time.
func (s *MemoryStore) Put(_ context.Context, city string, kind weather.Kind, rec weather.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[cacheKey(city, kind)] = entry{record: rec, fetchedAt: s.now().UTC()}
	return nil
}

// Purge drops entries stored before the given time.
func (s *MemoryStore) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, e := range s.data {
		if e.fetchedAt.Before(before) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func cacheKey(city string, kind weather.Kind) string {
	return string(kind) + ":" + weather.CityKey(city)
}

// fresh reports whether an entry stored at fetchedAt is still valid at now.
func fresh(fetchedAt, now time.Time, window time.Duration) bool {
	return now.Sub(fetchedAt) < window
}

func withFetchedAt(rec weather.Record, at time.Time) weather.Record {
	rec.FetchedAt = at
	return rec
}
