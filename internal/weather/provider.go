package weather

import (
	"context"
	"time"
)

// Provider abstracts the upstream weather API. It performs no caching.
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context, city string) (Record, error)
	FetchWeekly(ctx context.Context, city string, days int) (Record, error)
}

// Geocoder resolves coordinates to a city name.
type Geocoder interface {
	ResolveCity(ctx context.Context, lat, lon float64) (string, error)
}

// Cache is the contract every cache backend must satisfy.
// Get returns ErrCacheMiss for absent or expired entries and wraps I/O
// failures with ErrCacheUnavailable.
type Cache interface {
	Get(ctx context.Context, city string, kind Kind) (Record, error)
	Put(ctx context.Context, city string, kind Kind, rec Record) error
}

// StaleReader is implemented by caches that can return an entry regardless of its age.
type StaleReader interface {
	GetStale(ctx context.Context, city string, kind Kind) (Record, error)
}

// Purger is implemented by caches that reclaim storage of old entries.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}
