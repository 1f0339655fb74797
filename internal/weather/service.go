package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig tunes the Service.
type ServiceConfig struct {
	// ProviderTimeout bounds a whole provider call, retries included.
	ProviderTimeout time.Duration
	// ForecastDays is the number of days requested for weekly records.
	ForecastDays int
	// StaleFallback allows serving an expired entry when the provider fails.
	StaleFallback bool
}

// Service orchestrates the cache and the upstream provider.
type Service struct {
	cache    Cache
	provider Provider
	geocoder Geocoder
	cfg      ServiceConfig
	log      zerolog.Logger

	flight singleflight.Group
}

// NewService creates a new Service.
func NewService(cache Cache, provider Provider, geocoder Geocoder, cfg ServiceConfig, log zerolog.Logger) *Service {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 15 * time.Second
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 7
	}
	return &Service{
		cache:    cache,
		provider: provider,
		geocoder: geocoder,
		cfg:      cfg,
		log:      log,
	}
}

// Lookup returns a fresh record from the cache or, on a miss, from the provider.
// Concurrent misses for the same city and kind share one upstream call.
func (s *Service) Lookup(ctx context.Context, city string, kind Kind) (Record, error) {
	if !kind.Valid() {
		return Record{}, fmt.Errorf("unknown kind %q", kind)
	}
	log := s.log.With().Str("city", city).Str("kind", string(kind)).Logger()

	rec, err := s.cache.Get(ctx, city, kind)
	switch {
	case err == nil:
		log.Debug().Time("fetched_at", rec.FetchedAt).Msg("cache hit")
		return rec, nil
	case errors.Is(err, ErrCacheMiss):
		log.Debug().Msg("cache miss")
	default:
		log.Warn().Err(err).Msg("cache read failed; fetching from provider")
	}

	rec, err = s.fetchShared(ctx, city, kind)
	if err == nil {
		return rec, nil
	}
	if ctx.Err() != nil {
		return Record{}, err
	}

	// Another caller may have stored a fresh record meanwhile.
	if cached, cerr := s.cache.Get(ctx, city, kind); cerr == nil {
		return cached, nil
	}

	if s.cfg.StaleFallback && !errors.Is(err, ErrCityNotFound) {
		if sr, ok := s.cache.(StaleReader); ok {
			stale, serr := sr.GetStale(ctx, city, kind)
			if serr == nil {
				log.Warn().Err(err).Time("fetched_at", stale.FetchedAt).Msg("serving stale record")
				return stale, nil
			}
		}
	}

	log.Error().Err(err).Msg("weather lookup failed")
	return Record{}, err
}

// Refresh fetches a record from the provider, bypassing the cache read, and stores it.
func (s *Service) Refresh(ctx context.Context, city string, kind Kind) (Record, error) {
	if !kind.Valid() {
		return Record{}, fmt.Errorf("unknown kind %q", kind)
	}
	return s.fetchShared(ctx, city, kind)
}

// ResolveCity reverse-geocodes coordinates within the provider timeout.
func (s *Service) ResolveCity(ctx context.Context, lat, lon float64) (string, error) {
	if s.geocoder == nil {
		return "", fmt.Errorf("%w: no geocoder configured", ErrLocationNotResolved)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	city, err := s.geocoder.ResolveCity(ctx, lat, lon)
	if err != nil {
		return "", classifyTimeout(err)
	}
	return city, nil
}

// fetchShared runs at most one provider call per (city, kind). The call is
// detached from the caller's cancellation so its result is cached even when
// the requesting chat goes away.
func (s *Service) fetchShared(ctx context.Context, city string, kind Kind) (Record, error) {
	key := string(kind) + ":" + CityKey(city)

	ch := s.flight.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ProviderTimeout)
		defer cancel()

		rec, err := s.fetch(fctx, city, kind)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Put(fctx, city, kind, rec); err != nil {
			s.log.Warn().Err(err).Str("city", city).Str("kind", string(kind)).Msg("cache write failed")
			return rec, nil
		}
		// The store stamps FetchedAt; hand out the stored copy so hits and misses agree.
		if stored, err := s.cache.Get(fctx, city, kind); err == nil {
			return stored, nil
		}
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return Record{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Record{}, res.Err
		}
		if res.Shared {
			s.log.Debug().Str("city", city).Str("kind", string(kind)).Msg("shared in-flight fetch")
		}
		return res.Val.(Record), nil
	}
}

func (s *Service) fetch(ctx context.Context, city string, kind Kind) (Record, error) {
	var (
		rec Record
		err error
	)
	switch kind {
	case KindCurrent:
		rec, err = s.provider.FetchCurrent(ctx, city)
	case KindWeekly:
		rec, err = s.provider.FetchWeekly(ctx, city, s.cfg.ForecastDays)
	}
	if err != nil {
		return Record{}, classifyTimeout(err)
	}
	if err := rec.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrProviderMalformedResponse, err)
	}
	if kind == KindWeekly && len(rec.Days) != s.cfg.ForecastDays {
		return Record{}, fmt.Errorf("%w: forecast for %q has %d days, want %d",
			ErrProviderMalformedResponse, city, len(rec.Days), s.cfg.ForecastDays)
	}
	return rec, nil
}

func classifyTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrProviderUnavailable) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return err
}
