package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/i474232898/weather-bot/internal/weather"
)

// RedisStore keeps cache entries as JSON values. The key TTL only reclaims
// storage; freshness is still decided on read from fetchedAt.
type RedisStore struct {
	client *redis.Client
	window time.Duration
	grace  time.Duration
	now    Clock
}

type redisEntry struct {
	Record    weather.Record `json:"record"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// NewRedisStore connects to redisURL and verifies the connection.
// grace is how long an expired entry is kept for stale reads.
func NewRedisStore(ctx context.Context, redisURL string, window, grace time.Duration, now Clock) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, window: window, grace: grace, now: now}, nil
}

func (s *RedisStore) Get(ctx context.Context, city string, kind weather.Kind) (weather.Record, error) {
	e, err := s.load(ctx, city, kind)
	if err != nil {
		return weather.Record{}, err
	}
	if !fresh(e.FetchedAt, s.now(), s.window) {
		return weather.Record{}, ErrNotFound
	}
	return withFetchedAt(e.Record, e.FetchedAt), nil
}

func (s *RedisStore) GetStale(ctx context.Context, city string, kind weather.Kind) (weather.Record, error) {
	e, err := s.load(ctx, city, kind)
	if err != nil {
		return weather.Record{}, err
	}
	return withFetchedAt(e.Record, e.FetchedAt), nil
}

func (s *RedisStore) Put(ctx context.Context, city string, kind weather.Kind, rec weather.Record) error {
	data, err := sonic.Marshal(redisEntry{Record: rec, FetchedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(city, kind), data, s.window+s.grace).Err(); err != nil {
		return fmt.Errorf("%w: %v", weather.ErrCacheUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, city string, kind weather.Kind) (redisEntry, error) {
	data, err := s.client.Get(ctx, redisKey(city, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisEntry{}, ErrNotFound
	}
	if err != nil {
		return redisEntry{}, fmt.Errorf("%w: %v", weather.ErrCacheUnavailable, err)
	}

	var e redisEntry
	if err := sonic.Unmarshal(data, &e); err != nil {
		return redisEntry{}, fmt.Errorf("%w: decode entry: %v", weather.ErrCacheUnavailable, err)
	}
	return e, nil
}

func redisKey(city string, kind weather.Kind) string {
	return fmt.Sprintf("weather:%s:%s", kind, weather.CityKey(city))
}
