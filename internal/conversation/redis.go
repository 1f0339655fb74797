package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStateTTL bounds how long an unanswered location prompt is remembered.
const DefaultStateTTL = time.Hour

// RedisTracker stores pending intents in Redis so several bot replicas share them.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker connects to redisURL and verifies the connection.
func NewRedisTracker(ctx context.Context, redisURL string, ttl time.Duration) (*RedisTracker, error) {
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

	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisTracker{client: client, ttl: ttl}, nil
}

func (t *RedisTracker) PendingIntent(ctx context.Context, chatID int64) (Intent, error) {
	v, err := t.client.Get(ctx, intentKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return IntentNone, nil
	}
	if err != nil {
		return IntentNone, fmt.Errorf("failed to get pending intent: %w", err)
	}

	intent := Intent(v)
	if !intent.Valid() {
		return IntentNone, &InvalidIntentError{Intent: intent}
	}
	return intent, nil
}

func (t *RedisTracker) SetPendingIntent(ctx context.Context, chatID int64, intent Intent) error {
	if !intent.Valid() {
		return &InvalidIntentError{Intent: intent}
	}
	if intent == IntentNone {
		return t.ClearPendingIntent(ctx, chatID)
	}
	if err := t.client.Set(ctx, intentKey(chatID), string(intent), t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pending intent: %w", err)
	}
	return nil
}

func (t *RedisTracker) ClearPendingIntent(ctx context.Context, chatID int64) error {
	if err := t.client.Del(ctx, intentKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to clear pending intent: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}

func intentKey(chatID int64) string {
	return fmt.Sprintf("chat:%d:intent", chatID)
}
