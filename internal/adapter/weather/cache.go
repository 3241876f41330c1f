package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-chat/internal/domain"
)

// ConditionsCache stores current conditions per coordinate pair.
type ConditionsCache interface {
	Get(ctx context.Context, lat, lon float64) (*domain.WeatherFact, bool, error)
	Set(ctx context.Context, fact domain.WeatherFact) error
}

// RedisConditionsCache keeps conditions in Redis so that replicas share them.
type RedisConditionsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisConditionsCache creates a cache from a redis:// URL.
func NewRedisConditionsCache(url string, ttl time.Duration) (*RedisConditionsCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisConditionsCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func conditionsKey(lat, lon float64) string {
	return fmt.Sprintf("ragchat:weather:%.2f:%.2f", lat, lon)
}

func (c *RedisConditionsCache) Get(ctx context.Context, lat, lon float64) (*domain.WeatherFact, bool, error) {
	raw, err := c.client.Get(ctx, conditionsKey(lat, lon)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var fact domain.WeatherFact
	if err := json.Unmarshal(raw, &fact); err != nil {
		return nil, false, fmt.Errorf("decode cached conditions: %w", err)
	}
	return &fact, true, nil
}

func (c *RedisConditionsCache) Set(ctx context.Context, fact domain.WeatherFact) error {
	raw, err := json.Marshal(fact)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, conditionsKey(fact.Lat, fact.Lon), raw, c.ttl).Err()
}

// Ping checks the Redis connection.
func (c *RedisConditionsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisConditionsCache) Close() error {
	return c.client.Close()
}
