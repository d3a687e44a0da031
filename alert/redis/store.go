package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is an alert.KeyStore on Redis SET NX EX
type Store struct {
	client *redis.Client
}

// NewStore wraps a Redis client
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// SetNX sets key for ttl unless it already exists
func (s *Store) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setting dedup key: %w", err)
	}
	return ok, nil
}
