package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resultCacheTTL = 24 * time.Hour

// ResultCache keeps the most recent scrape result per user so the dashboard
// can re-display it without spending another credit.
// Key format: scrape:last:<user_id>
type ResultCache struct {
	client *redis.Client
}

func NewResultCache(client *redis.Client) *ResultCache {
	return &ResultCache{client: client}
}

func (c *ResultCache) Put(ctx context.Context, userID string, result json.RawMessage) error {
	if err := c.client.Set(ctx, c.key(userID), []byte(result), resultCacheTTL).Err(); err != nil {
		return fmt.Errorf("cache scrape result: %w", err)
	}
	return nil
}

// Get returns the cached result, or (nil, nil) when nothing is cached.
func (c *ResultCache) Get(ctx context.Context, userID string) (json.RawMessage, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scrape cache: %w", err)
	}
	return json.RawMessage(raw), nil
}

func (c *ResultCache) key(userID string) string {
	return fmt.Sprintf("scrape:last:%s", userID)
}
