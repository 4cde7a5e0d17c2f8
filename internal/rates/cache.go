package rates

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/subtrack-app/subtrack/internal/domain"
)

const (
	cacheKeyLatest  = "subtrack:rates:latest"
	defaultCacheTTL = 24 * time.Hour
)

// Cache keeps the latest rates snapshot in redis. It is best-effort: every
// miss or redis error falls through to postgres, so losing the cache only
// costs a query.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a rates cache. ttl <= 0 selects the default.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Set stores the snapshot. Errors are logged and swallowed.
func (c *Cache) Set(ctx context.Context, rates []domain.ExchangeRate) {
	payload, err := json.Marshal(rates)
	if err != nil {
		slog.Warn("marshal rates snapshot", "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKeyLatest, payload, c.ttl).Err(); err != nil {
		slog.Warn("cache rates snapshot", "error", err)
	}
}

// Get returns the cached snapshot, or ok=false on miss or error.
func (c *Cache) Get(ctx context.Context) ([]domain.ExchangeRate, bool) {
	payload, err := c.client.Get(ctx, cacheKeyLatest).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("read rates snapshot from cache", "error", err)
		}
		return nil, false
	}

	var rates []domain.ExchangeRate
	if err := json.Unmarshal(payload, &rates); err != nil {
		slog.Warn("decode cached rates snapshot", "error", err)
		return nil, false
	}
	return rates, true
}
