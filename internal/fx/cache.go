package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache mirrors a rate into Redis with a TTL so other processes can read
// the latest FX rate without re-fetching from a provider. Redis is
// best-effort: a nil client or any Redis error degrades to a cache miss
// rather than failing the caller.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a Redis client. client may be nil, in which case the cache
// behaves as always-empty.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) key(pair string) string {
	return fmt.Sprintf("arbengine:fx:%s", pair)
}

// Get returns the cached rate for pair, if present and unexpired in Redis.
func (c *Cache) Get(ctx context.Context, pair string) (Rate, bool) {
	if c == nil || c.client == nil {
		return Rate{}, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := c.client.Get(cacheCtx, c.key(pair)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("pair", pair).Msg("fx cache get error, treating as miss")
		}
		return Rate{}, false
	}

	var rate Rate
	if err := json.Unmarshal([]byte(raw), &rate); err != nil {
		log.Warn().Err(err).Str("pair", pair).Msg("fx cache unmarshal error")
		return Rate{}, false
	}
	return rate, true
}

// Set stores rate for pair with the given TTL.
func (c *Cache) Set(ctx context.Context, pair string, rate Rate, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(rate)
	if err != nil {
		log.Warn().Err(err).Str("pair", pair).Msg("fx cache marshal error")
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.client.Set(cacheCtx, c.key(pair), data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("pair", pair).Msg("failed to cache fx rate")
	}
}
