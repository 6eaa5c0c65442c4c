package eligibility

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheTTL is how long a cached result stays valid. The scorer is pure, so
// staleness only matters when the wallet's on-chain signals change.
const CacheTTL = 60 * time.Minute

// CachedScorer wraps Score with a Redis cache keyed per (wallet,
// opportunity) pair. Cache failures degrade to recomputation: a Redis
// outage slows scoring down but never breaks it.
type CachedScorer struct {
	client  *redis.Client
	metrics *Metrics
}

// NewCachedScorer creates a scorer backed by the given Redis client.
// metrics may be nil.
func NewCachedScorer(client *redis.Client, metrics *Metrics) *CachedScorer {
	return &CachedScorer{client: client, metrics: metrics}
}

// cacheKey builds the per-pair cache key.
func cacheKey(wallet, opportunityID string) string {
	return fmt.Sprintf("elig:%s:%s", wallet, opportunityID)
}

// Score returns the eligibility result for the pair, from cache when
// possible. The signals are authoritative: a cache miss or any Redis error
// falls through to a fresh computation.
func (c *CachedScorer) Score(ctx context.Context, wallet, opportunityID string, signals Signals) Result {
	key := cacheKey(wallet, opportunityID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached Result
		if jerr := json.Unmarshal(data, &cached); jerr == nil {
			if c.metrics != nil {
				c.metrics.IncCacheHits()
			}
			return cached
		}
		// Unreadable entry: drop it and recompute.
		slog.WarnContext(ctx, "discarding corrupt eligibility cache entry", "key", key)
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		if c.metrics != nil {
			c.metrics.IncCacheErrors()
		}
		slog.WarnContext(ctx, "eligibility cache read failed, recomputing", "key", key, "error", err)
	}
	if c.metrics != nil {
		c.metrics.IncCacheMisses()
	}

	result := Score(signals)
	if c.metrics != nil {
		c.metrics.IncScored()
	}

	if data, err := json.Marshal(result); err == nil {
		if serr := c.client.Set(ctx, key, data, CacheTTL).Err(); serr != nil {
			if c.metrics != nil {
				c.metrics.IncCacheErrors()
			}
			slog.WarnContext(ctx, "eligibility cache write failed", "key", key, "error", serr)
		}
	}

	return result
}

// Invalidate removes the cached result for a pair, for callers that learn
// a wallet's signals changed before the TTL lapses.
func (c *CachedScorer) Invalidate(ctx context.Context, wallet, opportunityID string) error {
	return c.client.Del(ctx, cacheKey(wallet, opportunityID)).Err()
}
