package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

const tierCacheTTL = 5 * time.Minute

// TierSource is the authoritative tier lookup, consulted on cache misses.
type TierSource interface {
	Tier(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error)
}

// EntitlementCache answers premium-topic entitlement checks from a Redis
// cache in front of the subscription table. A Redis outage degrades to
// direct lookups, never to a wrong answer.
type EntitlementCache struct {
	rdb    *goredis.Client
	source TierSource
}

func NewEntitlementCache(client *Client, source TierSource) *EntitlementCache {
	return &EntitlementCache{rdb: client.rdb, source: source}
}

func tierCacheKey(userID uuid.UUID) string {
	return "tier:" + userID.String()
}

// Entitled reports whether the user may subscribe to the topic.
func (c *EntitlementCache) Entitled(ctx context.Context, userID uuid.UUID, topic domain.Topic) (bool, error) {
	if !topic.Premium() {
		return true, nil
	}
	tier, err := c.lookupTier(ctx, userID)
	if err != nil {
		return false, err
	}
	return tier == domain.TierPremium, nil
}

func (c *EntitlementCache) lookupTier(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error) {
	key := tierCacheKey(userID)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if tier := domain.SubscriptionTier(cached); tier.Valid() {
			return tier, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		slog.Warn("tier cache read failed, falling back to database", "error", err)
	}

	tier, err := c.source.Tier(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, key, string(tier), tierCacheTTL).Err(); err != nil {
		slog.Warn("tier cache write failed", "error", err)
	}
	return tier, nil
}

// Invalidate drops a user's cached tier, e.g. after a subscription change.
func (c *EntitlementCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := c.rdb.Del(ctx, tierCacheKey(userID)).Err(); err != nil {
		slog.Warn("tier cache invalidation failed", "user_id", userID.String(), "error", err)
	}
}
