package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkping/linkping/internal/model"
)

// Cache key prefixes and TTLs.
const (
	linkKeyPrefix     = "link:"
	negCacheKeySuffix = ":neg"

	// DefaultLinkTTL is the TTL for cached link data.
	DefaultLinkTTL = time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetLink retrieves a link from cache by slug.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetLink(ctx context.Context, slug string) (*model.Link, error) {
	result, err := c.client.HGetAll(ctx, linkKeyPrefix+slug).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	target := result["target_url"]
	if target == "" {
		return nil, ErrCacheMiss
	}

	link := &model.Link{
		Slug:      slug,
		TargetURL: target,
	}
	if raw := result["expires_at"]; raw != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			// Unreadable entry: treat as a miss so it is rewritten.
			return nil, ErrCacheMiss
		}
		link.ExpiresAt = &expiresAt
	}

	return link, nil
}

// SetLink stores a link in cache for at most maxTTL, and never beyond its
// expiry. Expired links are evicted instead.
func (c *Cache) SetLink(ctx context.Context, link *model.Link, maxTTL time.Duration) error {
	key := linkKeyPrefix + link.Slug
	if maxTTL <= 0 {
		maxTTL = DefaultLinkTTL
	}

	ttl := link.CacheTTL(time.Now(), maxTTL)
	if ttl <= 0 {
		return c.DeleteLink(ctx, link.Slug)
	}

	fields := map[string]any{
		"target_url": link.TargetURL,
	}
	if link.ExpiresAt != nil {
		fields["expires_at"] = link.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}

	return nil
}

// DeleteLink removes a link and its negative entry from cache.
func (c *Cache) DeleteLink(ctx context.Context, slug string) error {
	key := linkKeyPrefix + slug

	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete link from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a slug is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, slug string) (bool, error) {
	exists, err := c.client.Exists(ctx, linkKeyPrefix+slug+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a slug as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, slug string) error {
	err := c.client.SetEx(ctx, linkKeyPrefix+slug+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
