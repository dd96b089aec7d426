package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/havenhub/apiserver/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	listingKeyPrefix = "hh:listings:" // Cached page: hh:listings:{filter}:{offset}:{limit}
	listingIndexKey  = "hh:listings:keys"
	defaultTTL       = 60 * time.Second
)

// cachedPage is the stored shape of one listing page.
type cachedPage struct {
	Items []types.Property `json:"items"`
	Total int              `json:"total"`
}

// ListingCache caches public listing pages in redis with a short TTL.
// Cache failures degrade to the database; they are logged, never
// surfaced.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewListingCache(client *redis.Client, logger *zap.Logger) *ListingCache {
	return &ListingCache{
		client: client,
		ttl:    defaultTTL,
		logger: logger,
	}
}

func listingKey(filter types.PropertyFilter, offset, limit int) string {
	return fmt.Sprintf("%s%s:%s:%s:%g:%g:%d:%d",
		listingKeyPrefix,
		filter.City, filter.Type, filter.Category,
		filter.MinPrice, filter.MaxPrice,
		offset, limit,
	)
}

// GetListings returns a cached page, reporting a miss on any error.
func (c *ListingCache) GetListings(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, bool) {
	raw, err := c.client.Get(ctx, listingKey(filter, offset, limit)).Bytes()
	if err == redis.Nil {
		return nil, 0, false
	}
	if err != nil {
		c.logger.Warn("listing cache get", zap.Error(err))
		return nil, 0, false
	}
	var page cachedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, 0, false
	}
	return page.Items, page.Total, true
}

// SetListings stores a page and tracks its key for invalidation.
func (c *ListingCache) SetListings(ctx context.Context, filter types.PropertyFilter, offset, limit int, items []types.Property, total int) {
	raw, err := json.Marshal(cachedPage{Items: items, Total: total})
	if err != nil {
		return
	}
	key := listingKey(filter, offset, limit)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, raw, c.ttl)
	pipe.SAdd(ctx, listingIndexKey, key)
	pipe.Expire(ctx, listingIndexKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("listing cache set", zap.Error(err))
	}
}

// InvalidateListings drops every cached page. Called after approval
// decisions, resubmissions, and availability changes.
func (c *ListingCache) InvalidateListings(ctx context.Context) {
	keys, err := c.client.SMembers(ctx, listingIndexKey).Result()
	if err != nil {
		c.logger.Warn("listing cache invalidate", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	keys = append(keys, listingIndexKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("listing cache invalidate", zap.Error(err))
	}
}

// NopCache satisfies the service cache interface when redis is not
// configured: every lookup misses and stores are dropped.
type NopCache struct{}

func (NopCache) GetListings(context.Context, types.PropertyFilter, int, int) ([]types.Property, int, bool) {
	return nil, 0, false
}
func (NopCache) SetListings(context.Context, types.PropertyFilter, int, int, []types.Property, int) {
}
func (NopCache) InvalidateListings(context.Context) {}
