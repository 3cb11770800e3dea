package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"medeasy/marketplace/domain"
)

const catalogKey = "inventory:catalog"

// Cache is the subset of the redis client the provider uses.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedProvider serves the catalog from redis when it can and from the
// source otherwise. Single entries always come from the source because order
// pricing needs live stock. Redis errors degrade to the source.
type CachedProvider struct {
	src    Source
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps src. A nil cache makes it a pass-through.
func NewCachedProvider(src Source, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{src: src, cache: cache, ttl: ttl, logger: logger}
}

func (p *CachedProvider) Catalog(ctx context.Context) ([]domain.InventoryEntry, error) {
	if p.cache == nil {
		return p.src.Catalog(ctx)
	}

	val, err := p.cache.Get(ctx, catalogKey).Result()
	switch {
	case err == nil:
		var entries []domain.InventoryEntry
		if err := json.Unmarshal([]byte(val), &entries); err == nil {
			return entries, nil
		}
		p.logger.Warn("discarding undecodable inventory cache entry")
	case err != redis.Nil:
		p.logger.Warn("inventory cache read failed", zap.Error(err))
	}

	entries, err := p.src.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entries); err == nil {
		if err := p.cache.Set(ctx, catalogKey, data, p.ttl).Err(); err != nil {
			p.logger.Warn("inventory cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

func (p *CachedProvider) Entry(ctx context.Context, id int64) (*domain.InventoryEntry, error) {
	return p.src.Entry(ctx, id)
}

// Invalidate drops the cached catalog after a stock change.
func (p *CachedProvider) Invalidate(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Del(ctx, catalogKey).Err(); err != nil {
		p.logger.Warn("inventory cache invalidation failed", zap.Error(err))
	}
}
