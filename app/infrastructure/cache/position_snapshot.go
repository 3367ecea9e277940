package cache

import (
	"context"
	"fmt"
	"time"

	"openlend.ai/position-cache/app/domain/position"
	"openlend.ai/position-cache/app/utils/logger"
)

const positionSnapshotTTL = 10 * time.Minute

// PositionSnapshotCache keeps the latest accepted entry per key in the cache
// so hot reads skip the database. It is write-through from the store and
// best-effort: a cache failure never fails the write that fed it.
type PositionSnapshotCache struct {
	cacheService CacheService
}

func NewPositionSnapshotCache(cacheService CacheService) *PositionSnapshotCache {
	return &PositionSnapshotCache{cacheService: cacheService}
}

func snapshotKey(subject, asset, viewTarget string) string {
	return fmt.Sprintf(PositionEntryKeyPattern, subject, asset, viewTarget)
}

// StoreEntry implements position.SnapshotCache.
func (c *PositionSnapshotCache) StoreEntry(ctx context.Context, entry *position.Entry) {
	key := snapshotKey(entry.Subject, entry.Asset, entry.ViewTarget)
	if err := c.cacheService.Set(ctx, key, entry, positionSnapshotTTL); err != nil {
		logger.GetLogger().Warnf("position snapshot: refresh failed for %s: %v", key, err)
	}
}

// GetEntry returns the cached snapshot, or nil on miss.
func (c *PositionSnapshotCache) GetEntry(ctx context.Context, subject, asset, viewTarget string) *position.Entry {
	var entry position.Entry
	if err := c.cacheService.Get(ctx, snapshotKey(subject, asset, viewTarget), &entry); err != nil {
		return nil
	}
	return &entry
}
