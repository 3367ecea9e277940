package cache

import (
	"strings"

	"openlend.ai/position-cache/config/environment_variables"
)

// NewCacheService creates a cache service based on configuration
func NewCacheService() CacheService {
	cacheType := strings.ToLower(environment_variables.EnvironmentVariables.CACHE_TYPE)

	// Default to Redis if no cache type is specified
	if cacheType == "" {
		cacheType = "redis"
	}

	switch cacheType {
	case "redis":
		return NewRedisCacheService()
	case "noop":
		return &NoOpCacheService{}
	default:
		return NewRedisCacheService()
	}
}
