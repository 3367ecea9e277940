package lease

import (
	"strings"

	domain "openlend.ai/position-cache/app/domain/lease"
	"openlend.ai/position-cache/app/infrastructure/cache"
	"openlend.ai/position-cache/config/environment_variables"
)

// NewCoordinator selects the lease backend to match the cache backend: a
// distributed cache gets redlock leases, a noop cache means single-process
// operation where in-memory exclusivity is enough.
func NewCoordinator(cacheService cache.CacheService) domain.Coordinator {
	cacheType := strings.ToLower(environment_variables.EnvironmentVariables.CACHE_TYPE)
	if cacheType == "noop" {
		return NewMemoryCoordinator()
	}
	return NewRedsyncCoordinator(cacheService)
}
