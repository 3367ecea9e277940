package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"

	domain "openlend.ai/position-cache/app/domain/lease"
	"openlend.ai/position-cache/app/infrastructure/cache"
)

// RedsyncCoordinator implements lease.Coordinator on a redlock mutex per key.
// TTL expiry is the liveness guarantee: a crashed holder's lock falls away on
// its own and the key becomes acquirable again.
type RedsyncCoordinator struct {
	cacheService cache.CacheService
}

func NewRedsyncCoordinator(cacheService cache.CacheService) *RedsyncCoordinator {
	return &RedsyncCoordinator{cacheService: cacheService}
}

type redsyncLease struct {
	key       domain.Key
	holder    string
	expiresAt time.Time
	mutex     *redsync.Mutex
}

func (l *redsyncLease) Key() domain.Key      { return l.key }
func (l *redsyncLease) Holder() string       { return l.holder }
func (l *redsyncLease) ExpiresAt() time.Time { return l.expiresAt }

// Acquire implements lease.Coordinator.
func (c *RedsyncCoordinator) Acquire(ctx context.Context, key domain.Key, holder string, ttl time.Duration) (domain.Lease, error) {
	name := fmt.Sprintf(cache.RetryLeaseKeyPattern, key.String())
	mutex := c.cacheService.NewMutex(name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	if mutex == nil {
		return nil, fmt.Errorf("cache backend cannot coordinate leases")
	}
	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, domain.ErrHeld
		}
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return &redsyncLease{
		key:       key,
		holder:    holder,
		expiresAt: mutex.Until(),
		mutex:     mutex,
	}, nil
}

// Release implements lease.Coordinator. Releasing an already-expired lease is
// not an error; expiry did the work first.
func (c *RedsyncCoordinator) Release(ctx context.Context, l domain.Lease) error {
	rl, ok := l.(*redsyncLease)
	if !ok {
		return fmt.Errorf("foreign lease type %T", l)
	}
	if _, err := rl.mutex.UnlockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return nil
		}
		return fmt.Errorf("release lease %s: %w", rl.key, err)
	}
	return nil
}
