package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "openlend.ai/position-cache/app/domain/lease"
)

// MemoryCoordinator implements lease.Coordinator for single-process
// deployments and tests. Expired entries are overwritten on the next acquire.
type MemoryCoordinator struct {
	mu     sync.Mutex
	leases map[domain.Key]*memoryLease
}

func NewMemoryCoordinator() *MemoryCoordinator {
	return &MemoryCoordinator{
		leases: make(map[domain.Key]*memoryLease),
	}
}

type memoryLease struct {
	key       domain.Key
	holder    string
	expiresAt time.Time
}

func (l *memoryLease) Key() domain.Key      { return l.key }
func (l *memoryLease) Holder() string       { return l.holder }
func (l *memoryLease) ExpiresAt() time.Time { return l.expiresAt }

// Acquire implements lease.Coordinator.
func (c *MemoryCoordinator) Acquire(ctx context.Context, key domain.Key, holder string, ttl time.Duration) (domain.Lease, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if existing, ok := c.leases[key]; ok && existing.expiresAt.After(now) && existing.holder != holder {
		return nil, domain.ErrHeld
	}
	l := &memoryLease{
		key:       key,
		holder:    holder,
		expiresAt: now.Add(ttl),
	}
	c.leases[key] = l
	return l, nil
}

// Release implements lease.Coordinator.
func (c *MemoryCoordinator) Release(ctx context.Context, l domain.Lease) error {
	ml, ok := l.(*memoryLease)
	if !ok {
		return fmt.Errorf("foreign lease type %T", l)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.leases[ml.key]; ok && current == ml {
		delete(c.leases, ml.key)
	}
	return nil
}
