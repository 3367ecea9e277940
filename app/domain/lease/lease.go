package lease

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrHeld is returned by Acquire when an unexpired lease for the key exists
// with a different holder.
var ErrHeld = errors.New("lease held by another holder")

// Key identifies one cache row for the purpose of retry exclusivity.
type Key struct {
	Subject    string
	Asset      string
	ViewTarget string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Subject, k.Asset, k.ViewTarget)
}

// Lease is a time-boxed exclusive claim on a key. Leases are advisory: a
// crashed holder's lease self-expires, so jobs are never permanently stuck.
type Lease interface {
	Key() Key
	Holder() string
	ExpiresAt() time.Time
}

// Coordinator grants at most one unexpired lease per key at any instant.
// Expiry is the only cancellation mechanism; there is no renew or break API.
type Coordinator interface {
	Acquire(ctx context.Context, key Key, holder string, ttl time.Duration) (Lease, error)
	Release(ctx context.Context, l Lease) error
}
