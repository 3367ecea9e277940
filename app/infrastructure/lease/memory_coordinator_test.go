package lease

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "openlend.ai/position-cache/app/domain/lease"
)

func testKey() domain.Key {
	return domain.Key{Subject: "acct-1", Asset: "usdc", ViewTarget: "primary"}
}

func TestMemoryCoordinatorExclusive(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCoordinator()

	l, err := c.Acquire(ctx, testKey(), "worker-a", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = c.Acquire(ctx, testKey(), "worker-b", time.Minute)
	assert.ErrorIs(t, err, domain.ErrHeld)

	require.NoError(t, c.Release(ctx, l))
	_, err = c.Acquire(ctx, testKey(), "worker-b", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryCoordinatorDistinctKeys(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCoordinator()

	_, err := c.Acquire(ctx, testKey(), "worker-a", time.Minute)
	require.NoError(t, err)

	other := testKey()
	other.Asset = "weth"
	_, err = c.Acquire(ctx, other, "worker-b", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryCoordinatorExpiredLeaseTakenOver(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCoordinator()

	_, err := c.Acquire(ctx, testKey(), "worker-a", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	l, err := c.Acquire(ctx, testKey(), "worker-b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "worker-b", l.Holder())
}

func TestMemoryCoordinatorStaleReleaseKeepsNewLease(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCoordinator()

	old, err := c.Acquire(ctx, testKey(), "worker-a", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = c.Acquire(ctx, testKey(), "worker-b", time.Minute)
	require.NoError(t, err)

	// the expired holder releasing late must not free worker-b's lease
	require.NoError(t, c.Release(ctx, old))
	_, err = c.Acquire(ctx, testKey(), "worker-c", time.Minute)
	assert.ErrorIs(t, err, domain.ErrHeld)
}

func TestMemoryCoordinatorSingleWinnerUnderContention(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCoordinator()

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := c.Acquire(ctx, testKey(), string(rune('a'+n)), time.Minute); err == nil {
				granted.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(1), granted.Load())
}
