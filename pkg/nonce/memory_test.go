// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package nonce_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-app-signature/pkg/nonce"
)

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}

	store := nonce.NewMemoryStore(nonce.WithMemoryClock(clock.Now), nonce.WithSweepInterval(time.Hour))

	reserved, err := store.Reserve(ctx, "app1", "n1", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = store.Reserve(ctx, "app1", "n1", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)

	// nonces are scoped per app
	reserved, err = store.Reserve(ctx, "app2", "n1", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)

	clock.Advance(10*time.Minute - time.Millisecond)

	reserved, err = store.Reserve(ctx, "app1", "n1", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)

	clock.Advance(time.Millisecond)

	reserved, err = store.Reserve(ctx, "app1", "n1", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}

	store := nonce.NewMemoryStore(nonce.WithMemoryClock(clock.Now), nonce.WithSweepInterval(time.Minute))

	for _, n := range []string{"a", "b", "c"} {
		_, err := store.Reserve(ctx, "app1", n, 30*time.Second)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, store.Len())

	clock.Advance(time.Minute)

	_, err := store.Reserve(ctx, "app1", "d", 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := nonce.NewMemoryStore().Reserve(ctx, "app1", "n1", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStoreParallel(t *testing.T) {
	for range 20 {
		store := nonce.NewMemoryStore()

		var (
			accepted atomic.Int32
			wg       sync.WaitGroup
		)

		start := make(chan struct{})

		for range 16 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				<-start

				reserved, err := store.Reserve(context.Background(), "app1", "same", time.Minute)
				assert.NoError(t, err)

				if reserved {
					accepted.Add(1)
				}
			}()
		}

		close(start)
		wg.Wait()

		assert.EqualValues(t, 1, accepted.Load())
	}
}
