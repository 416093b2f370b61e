// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package nonce

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// MemoryStore is an in-process Store.
//
// It is only suitable for a single verifying process.
type MemoryStore struct {
	now       func() time.Time
	entries   map[string]time.Time
	lastSweep time.Time

	sweepInterval time.Duration
	mu            sync.Mutex
}

// MemoryStoreOption customizes the MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock sets the clock used for expiration.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// WithSweepInterval sets how often expired entries are removed.
func WithSweepInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.sweepInterval = interval
	}
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore(opt ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		now:           time.Now,
		entries:       map[string]time.Time{},
		sweepInterval: defaultSweepInterval,
	}

	for _, o := range opt {
		o(s)
	}

	s.lastSweep = s.now()

	return s
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(ctx context.Context, appID, nonce string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := Key(appID, nonce)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if now.Sub(s.lastSweep) >= s.sweepInterval {
		s.sweep(now)
	}

	if expiresAt, ok := s.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}

	s.entries[key] = now.Add(ttl)

	return true, nil
}

// Len returns the number of tracked nonces, including expired ones not swept yet.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *MemoryStore) sweep(now time.Time) {
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}

	s.lastSweep = now
}
