// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTTL is the default lifetime of a cached secret.
	DefaultCacheTTL = time.Minute
	// DefaultNotFoundTTL is the default lifetime of a cached "not found" answer.
	DefaultNotFoundTTL = 10 * time.Second
)

type cacheEntry struct {
	Secret    Secret    `json:"secret"`
	ExpiresAt time.Time `json:"expires_at"`
	NotFound  bool      `json:"not_found,omitempty"`
}

// CachingResolver caches the secrets returned by another Resolver.
//
// A cached secret is never served after its TTL, so a revocation becomes effective at most TTL later.
// Unknown applications are cached as well, for the shorter not found TTL, so that
// repeated lookups of known and unknown applications take the same time.
// A newly added application becomes visible at most not found TTL later.
// Invalidate makes either change effective at once.
type CachingResolver struct {
	upstream    Resolver
	cache       *bigcache.BigCache
	logger      *zap.Logger
	now         func() time.Time
	group       singleflight.Group
	ttl         time.Duration
	notFoundTTL time.Duration
}

// CacheOption customizes the CachingResolver.
type CacheOption func(*CachingResolver)

// WithCacheTTL sets the lifetime of cached secrets.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(r *CachingResolver) {
		r.ttl = ttl
	}
}

// WithNotFoundTTL sets the lifetime of cached "not found" answers.
//
// It is capped by the cache TTL.
func WithNotFoundTTL(ttl time.Duration) CacheOption {
	return func(r *CachingResolver) {
		r.notFoundTTL = ttl
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(r *CachingResolver) {
		r.logger = logger
	}
}

// WithCacheClock sets the clock used to expire entries.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(r *CachingResolver) {
		r.now = now
	}
}

// NewCachingResolver wraps the upstream resolver with a cache.
//
// The cache is released when ctx is canceled or Close is called.
func NewCachingResolver(ctx context.Context, upstream Resolver, opt ...CacheOption) (*CachingResolver, error) {
	r := &CachingResolver{
		upstream:    upstream,
		logger:      zap.NewNop(),
		now:         time.Now,
		ttl:         DefaultCacheTTL,
		notFoundTTL: DefaultNotFoundTTL,
	}

	for _, o := range opt {
		o(r)
	}

	if r.ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", r.ttl)
	}

	if r.notFoundTTL <= 0 {
		return nil, fmt.Errorf("not found ttl must be positive, got %s", r.notFoundTTL)
	}

	r.notFoundTTL = min(r.notFoundTTL, r.ttl)

	config := bigcache.DefaultConfig(r.ttl)
	config.Shards = 64
	config.CleanWindow = r.ttl
	config.Verbose = false

	cache, err := bigcache.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	r.cache = cache

	return r, nil
}

// Resolve implements Resolver.
func (r *CachingResolver) Resolve(ctx context.Context, appID string) (*Secret, error) {
	if entry, ok := r.get(appID); ok {
		if entry.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, appID)
		}

		return &entry.Secret, nil
	}

	ch := r.group.DoChan(appID, func() (any, error) {
		// the lookup is shared between callers, so it must not be bound to the first caller's context
		lookupCtx := context.WithoutCancel(ctx)

		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc

			lookupCtx, cancel = context.WithDeadline(lookupCtx, deadline)
			defer cancel()
		}

		s, err := r.upstream.Resolve(lookupCtx, appID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.set(appID, cacheEntry{NotFound: true, ExpiresAt: r.now().Add(r.notFoundTTL)})
			}

			return nil, err
		}

		r.set(s.AppID, cacheEntry{Secret: *s, ExpiresAt: r.now().Add(r.ttl)})

		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		s := *res.Val.(*Secret) //nolint:forcetypeassert

		return &s, nil
	}
}

// Invalidate drops the cached answer for the app.
func (r *CachingResolver) Invalidate(appID string) {
	if err := r.cache.Delete(appID); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		r.logger.Warn("failed to invalidate cached secret", zap.String("app_id", appID), zap.Error(err))
	}
}

// Reset drops all cached secrets.
func (r *CachingResolver) Reset() error {
	return r.cache.Reset()
}

// Close releases the cache.
func (r *CachingResolver) Close() error {
	return r.cache.Close()
}

func (r *CachingResolver) get(appID string) (*cacheEntry, bool) {
	data, err := r.cache.Get(appID)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			r.logger.Warn("failed to read cached secret", zap.String("app_id", appID), zap.Error(err))
		}

		return nil, false
	}

	var entry cacheEntry

	if err = json.Unmarshal(data, &entry); err != nil {
		r.Invalidate(appID)

		return nil, false
	}

	if !r.now().Before(entry.ExpiresAt) {
		r.Invalidate(appID)

		return nil, false
	}

	return &entry, true
}

func (r *CachingResolver) set(appID string, entry cacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	if err = r.cache.Set(appID, data); err != nil {
		r.logger.Warn("failed to cache secret", zap.String("app_id", appID), zap.Error(err))
	}
}
