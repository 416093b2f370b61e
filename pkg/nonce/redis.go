// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package nonce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetNXClient is the subset of the redis client used by RedisStore.
type SetNXClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisStore is a Store backed by Redis.
//
// The reservation is a single SET NX PX command.
type RedisStore struct {
	client SetNXClient
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisStore creates a RedisStore using the given client.
func NewRedisStore(client SetNXClient) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// DialRedis connects to Redis and verifies the connection.
func DialRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, appID, nonce string, ttl time.Duration) (bool, error) {
	reserved, err := s.client.SetNX(ctx, Key(appID, nonce), "used", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve nonce: %w", err)
	}

	return reserved, nil
}
