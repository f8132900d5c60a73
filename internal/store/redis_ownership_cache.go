package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOwnershipCache implements OwnershipCache for Redis. Entries are a
// performance cache over the flow store's ownership column; a miss or a
// stale entry is never an error condition for callers, who fall back to
// the store.
type RedisOwnershipCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisOwnershipCache creates a new Redis ownership cache
func NewRedisOwnershipCache(host string, port int, password string, db, poolSize int, logger *zap.Logger) (*RedisOwnershipCache, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisOwnershipCache{
		client: client,
		logger: logger,
	}, nil
}

// GetOwner retrieves the cached owner of a flow
func (c *RedisOwnershipCache) GetOwner(ctx context.Context, flowID string) (string, error) {
	tenantID, err := c.client.Get(ctx, ownershipKey(flowID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return tenantID, nil
}

// SetOwner caches the owner of a flow
func (c *RedisOwnershipCache) SetOwner(ctx context.Context, flowID, tenantID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, ownershipKey(flowID), tenantID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache flow ownership: %w", err)
	}
	return nil
}

// DeleteOwner removes a flow's cached ownership
func (c *RedisOwnershipCache) DeleteOwner(ctx context.Context, flowID string) error {
	if err := c.client.Del(ctx, ownershipKey(flowID)).Err(); err != nil {
		return fmt.Errorf("failed to delete flow ownership: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity
func (c *RedisOwnershipCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisOwnershipCache) Close() error {
	return c.client.Close()
}

func ownershipKey(flowID string) string {
	return fmt.Sprintf("flow:owner:%s", flowID)
}
