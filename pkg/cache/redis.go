package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultScanCount = 100

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client    *redis.Client
	scanCount int64
}

// NewRedis wraps client. scanCount is the SCAN COUNT hint and the delete
// batch size used by DeleteMatching.
func NewRedis(client *redis.Client, scanCount int) *Redis {
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &Redis{client: client, scanCount: int64(scanCount)}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// SetIfAbsent uses SET NX EX so a slow re-populating reader never clobbers a
// value written by a faster one.
func (r *Redis) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis set nx %s: %w", key, err)
	}
	return stored, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteMatching walks the keyspace with SCAN so large keyspaces are never
// enumerated in a single blocking call. Matches are collected until the
// cursor completes and only then deleted in batches, so deletes never move
// the cursor under the scan.
func (r *Redis) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, r.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan %s: %w", pattern, err)
	}

	removed := 0
	for start := 0; start < len(keys); start += int(r.scanCount) {
		end := min(start+int(r.scanCount), len(keys))
		n, err := r.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return removed, fmt.Errorf("redis del: %w", err)
		}
		removed += int(n)
	}
	return removed, nil
}
