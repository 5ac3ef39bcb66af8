// Package cache provides a small cache layer used to mirror job progress
// for cheap status polling.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is not present in the cache.
var ErrCacheMiss = errors.New("cache miss")

// Client is the cache interface used by the pipeline and API.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// RedisClient implements Client over a Redis connection.
type RedisClient struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisClient connects to Redis using the given URL.
func NewRedisClient(url string) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisClient{rdb: rdb, prefix: "te:"}, nil
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisClient) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

// MemoryClient is an in-process Client used when no Redis is configured
// and in tests. TTLs are honored lazily on read.
type MemoryClient struct {
	mu    sync.RWMutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// NewMemoryClient creates an empty in-process cache.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{items: make(map[string]memoryItem)}
}

func (c *MemoryClient) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return "", ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (c *MemoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) Close() error { return nil }

// ProgressSnapshot is the cached view of a job's progress.
type ProgressSnapshot struct {
	JobID     string    `json:"jobId"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Progress  int       `json:"progress"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const progressTTL = 10 * time.Minute

func progressKey(jobID string) string {
	return "job:progress:" + jobID
}

// StoreProgress writes a job's progress snapshot. Cache failures are not
// fatal to the pipeline; callers may log and continue.
func StoreProgress(ctx context.Context, c Client, snap ProgressSnapshot) error {
	if c == nil {
		return nil
	}
	snap.UpdatedAt = time.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.Set(ctx, progressKey(snap.JobID), string(data), progressTTL)
}

// LoadProgress reads a job's cached progress snapshot.
func LoadProgress(ctx context.Context, c Client, jobID string) (*ProgressSnapshot, error) {
	if c == nil {
		return nil, ErrCacheMiss
	}
	raw, err := c.Get(ctx, progressKey(jobID))
	if err != nil {
		return nil, err
	}
	var snap ProgressSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
