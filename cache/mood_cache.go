package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// MoodCache 缓存用户播放历史中出现过的心情集合
type MoodCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMoodCache returns a cache backed by client. A nil client yields a cache
// that always misses.
func NewMoodCache(client *redis.Client, ttl time.Duration) *MoodCache {
	return &MoodCache{client: client, ttl: ttl}
}

// GetMoodKey 根据用户ID生成心情集合的Redis键
func GetMoodKey(userID int64) string {
	return fmt.Sprintf("moods:%d", userID)
}

// Get returns the cached distinct moods. ok is false on a miss.
func (c *MoodCache) Get(ctx context.Context, userID int64) (moods []string, ok bool, err error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	val, err := c.client.Get(ctx, GetMoodKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get moods from cache: %w", err)
	}
	if err := json.Unmarshal(val, &moods); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached moods: %w", err)
	}
	return moods, true, nil
}

// Set stores the distinct moods with the configured TTL.
func (c *MoodCache) Set(ctx context.Context, userID int64, moods []string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if moods == nil {
		moods = []string{}
	}
	data, err := json.Marshal(moods)
	if err != nil {
		return fmt.Errorf("failed to marshal moods: %w", err)
	}
	if err := c.client.Set(ctx, GetMoodKey(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache moods: %w", err)
	}
	return nil
}

// Invalidate drops the cached set, called after a new play is recorded.
func (c *MoodCache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, GetMoodKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate moods: %w", err)
	}
	return nil
}
