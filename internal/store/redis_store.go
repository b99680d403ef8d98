package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	friendsCountKeyPrefix = "social:friends:"
	hotKeyScoresKey       = "social:hotkey:scores"
)

// FriendCountStore defines Redis operations for friends-count caching and
// hot key tracking.
type FriendCountStore interface {
	GetFriendsCount(ctx context.Context, userID string) (int64, bool, error)
	SetFriendsCount(ctx context.Context, userID string, count int64) error
	CondIncrFriendsCount(ctx context.Context, userID string) error
	CondDecrFriendsCount(ctx context.Context, userID string) error
	RecordAccess(ctx context.Context, userID string) error
	GetTopHotKeys(ctx context.Context, n int64) ([]string, error)
	ResetHotKeyScores(ctx context.Context) error
	Close() error
}

// RedisFriendCountStore implements FriendCountStore backed by Redis.
type RedisFriendCountStore struct {
	client *redis.Client
}

// NewRedisFriendCountStore creates a new Redis-backed friend count store.
func NewRedisFriendCountStore(address, password string, db int) (*RedisFriendCountStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisFriendCountStore{client: client}, nil
}

func friendsCountKey(userID string) string {
	return friendsCountKeyPrefix + userID
}

// GetFriendsCount returns the cached friends count for a user.
// Returns (count, true, nil) on hit, (0, false, nil) on miss, (0, false, err) on error.
func (s *RedisFriendCountStore) GetFriendsCount(ctx context.Context, userID string) (int64, bool, error) {
	val, err := s.client.Get(ctx, friendsCountKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get friends count: %w", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse friends count: %w", err)
	}
	return count, true, nil
}

// SetFriendsCount sets the friends count for a user in Redis.
func (s *RedisFriendCountStore) SetFriendsCount(ctx context.Context, userID string, count int64) error {
	err := s.client.Set(ctx, friendsCountKey(userID), count, 0).Err()
	if err != nil {
		return fmt.Errorf("redis set friends count: %w", err)
	}
	return nil
}

// condIncrScript atomically increments the key only if it exists.
// Returns 1 if incremented, 0 if key did not exist.
var condIncrScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
  return redis.call("INCR", key)
end
return 0
`)

// condDecrScript atomically decrements the key only if it exists and result >= 0.
// Returns the new value if decremented, 0 if key did not exist.
var condDecrScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
  local val = tonumber(redis.call("GET", key))
  if val and val > 0 then
    return redis.call("DECR", key)
  end
end
return 0
`)

// CondIncrFriendsCount atomically increments the friends count only if the
// key exists. Counts absent from the cache stay absent until a read
// populates them from the database.
func (s *RedisFriendCountStore) CondIncrFriendsCount(ctx context.Context, userID string) error {
	err := condIncrScript.Run(ctx, s.client, []string{friendsCountKey(userID)}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis cond incr friends count: %w", err)
	}
	return nil
}

// CondDecrFriendsCount atomically decrements the friends count only if the key exists.
func (s *RedisFriendCountStore) CondDecrFriendsCount(ctx context.Context, userID string) error {
	err := condDecrScript.Run(ctx, s.client, []string{friendsCountKey(userID)}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis cond decr friends count: %w", err)
	}
	return nil
}

// RecordAccess increments the access score for a user in the hot key sorted set.
func (s *RedisFriendCountStore) RecordAccess(ctx context.Context, userID string) error {
	err := s.client.ZIncrBy(ctx, hotKeyScoresKey, 1, userID).Err()
	if err != nil {
		return fmt.Errorf("redis record access: %w", err)
	}
	return nil
}

// GetTopHotKeys returns the top-n most accessed user IDs.
func (s *RedisFriendCountStore) GetTopHotKeys(ctx context.Context, n int64) ([]string, error) {
	keys, err := s.client.ZRevRange(ctx, hotKeyScoresKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get top hot keys: %w", err)
	}
	return keys, nil
}

// ResetHotKeyScores deletes the hot key scores sorted set.
func (s *RedisFriendCountStore) ResetHotKeyScores(ctx context.Context) error {
	err := s.client.Del(ctx, hotKeyScoresKey).Err()
	if err != nil {
		return fmt.Errorf("redis reset hot key scores: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisFriendCountStore) Close() error {
	return s.client.Close()
}

// Ensure interface is satisfied at compile time.
var _ FriendCountStore = (*RedisFriendCountStore)(nil)
