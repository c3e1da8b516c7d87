package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xaenou/origami-chat/pkg/cache"
)

const keyPrefix = "usage:"

// RedisStore implements Store using Redis sorted-set timelines: one
// global timeline per provider plus one per (provider, user), scored by
// event timestamp so counts and purges are range operations.
type RedisStore struct {
	rdb *cache.Client
	ttl time.Duration // retention window, refreshed on every write
}

// NewRedisStore creates a Redis-backed usage store. retention should be
// at least the longest configured rate-limit window.
func NewRedisStore(rdb *cache.Client, retention time.Duration) *RedisStore {
	if retention == 0 {
		retention = 24 * time.Hour
	}
	return &RedisStore{
		rdb: rdb,
		ttl: retention,
	}
}

func globalKey(provider string) string {
	return keyPrefix + provider
}

func userKey(provider, userID string) string {
	return fmt.Sprintf("%s%s:user:%s", keyPrefix, provider, userID)
}

// Record appends the event to both timelines in one transaction.
func (s *RedisStore) Record(ctx context.Context, userID, provider string) error {
	now := time.Now().UTC()
	member := uuid.NewString()
	z := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	}

	pipe := s.rdb.Redis().TxPipeline()
	pipe.ZAdd(ctx, globalKey(provider), z)
	pipe.Expire(ctx, globalKey(provider), s.ttl)
	pipe.ZAdd(ctx, userKey(provider, userID), z)
	pipe.Expire(ctx, userKey(provider, userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record usage event: %w", err)
	}
	return nil
}

// CountSince counts events newer than since. With a provider it is a
// single ZCOUNT; without one it sums the matching timelines via SCAN.
func (s *RedisStore) CountSince(ctx context.Context, userID, provider string, since time.Time) (int64, error) {
	min := "(" + strconv.FormatInt(since.UTC().UnixNano(), 10)

	if provider != "" {
		key := globalKey(provider)
		if userID != "" {
			key = userKey(provider, userID)
		}
		n, err := s.rdb.Redis().ZCount(ctx, key, min, "+inf").Result()
		if err != nil {
			return 0, fmt.Errorf("count usage events: %w", err)
		}
		return n, nil
	}

	var total int64
	err := s.scanKeys(ctx, func(key string) error {
		if !keyMatchesScope(key, userID) {
			return nil
		}
		n, err := s.rdb.Redis().ZCount(ctx, key, min, "+inf").Result()
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count usage events: %w", err)
	}
	return total, nil
}

// PurgeOlderThan removes events with timestamp <= cutoff from every
// timeline. Idempotent: a second run with the same cutoff removes zero.
// The returned count reflects the global timelines only, so one event
// is not counted twice through its per-user entry.
func (s *RedisStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	max := strconv.FormatInt(cutoff.UTC().UnixNano(), 10)

	var deleted int64
	err := s.scanKeys(ctx, func(key string) error {
		n, err := s.rdb.Redis().ZRemRangeByScore(ctx, key, "-inf", max).Result()
		if err != nil {
			return err
		}
		if !strings.Contains(key, ":user:") {
			deleted += n
		}
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("purge usage events: %w", err)
	}
	return deleted, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx)
}

func (s *RedisStore) scanKeys(ctx context.Context, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Redis().Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// keyMatchesScope reports whether key belongs to the all-provider scope
// for the given user: per-user timelines for that user, or the global
// timelines when userID is empty.
func keyMatchesScope(key, userID string) bool {
	if userID == "" {
		return !strings.Contains(key, ":user:")
	}
	return strings.HasSuffix(key, ":user:"+userID)
}
