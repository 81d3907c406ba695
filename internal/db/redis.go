package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore wraps a redis client and context for operations.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// scheduleCacheTTL bounds how long a resolved (market, air_date) -> schedule
// mapping is cached before the orchestrator re-resolves it from refdata.
const scheduleCacheTTL = 10 * time.Minute

// CachedActiveSchedule returns a previously cached schedule ID for a
// (marketID, airDate) pair, avoiding a refdata.Store lookup on every spot in
// a batch that shares the same market and day.
func (r *RedisStore) CachedActiveSchedule(marketID int, airDate string) (int, bool) {
	key := scheduleCacheKey(marketID, airDate)
	val, err := r.Client.Get(r.Ctx, key).Result()
	if errors.Is(err, redis.Nil) || err != nil {
		return 0, false
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SetCachedActiveSchedule caches a resolved schedule ID for a (marketID,
// airDate) pair.
func (r *RedisStore) SetCachedActiveSchedule(marketID int, airDate string, scheduleID int) error {
	key := scheduleCacheKey(marketID, airDate)
	return r.Client.Set(r.Ctx, key, scheduleID, scheduleCacheTTL).Err()
}

func scheduleCacheKey(marketID int, airDate string) string {
	return fmt.Sprintf("spotlang:schedule:%d:%s", marketID, airDate)
}

// BatchLock is a distributed lock over a batch run, so two orchestrator
// processes never race to reprocess the same category concurrently.
type BatchLock struct {
	store *RedisStore
	key   string
	token string
}

// AcquireBatchLock attempts to take an exclusive lock for a batch run,
// identified by runID, using SETNX with an expiry so a crashed holder never
// wedges the lock forever.
func (r *RedisStore) AcquireBatchLock(category string, runID string, ttl time.Duration) (*BatchLock, bool, error) {
	key := fmt.Sprintf("spotlang:batch-lock:%s", category)
	ok, err := r.Client.SetNX(r.Ctx, key, runID, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &BatchLock{store: r, key: key, token: runID}, true, nil
}

// Release removes the lock, but only if it's still held by the same run:
// a stale unlock from a run that already timed out must not clear a newer
// holder's lock.
func (l *BatchLock) Release() error {
	if l == nil {
		return nil
	}
	val, err := l.store.Client.Get(l.store.Ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release batch lock: %w", err)
	}
	if val != l.token {
		return nil
	}
	return l.store.Client.Del(l.store.Ctx, l.key).Err()
}

// RefdataSnapshotCacheKey is the key the reference-data snapshot is cached
// under between orchestrator reloads.
const RefdataSnapshotCacheKey = "spotlang:refdata:snapshot"

// CacheRefdataSnapshot stores a JSON-marshaled refdata snapshot payload so a
// cold orchestrator start can skip a full Postgres reload when the grid
// hasn't changed recently.
func (r *RedisStore) CacheRefdataSnapshot(payload interface{}, ttl time.Duration) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal refdata snapshot: %w", err)
	}
	return r.Client.Set(r.Ctx, RefdataSnapshotCacheKey, b, ttl).Err()
}

// GetCachedRefdataSnapshot unmarshals a previously cached snapshot into dst.
// ok is false when there was no cached snapshot.
func (r *RedisStore) GetCachedRefdataSnapshot(dst interface{}) (bool, error) {
	val, err := r.Client.Get(r.Ctx, RefdataSnapshotCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get cached refdata snapshot: %w", err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("unmarshal cached refdata snapshot: %w", err)
	}
	return true, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
