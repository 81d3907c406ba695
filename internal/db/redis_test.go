package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedActiveSchedule_RoundTrip(t *testing.T) {
	ms, store := setupTestRedis(t)
	defer ms.Close()

	_, ok := store.CachedActiveSchedule(1, "2024-06-03")
	assert.False(t, ok)

	require.NoError(t, store.SetCachedActiveSchedule(1, "2024-06-03", 42))

	id, ok := store.CachedActiveSchedule(1, "2024-06-03")
	require.True(t, ok)
	assert.Equal(t, 42, id)
}

func TestAcquireBatchLock_SecondAcquireFails(t *testing.T) {
	ms, store := setupTestRedis(t)
	defer ms.Close()

	lock, ok, err := store.AcquireBatchLock("LANGUAGE_REQUIRED", "run-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, lock)

	_, ok, err = store.AcquireBatchLock("LANGUAGE_REQUIRED", "run-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release())

	_, ok, err = store.AcquireBatchLock("LANGUAGE_REQUIRED", "run-3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBatchLock_ReleaseIgnoresStaleToken(t *testing.T) {
	ms, store := setupTestRedis(t)
	defer ms.Close()

	lock, ok, err := store.AcquireBatchLock("REVIEW", "run-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ms.FastForward(2 * time.Minute)

	newLock, ok, err := store.AcquireBatchLock("REVIEW", "run-2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release())

	_, stillHeld, err := store.AcquireBatchLock("REVIEW", "run-3", time.Minute)
	require.NoError(t, err)
	assert.False(t, stillHeld, "stale release must not clear a newer holder's lock")

	require.NoError(t, newLock.Release())
}

func TestRefdataSnapshotCache_RoundTrip(t *testing.T) {
	ms, store := setupTestRedis(t)
	defer ms.Close()

	var dst map[string]int
	ok, err := store.GetCachedRefdataSnapshot(&dst)
	require.NoError(t, err)
	assert.False(t, ok)

	payload := map[string]int{"languages": 9, "blocks": 120}
	require.NoError(t, store.CacheRefdataSnapshot(payload, time.Minute))

	ok, err = store.GetCachedRefdataSnapshot(&dst)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, dst["languages"])
	assert.Equal(t, 120, dst["blocks"])
}
