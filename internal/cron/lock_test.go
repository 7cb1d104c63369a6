package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	err    error
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "mp:lock:cron-worker:dev", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "mp:lock:cron-worker:dev", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A replica that never held the lock releases nothing.
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "mp:lock:cron-worker:dev")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockDoesNotDropSuccessorsLock(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	first, _ := NewRedisLock(store, "k", time.Minute)
	second, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()

	ok, _ := first.Acquire(ctx)
	require.True(t, ok)
	// The first holder's key expires and another replica takes over.
	delete(store.values, "k")
	ok, _ = second.Acquire(ctx)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx))
	assert.Contains(t, store.values, "k")
}

func TestRedisLockAcquireError(t *testing.T) {
	lock, err := NewRedisLock(&memoryLockStore{err: errors.New("down")}, "k", 0)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	assert.Error(t, err)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(&memoryLockStore{}, "", 0)
	assert.Error(t, err)
}
