package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

func TestIncrWithTTLExpiresOnFirstHitOnly(t *testing.T) {
	ctx := context.Background()
	store := newScriptedStore()
	client := &Client{store: store}
	key := client.RateLimitKey("login", "ip:1.2.3.4")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, []time.Duration{time.Minute}, store.expiries[key])
}

func TestCompareAndDeleteChecksOwner(t *testing.T) {
	ctx := context.Background()
	store := newScriptedStore()
	client := &Client{store: store}
	key := client.LockKey("cron-worker:prod")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := client.CompareAndDelete(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = client.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestAccountTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newScriptedStore()}

	key := client.AccountTokenKey("confirm", "abc")
	require.NoError(t, client.Set(ctx, key, "user-1", 10*time.Minute))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	assert.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	_, err := client.IncrWithTTL(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"):      "mp:idempotency:scope:id",
		client.RateLimitKey("login", "email:abc"): "mp:rate_limit:login:email:abc",
		client.AccessSessionKey("jti"):            "mp:session:access:jti",
		client.AccountTokenKey("reset", "tok"):    "mp:token:reset:tok",
		client.LockKey(""):                        "mp:lock",
		client.LockKey(" cron-worker:dev "):       "mp:lock:cron-worker:dev",
	}
	for got, want := range cases {
		assert.Equal(t, want, got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DB: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

// scriptedStore emulates the two lua scripts the client sends.
type scriptedStore struct {
	data     map[string]string
	counters map[string]int64
	expiries map[string][]time.Duration
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{
		data:     map[string]string{},
		counters: map[string]int64{},
		expiries: map[string][]time.Duration{},
	}
}

func (s *scriptedStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (s *scriptedStore) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	s.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (s *scriptedStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *scriptedStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := s.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	s.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (s *scriptedStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(s.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (s *scriptedStore) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case incrWithTTLScript:
		s.counters[key]++
		if s.counters[key] == 1 {
			s.expiries[key] = append(s.expiries[key], time.Duration(args[0].(int64))*time.Millisecond)
		}
		return redis.NewCmdResult(s.counters[key], nil)
	case compareAndDeleteScript:
		if v, ok := s.data[key]; ok && v == args[0].(string) {
			delete(s.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}
