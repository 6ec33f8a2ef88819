package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/uninote/uninote-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	allowed, count, err := client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, int64(1), count)
	require.Equal(t, time.Minute, mr.TTL(client.RateLimitKey("login:ip:1.2.3.4")))

	allowed, count, err = client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, int64(2), count)

	allowed, _, err = client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	mr.FastForward(time.Minute + time.Second)
	allowed, count, err = client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed, "window should reset after the ttl")
	require.Equal(t, int64(1), count)
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	key := client.IdempotencyKey("stripe-webhook", "evt_1")

	ok, err := client.SetNX(ctx, key, "processing", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "processing", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := client.LockKey("cron")
	require.NoError(t, client.Set(ctx, key, "owner-a", time.Minute))

	deleted, err := client.CompareAndDelete(ctx, key, "owner-b")
	require.NoError(t, err)
	require.False(t, deleted)
	require.True(t, mr.Exists(key))

	deleted, err = client.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, mr.Exists(key))

	deleted, err = client.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	require.False(t, deleted, "missing keys are a no-op")
}

func TestIncrWithTTLWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	n, err := client.IncrWithTTL(ctx, "counter", 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Zero(t, mr.TTL("counter"))
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "un:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "un:rate_limit:scope", client.RateLimitKey("scope"))
	require.Equal(t, "un:session:access:abc", client.AccessSessionKey("abc"))
	require.Equal(t, "un:lock:cron", client.LockKey("cron"))
	require.Equal(t, "un:idempotency:scope", client.IdempotencyKey("scope", " "), "empty parts are skipped")
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	require.Error(t, client.Ping(context.Background()))
	_, err := client.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7})
	require.NoError(t, err)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
}
