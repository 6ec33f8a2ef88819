package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"

	"github.com/uninote/uninote-backend/pkg/redis"
)

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(redislib.NewClient(&redislib.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	first, err := NewRedisLock(client, "cron-worker", "worker-a", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(client, "cron-worker", "worker-b", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if !mr.Exists("un:lock:cron-worker") {
		t.Fatalf("expected namespaced lock key")
	}
	if value, _ := mr.Get("un:lock:cron-worker"); !strings.HasPrefix(value, "worker-a/") {
		t.Fatalf("expected holder-prefixed token, got %q", value)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second acquire must fail: ok=%v err=%v", ok, err)
	}
	// a non-owner release leaves the lock in place
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if !mr.Exists("un:lock:cron-worker") {
		t.Fatalf("lock released by non-owner")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after ttl: ok=%v err=%v", ok, err)
	}
}
