package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
}

func newMemoryRedis() *memoryRedis { return &memoryRedis{values: map[string]string{}} }

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	store := newMemoryRedis()
	first, err := NewRedisLock(store, "sf:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "sf:lock:cron", time.Minute)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if _, held := store.values["sf:lock:cron"]; !held {
		t.Fatal("non-owner release dropped the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	ok, _ = second.Acquire(ctx)
	if !ok {
		t.Fatal("expected lock to be free after owner release")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisLock(newMemoryRedis(), "", 0); err == nil {
		t.Fatal("expected error for empty key")
	}
	lock, err := NewRedisLock(newMemoryRedis(), "k", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", lock.ttl)
	}
}
