package storage

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"
)

func TestMemoryResponseCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	c := NewMemoryResponseCache(time.Hour)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "page-1", []byte(`{"listing":[]}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(59 * time.Minute)
	if _, ok, _ := c.Get(ctx, "page-1"); !ok {
		t.Error("entry should still be live after 59 minutes")
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "page-1"); ok {
		t.Error("entry should have expired after one hour")
	}
}

func TestMemoryResponseCacheZeroTTLDisables(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryResponseCache(0)
	_ = c.Set(ctx, "k", []byte("v"))
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("zero TTL should store nothing")
	}
}

// Requires a Redis server; set REDIS_TEST_URL to run.
func TestRedisResponseCache(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := NewRedisResponseCache(ctx, url, time.Minute)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer c.Close()

	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("Get before Set: ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, key, []byte("body")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || string(got) != "body" {
		t.Errorf("Get: got %q ok=%v err=%v", got, ok, err)
	}
}
