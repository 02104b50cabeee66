package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := ScoreKey("node-1")

	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Set(ctx, key, []byte(`{"score":1}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := c.Get(ctx, key)
	if !ok || string(got) != `{"score":1}` {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss after delete")
	}

	_ = c.Set(ctx, ScoreKey("a"), []byte("1"), time.Minute)
	_ = c.Set(ctx, ScoreKey("b"), []byte("2"), time.Minute)
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := c.Get(ctx, ScoreKey("a")); ok {
		t.Fatal("expected miss after clear")
	}
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache(time.Minute, time.Minute))
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestMemoryCacheCopiesValue(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	ctx := context.Background()
	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, 0)
	buf[0] = 'z'
	got, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("cached value aliased caller buffer: %q", got)
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewRedisCacheFromURL(context.Background(), url, time.Minute)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	exerciseCache(t, c)
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	_ = c.Set(context.Background(), "k", []byte("v"), time.Minute)
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatal("noop cache must never hit")
	}
}
