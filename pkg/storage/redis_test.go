//go:build integration

package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisContainer starts a Redis container for testing
func setupRedisContainer(t *testing.T) (*redis.RedisContainer, string) {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		redis.WithSnapshotting(10, 1),
		redis.WithLogLevel(redis.LogLevelVerbose),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	addr := strings.TrimPrefix(endpoint, "redis://")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return redisContainer, addr
}

func TestRedisStore_NewRedisStore_Success(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisStore_NewRedisStore_InvalidArgs(t *testing.T) {
	if _, err := NewRedisStore("", "", 0, time.Minute); err == nil {
		t.Error("expected error for empty address")
	}
	if _, err := NewRedisStore("localhost:6379", "", -1, time.Minute); err == nil {
		t.Error("expected error for negative db")
	}
	if _, err := NewRedisStore("invalid:99999", "", 0, time.Minute); err == nil {
		t.Error("expected error for invalid address")
	}
}

func TestRedisStore_PutGet(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	fetchedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	want := Entry{Key: ciPT, Body: []byte(`{"zone":"PT","history":[]}`), FetchedAt: fetchedAt}

	if err := store.Put(ctx, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := store.Get(ctx, ciPT)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if string(got.Body) != string(want.Body) {
		t.Errorf("Body = %s, want %s", got.Body, want.Body)
	}
	if !got.FetchedAt.Equal(fetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", got.FetchedAt, fetchedAt)
	}

	raw := goredis.NewClient(&goredis.Options{Addr: addr})
	defer raw.Close()
	if n, err := raw.Exists(ctx, "gridinsight:history:carbon-intensity:PT").Result(); err != nil || n != 1 {
		t.Errorf("expected namespaced key to exist, n=%d err=%v", n, err)
	}
}

func TestRedisStore_Get_NotFound(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	_, found, err := store.Get(context.Background(), Key{Dataset: "power-breakdown", Zone: "FR"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestRedisStore_InvalidKey(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	bad := Key{Dataset: "carbon-intensity", Zone: "PT:*"}
	if err := store.Put(context.Background(), Entry{Key: bad}); err == nil {
		t.Error("expected error for invalid key on Put")
	}
	if _, _, err := store.Get(context.Background(), bad); err == nil {
		t.Error("expected error for invalid key on Get")
	}
}

func TestRedisStore_RetentionExpiry(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Second)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, Entry{Key: ciPT, FetchedAt: time.Now()}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, found, err := store.Get(ctx, ciPT); err != nil || found {
		t.Errorf("expected entry to expire, found=%v err=%v", found, err)
	}
}

func TestRedisStore_GetOrFetchSharedAcrossInstances(t *testing.T) {
	_, addr := setupRedisContainer(t)

	a, err := NewRedisStore(addr, "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer a.Close()
	b, err := NewRedisStore(addr, "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer b.Close()

	fetch := &countingFetch{body: []byte(`{"history": []}`)}
	ctx := context.Background()

	if _, err := GetOrFetch(ctx, a, ciPT, time.Minute, nil, fetch.Fetch); err != nil {
		t.Fatalf("GetOrFetch via a failed: %v", err)
	}
	res, err := GetOrFetch(ctx, b, ciPT, time.Minute, nil, fetch.Fetch)
	if err != nil {
		t.Fatalf("GetOrFetch via b failed: %v", err)
	}
	if !res.Hit {
		t.Error("second instance should hit the shared cache")
	}
	if n := fetch.calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
}

func TestRedisStore_Concurrency(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := Key{Dataset: "power-breakdown", Zone: fmt.Sprintf("Z%d", id)}
			if err := store.Put(ctx, Entry{Key: key, Body: []byte(`{}`), FetchedAt: time.Now()}); err != nil {
				t.Errorf("Put %d failed: %v", id, err)
			}
			if _, found, err := store.Get(ctx, key); err != nil || !found {
				t.Errorf("Get %d: found=%v err=%v", id, found, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestRedisStore_CloseIdempotent(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
