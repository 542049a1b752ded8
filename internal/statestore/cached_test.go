package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, 30*time.Minute, nil), mr
}

func TestCachedStoreLoadPopulatesCache(t *testing.T) {
	cache, mr := newTestCache(t)
	durable := NewMemoryStore(time.Hour)
	store := NewCachedStore(durable, cache, time.Hour)
	ctx := context.Background()

	state, _ := durable.Load(ctx, "s1", "api")
	state.Slots.Need = "family"
	if err := durable.Save(ctx, state); err != nil {
		t.Fatalf("seed durable: %v", err)
	}

	loaded, err := store.Load(ctx, "s1", "api")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Slots.Need != "family" {
		t.Errorf("unexpected state: %+v", loaded)
	}
	if !mr.Exists(cacheKeyPrefix + "s1") {
		t.Error("load miss should populate the cache")
	}
}

func TestCachedStoreServesFromCache(t *testing.T) {
	cache, _ := newTestCache(t)
	durable := NewMemoryStore(time.Hour)
	store := NewCachedStore(durable, cache, time.Hour)
	ctx := context.Background()

	cached := conversation.NewState("s1", "api")
	cached.Slots.Need = "city"
	cached.Version = 4
	cached.LastUpdatedAt = time.Now()
	cache.Set(ctx, cached)

	loaded, err := store.Load(ctx, "s1", "api")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Slots.Need != "city" || loaded.Version != 4 {
		t.Errorf("expected cache hit, got %+v", loaded)
	}
}

func TestCachedStoreSaveWritesDurableFirst(t *testing.T) {
	cache, mr := newTestCache(t)
	durable := NewMemoryStore(time.Hour)
	store := NewCachedStore(durable, cache, time.Hour)
	ctx := context.Background()

	state, _ := store.Load(ctx, "s1", "api")
	state.Slots.Need = "family"
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The durable copy must survive cache eviction.
	mr.FlushAll()
	loaded, err := store.Load(ctx, "s1", "api")
	if err != nil {
		t.Fatalf("Load after eviction: %v", err)
	}
	if loaded.Slots.Need != "family" || loaded.Version != 1 {
		t.Errorf("durable store must hold the truth, got %+v", loaded)
	}
}

func TestCachedStoreFailedSaveInvalidatesCache(t *testing.T) {
	cache, mr := newTestCache(t)
	durable := NewMemoryStore(time.Hour)
	store := NewCachedStore(durable, cache, time.Hour)
	ctx := context.Background()

	first, _ := store.Load(ctx, "s1", "api")
	second := first.Clone()
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	// Stale version loses the race; the cache entry must not outlive the
	// rejected write.
	if err := store.Save(ctx, second); err == nil {
		t.Fatal("expected version conflict")
	}
	if mr.Exists(cacheKeyPrefix + "s1") {
		t.Error("rejected save should invalidate the cache entry")
	}
}

func TestCacheUnavailableDegradesToDurable(t *testing.T) {
	cache, mr := newTestCache(t)
	durable := NewMemoryStore(time.Hour)
	store := NewCachedStore(durable, cache, time.Hour)
	ctx := context.Background()

	state, _ := durable.Load(ctx, "s1", "api")
	state.Slots.Need = "work"
	if err := durable.Save(ctx, state); err != nil {
		t.Fatalf("seed durable: %v", err)
	}

	mr.Close()

	loaded, err := store.Load(ctx, "s1", "api")
	if err != nil {
		t.Fatalf("cache outage must not fail the load: %v", err)
	}
	if loaded.Slots.Need != "work" {
		t.Errorf("expected durable fallback, got %+v", loaded)
	}
	if err := store.Save(ctx, loaded); err != nil {
		t.Errorf("cache outage must not fail the save: %v", err)
	}
}
