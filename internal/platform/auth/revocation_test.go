package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryRevocationStore_Revoke(t *testing.T) {
	store := NewMemoryRevocationStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	if err := store.Revoke(ctx, "token-abc-123", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}

	revoked, err := store.IsRevoked(ctx, "token-abc-123")
	if err != nil {
		t.Fatalf("IsRevoked() error: %v", err)
	}
	if !revoked {
		t.Error("expected token to be revoked")
	}

	revoked, _ = store.IsRevoked(ctx, "unknown-jti")
	if revoked {
		t.Error("expected unknown JTI to not be revoked")
	}
}

func TestMemoryRevocationStore_Cleanup(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	store.Revoke(ctx, "expired", time.Now().Add(-time.Minute))
	store.Revoke(ctx, "live", time.Now().Add(time.Hour))

	store.cleanup()

	if store.Count() != 1 {
		t.Fatalf("expected 1 entry after cleanup, got %d", store.Count())
	}
	if revoked, _ := store.IsRevoked(ctx, "live"); !revoked {
		t.Error("expected live token to remain revoked")
	}
}

func TestMemoryRevocationStore_CloseTwice(t *testing.T) {
	store := NewMemoryRevocationStore(time.Minute)
	store.Close()
	store.Close()
}

func TestMemoryRevocationStore_Concurrent(t *testing.T) {
	store := NewMemoryRevocationStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		jti := string(rune('a' + i%26))
		go func() {
			defer wg.Done()
			store.Revoke(ctx, jti, time.Now().Add(time.Hour))
		}()
		go func() {
			defer wg.Done()
			store.IsRevoked(ctx, jti)
		}()
	}
	wg.Wait()
}

type fakeRedis struct {
	keys   map[string]time.Duration
	setErr error
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.keys[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisRevocationStore(t *testing.T) {
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	store := NewRedisRevocationStore(fake)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Revoke(ctx, "jti-1", now.Add(30*time.Minute)); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}
	if ttl := fake.keys["revoked:jti-1"]; ttl != 30*time.Minute {
		t.Errorf("expected key TTL 30m, got %s", ttl)
	}

	revoked, err := store.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Errorf("expected jti-1 revoked, got %v (err %v)", revoked, err)
	}
	revoked, _ = store.IsRevoked(ctx, "jti-2")
	if revoked {
		t.Error("expected jti-2 not revoked")
	}
}

func TestRedisRevocationStore_ExpiredTokenIsNoop(t *testing.T) {
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	store := NewRedisRevocationStore(fake)

	if err := store.Revoke(context.Background(), "old", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}
	if len(fake.keys) != 0 {
		t.Errorf("expected no key for an already expired token, got %d", len(fake.keys))
	}
}

func TestRedisRevocationStore_SetError(t *testing.T) {
	fake := &fakeRedis{keys: map[string]time.Duration{}, setErr: errors.New("connection refused")}
	store := NewRedisRevocationStore(fake)

	if err := store.Revoke(context.Background(), "jti", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error when redis fails")
	}
}
