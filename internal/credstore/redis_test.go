package credstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/tally/internal/client"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test:"), mr
}

func TestRedisStore_GetSetClear(t *testing.T) {
	store, mr := newTestStore(t)

	if _, err := store.Get(client.AccessTokenKey); !errors.Is(err, client.ErrNoCredential) {
		t.Fatalf("Get on empty store: %v, want ErrNoCredential", err)
	}

	if err := store.Set(client.AccessTokenKey, "abc", client.SetOptions{Path: "/"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(client.AccessTokenKey)
	if err != nil || got != "abc" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if v, _ := mr.Get("test:" + client.AccessTokenKey); v != "abc" {
		t.Errorf("raw key = %q, want prefixed key to hold the value", v)
	}

	if err := store.Clear(client.AccessTokenKey); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := store.Clear(client.AccessTokenKey); err != nil {
		t.Errorf("Clear of missing key: %v", err)
	}
	if _, err := store.Get(client.AccessTokenKey); !errors.Is(err, client.ErrNoCredential) {
		t.Errorf("Get after Clear: %v", err)
	}
}

func TestRedisStore_MaxAge(t *testing.T) {
	store, mr := newTestStore(t)

	if err := store.Set(client.RefreshTokenKey, "r1", client.SetOptions{MaxAge: time.Hour}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("test:" + client.RefreshTokenKey); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(client.RefreshTokenKey); !errors.Is(err, client.ErrNoCredential) {
		t.Errorf("Get after expiry: %v, want ErrNoCredential", err)
	}
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.Get(client.AccessTokenKey)
	if err == nil || errors.Is(err, client.ErrNoCredential) {
		t.Errorf("Get with server down = %v, want a connection error", err)
	}
}

func TestRedisStore_SessionPrefix(t *testing.T) {
	store, _ := newTestStore(t)
	session := client.WithKeyPrefix(store, "session:42:")

	if err := client.SaveCredentials(session, client.Credentials{Access: "a", Refresh: "r"}); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	if v, _ := store.Get("session:42:" + client.AccessTokenKey); v != "a" {
		t.Errorf("access = %q", v)
	}
	if err := client.ClearCredentials(session); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}
	if _, err := session.Get(client.RefreshTokenKey); !errors.Is(err, client.ErrNoCredential) {
		t.Errorf("refresh after clear: %v", err)
	}
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := Dial(context.Background(), Options{Addr: mr.Addr(), DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer store.Close()

	if store.prefix != DefaultPrefix {
		t.Errorf("prefix = %q, want %q", store.prefix, DefaultPrefix)
	}
}
