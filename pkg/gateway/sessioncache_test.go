package gateway

import (
	"testing"
	"time"
)

func TestSessionCachePutGet(t *testing.T) {
	cache := NewSessionCache(time.Minute, 10)
	entry := SessionCacheEntry{Token: "tok-1", Tier: "standard", SchemaStatus: readyStatus}

	cache.Put("tok-1", entry)

	got, ok := cache.Get("tok-1")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Token != entry.Token || got.Tier != entry.Tier {
		t.Errorf("Get() = %+v, want %+v", got, entry)
	}
}

func TestSessionCacheMissReturnsFalse(t *testing.T) {
	cache := NewSessionCache(time.Minute, 10)

	if _, ok := cache.Get("never-put"); ok {
		t.Error("Get() of an absent token returned ok = true")
	}
}

func TestSessionCacheExpiresAfterTTL(t *testing.T) {
	cache := NewSessionCache(10*time.Millisecond, 10)
	cache.Put("tok-1", SessionCacheEntry{Token: "tok-1"})

	time.Sleep(30 * time.Millisecond)

	if _, ok := cache.Get("tok-1"); ok {
		t.Error("Get() returned an entry past its TTL")
	}
}

func TestSessionCacheInvalidate(t *testing.T) {
	cache := NewSessionCache(time.Minute, 10)
	cache.Put("tok-1", SessionCacheEntry{Token: "tok-1"})

	cache.Invalidate("tok-1")

	if _, ok := cache.Get("tok-1"); ok {
		t.Error("Get() returned an entry after Invalidate")
	}
}
