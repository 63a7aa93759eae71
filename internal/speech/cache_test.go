package speech

import (
	"testing"
	"time"
)

func TestCacheHitAndExpiry(t *testing.T) {
	c := NewCache(time.Minute, 8)
	base := time.Now()
	c.now = func() time.Time { return base }

	key := CacheKey("polly", "Joanna", "Thanks for calling.")
	if _, ok := c.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Put(key, []byte{1, 2, 3})

	got, ok := c.Get(key)
	if !ok || len(got) != 3 {
		t.Fatalf("expected hit with 3 bytes, got ok=%v len=%d", ok, len(got))
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss after TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be removed, len=%d", c.Len())
	}
}

func TestCacheKeyDistinguishesVoiceAndProvider(t *testing.T) {
	a := CacheKey("polly", "Joanna", "hello")
	b := CacheKey("polly", "Matthew", "hello")
	d := CacheKey("elevenlabs", "Joanna", "hello")
	if a == b || a == d || b == d {
		t.Fatal("keys with different provider or voice must differ")
	}
}

func TestCacheInsertionOrderEviction(t *testing.T) {
	c := NewCache(time.Hour, 2)
	c.Put("a", []byte{1})
	c.Put("b", []byte{2})
	c.Put("c", []byte{3})

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("second entry should remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("newest entry should remain")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestCachePutRefreshKeepsOrder(t *testing.T) {
	c := NewCache(time.Hour, 2)
	c.Put("a", []byte{1})
	c.Put("b", []byte{2})
	c.Put("a", []byte{9}) // refresh, not reinsertion
	c.Put("c", []byte{3})

	// "a" kept its original slot, so it is still the eviction candidate.
	if _, ok := c.Get("a"); ok {
		t.Fatal("refreshed entry keeps insertion order and should be evicted first")
	}
	got, ok := c.Get("b")
	if !ok || got[0] != 2 {
		t.Fatal("entry b should survive unchanged")
	}
}
