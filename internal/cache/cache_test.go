package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := NewMemoryCache(1 << 20)
	defer c.Close()

	if err := c.Set("https://example.com/a", "<html>a</html>", time.Minute); err != nil {
		t.Fatal(err)
	}

	markup, ok := c.Get("https://example.com/a")
	if !ok || markup != "<html>a</html>" {
		t.Fatalf("got %q, ok=%v", markup, ok)
	}

	if _, ok := c.Get("https://example.com/missing"); ok {
		t.Error("missing key reported as present")
	}
}

func TestExpiry(t *testing.T) {
	c := NewMemoryCache(1 << 20)
	defer c.Close()

	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry reported as present")
	}
}

func TestLRUEviction(t *testing.T) {
	// Room for roughly three small entries.
	c := NewMemoryCache(3 * 300)
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), "x", time.Minute)
	}
	// Touch k0 so k1 becomes the eviction candidate.
	c.Get("k0")

	c.Set("k3", "x", time.Minute)

	if _, ok := c.Get("k1"); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := c.Get("k0"); !ok {
		t.Error("recently used entry was evicted")
	}
}

func TestUpdateExistingKey(t *testing.T) {
	c := NewMemoryCache(1 << 20)
	defer c.Close()

	c.Set("k", "old", time.Minute)
	c.Set("k", "new", time.Minute)

	if markup, _ := c.Get("k"); markup != "new" {
		t.Errorf("got %q after update", markup)
	}
}

func TestClear(t *testing.T) {
	c := NewMemoryCache(1 << 20)
	defer c.Close()

	c.Set("k", "v", time.Minute)
	c.Clear()

	if _, ok := c.Get("k"); ok {
		t.Error("entry survived Clear")
	}
}

func TestKey(t *testing.T) {
	if Key("https://x.test/p", "") != "https://x.test/p" {
		t.Error("bare key should be the URL")
	}
	if Key("https://x.test/p", ".card") != "https://x.test/p::.card" {
		t.Error("selector-scoped key mismatch")
	}
}
