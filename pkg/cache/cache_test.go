package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, hit, err := c.Get(ctx, "ilp:abc"); hit || err != nil {
		t.Fatalf("Get on empty cache = hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, "ilp:abc", []byte(`{"x":1}`), 0); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "ilp:abc")
	if err != nil || !hit {
		t.Fatalf("Get = hit %v, err %v, want hit", hit, err)
	}
	if string(data) != `{"x":1}` {
		t.Errorf("Get = %s, want {\"x\":1}", data)
	}

	// Setting the same key twice leaves the cache unchanged.
	if err := c.Set(ctx, "ilp:abc", []byte(`{"x":1}`), 0); err != nil {
		t.Fatal(err)
	}
	again, _, _ := c.Get(ctx, "ilp:abc")
	if string(again) != string(data) {
		t.Errorf("second Set changed entry to %s", again)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry not removed")
	}
}

func TestFileCacheCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := c.path("k")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("Get = hit %v, err %v, want clean miss", hit, err)
	}
}

func TestFileCacheConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Repeat("x", 1<<16)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Set(ctx, "shared", []byte(want), 0); err != nil {
				t.Error(err)
			}
			if data, hit, err := c.Get(ctx, "shared"); err != nil || !hit || string(data) != want {
				t.Errorf("Get = %d bytes, hit %v, err %v", len(data), hit, err)
			}
		}()
	}
	wg.Wait()
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, hit, _ := c.Get(ctx, fmt.Sprintf("k%d", i)); hit {
			t.Errorf("k%d survived Clear", i)
		}
	}
}

// countingCache records backend reads.
type countingCache struct {
	Cache
	gets int
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	return c.Cache.Get(ctx, key)
}

func TestLRUCache(t *testing.T) {
	ctx := context.Background()
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	back := &countingCache{Cache: fc}
	c := NewLRUCache(back, 2)

	if err := c.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatal(err)
	}
	if data, hit, _ := c.Get(ctx, "a"); !hit || string(data) != "1" {
		t.Fatalf("Get(a) = %q, %v", data, hit)
	}
	if back.gets != 0 {
		t.Errorf("backend gets = %d, want 0 for in-memory hit", back.gets)
	}

	// Evict a from memory, then read it through the backend.
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Set(ctx, "c", []byte("3"), 0)
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if data, hit, _ := c.Get(ctx, "a"); !hit || string(data) != "1" {
		t.Fatalf("Get(a) after eviction = %q, %v", data, hit)
	}
	if back.gets != 1 {
		t.Errorf("backend gets = %d, want 1", back.gets)
	}
}

func TestLRUCacheWithoutBackend(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(nil, 0)
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if data, hit, _ := c.Get(ctx, "k"); !hit || string(data) != "v" {
		t.Errorf("Get = %q, %v, want v, true", data, hit)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h3 := Hash([]byte("world")); h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestFingerprint(t *testing.T) {
	type problem struct {
		Nodes []string `hash:"set"`
		Cell  float64
	}
	a, err := Fingerprint(problem{Nodes: []string{"a", "b"}, Cell: 100})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Fingerprint(problem{Nodes: []string{"b", "a"}, Cell: 100})
	c, _ := Fingerprint(problem{Nodes: []string{"a", "b"}, Cell: 50})
	if a != b {
		t.Errorf("set order changed fingerprint: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different problems share a fingerprint")
	}
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.SolutionKey("00ff"); got != "ilp:00ff" {
		t.Errorf("SolutionKey = %s, want ilp:00ff", got)
	}

	type opts struct{ Grid string }
	lk1 := k.LayoutKey("hash123", opts{Grid: "100%"})
	lk2 := k.LayoutKey("hash123", opts{Grid: "50%"})
	if lk1 == lk2 {
		t.Error("Different layout options should produce different keys")
	}
	if !strings.HasPrefix(lk1, "layout:") {
		t.Errorf("LayoutKey = %s, want layout: prefix", lk1)
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "staging:")

	if got := scoped.SolutionKey("abc"); got != "staging:ilp:abc" {
		t.Errorf("ScopedKeyer SolutionKey = %s", got)
	}
	if got := scoped.LayoutKey("h", nil); !strings.HasPrefix(got, "staging:layout:") {
		t.Errorf("ScopedKeyer LayoutKey should be prefixed: %s", got)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	if key := scoped.SolutionKey("k"); key != "prefix:ilp:k" {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(ErrUnavailable)
	if err == nil {
		t.Fatal("Retryable should return wrapped error")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != ErrUnavailable.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if IsRetryable(ErrUnavailable) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	old := retryInterval
	retryInterval = time.Millisecond
	defer func() { retryInterval = old }()
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("success: err = %v, calls = %d, want nil, 1", err, calls)
	}

	calls = 0
	errPermanent := errors.New("permanent")
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return errPermanent
	})
	if err != errPermanent || calls != 1 {
		t.Errorf("permanent: err = %v, calls = %d, want %v, 1", err, calls, errPermanent)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrUnavailable)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retry: err = %v, calls = %d, want nil, 2", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(ErrUnavailable)
	})
	if !errors.Is(err, ErrUnavailable) || calls != 3 {
		t.Errorf("exhausted: err = %v, calls = %d, want %v, 3", err, calls, ErrUnavailable)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrUnavailable)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}
