package cli

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/matzehuels/octi/pkg/cache"
	"github.com/matzehuels/octi/pkg/pipeline"
)

func TestCacheDir(t *testing.T) {
	t.Run("xdg", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
		dir, err := cacheDir()
		if err != nil {
			t.Fatalf("cacheDir() error: %v", err)
		}
		if want := filepath.Join("/tmp/xdg", "octi"); dir != want {
			t.Errorf("cacheDir() = %q, want %q", dir, want)
		}
	})

	t.Run("home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CACHE_HOME", "")
		t.Setenv("HOME", home)
		dir, err := cacheDir()
		if err != nil {
			t.Fatalf("cacheDir() error: %v", err)
		}
		if want := filepath.Join(home, ".cache", "octi"); dir != want {
			t.Errorf("cacheDir() = %q, want %q", dir, want)
		}
	})
}

func TestResolveCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	tests := []struct {
		in, want string
	}{
		{"", "/tmp/xdg/octi"},
		{".", "/tmp/xdg/octi"},
		{"/var/cache/octi", "/var/cache/octi"},
		{"cache", "cache"},
	}
	for _, tt := range tests {
		got, err := resolveCacheDir(tt.in)
		if err != nil {
			t.Fatalf("resolveCacheDir(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("resolveCacheDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestComponentPath(t *testing.T) {
	tests := []struct {
		path  string
		comp  int
		multi bool
		want  string
	}{
		{"out.dot", 0, false, "out.dot"},
		{"out.dot", 2, true, "out.2.dot"},
		{"dir/model.lp", 1, true, "dir/model.1.lp"},
		{"noext", 3, true, "noext.3"},
	}
	for _, tt := range tests {
		if got := componentPath(tt.path, tt.comp, tt.multi); got != tt.want {
			t.Errorf("componentPath(%q, %d, %v) = %q, want %q", tt.path, tt.comp, tt.multi, got, tt.want)
		}
	}
}

func TestNewCache(t *testing.T) {
	c := New(io.Discard, LogInfo)
	ctx := context.Background()

	cc, keyer := c.newCache(ctx, pipeline.DefaultOptions(), true)
	if _, ok := cc.(cache.NullCache); !ok {
		t.Errorf("newCache(noCache) = %T, want cache.NullCache", cc)
	}
	if keyer != nil {
		t.Errorf("newCache(noCache) keyer = %T, want nil", keyer)
	}

	opts := pipeline.DefaultOptions()
	opts.ILPCacheDir = t.TempDir()
	cc, _ = c.newCache(ctx, opts, false)
	if _, ok := cc.(*cache.LRUCache); !ok {
		t.Errorf("newCache(dir) = %T, want *cache.LRUCache", cc)
	}
	if err := cc.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() = %v", err)
	}
	if got, ok, err := cc.Get(ctx, "k"); err != nil || !ok || string(got) != "v" {
		t.Errorf("Get() = %q, %v, %v, want v, true, nil", got, ok, err)
	}
}
