// Package cachetest provides the shared compliance suite for cache.Cache
// implementations.
package cachetest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Strob0t/SiteForge/internal/port/cache"
)

// Run checks the behaviour the site cache relies on: values round-trip
// byte for byte, deletes are idempotent, a zero TTL means "until deleted"
// (generation tokens) and keys may contain the ':' separators used by
// site entry keys.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	get := func(t *testing.T, key string) ([]byte, bool) {
		t.Helper()
		v, ok, err := c.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
		return v, ok
	}
	set := func(t *testing.T, key string, v []byte, ttl time.Duration) {
		t.Helper()
		if err := c.Set(ctx, key, v, ttl); err != nil {
			t.Fatalf("Set(%q): %v", key, err)
		}
	}

	t.Run("RoundTrip", func(t *testing.T) {
		key := "site:t-acme:g0:g1:products/widget"
		want := []byte(`{"tenant":{"id":"t-acme"},"blocks":[]}`)
		set(t, key, want, time.Minute)
		got, ok := get(t, key)
		if !ok || !bytes.Equal(got, want) {
			t.Fatalf("got %q (found=%v), want %q", got, ok, want)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		if _, ok := get(t, "site:t-none:g0:g0:"); ok {
			t.Fatal("expected miss for unknown key")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		set(t, "gen:t-acme", []byte("a"), 0)
		set(t, "gen:t-acme", []byte("b"), 0)
		if got, ok := get(t, "gen:t-acme"); !ok || string(got) != "b" {
			t.Fatalf("expected latest generation b, got %q (found=%v)", got, ok)
		}
	})

	t.Run("ZeroTTLPersists", func(t *testing.T) {
		set(t, "gen:*", []byte("g"), 0)
		if _, ok := get(t, "gen:*"); !ok {
			t.Fatal("expected zero-TTL entry to be retained")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		set(t, "entity:t-acme:g0:g1:product/widget", []byte("x"), time.Minute)
		for range 2 {
			if err := c.Delete(ctx, "entity:t-acme:g0:g1:product/widget"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
		}
		if _, ok := get(t, "entity:t-acme:g0:g1:product/widget"); ok {
			t.Fatal("expected miss after Delete")
		}
	})
}
