package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func downClient() *Client {
	return New(Config{
		Addr:           "127.0.0.1:1",
		Timeout:        100 * time.Millisecond,
		RedialInterval: time.Hour,
	}, zap.NewNop().Sugar())
}

func TestHashKeyDeterministic(t *testing.T) {
	t.Parallel()

	a := HashKey("app:user:list", "alice", "", "10", "0")
	b := HashKey("app:user:list", "alice", "", "10", "0")
	if a != b {
		t.Fatalf("same inputs hashed differently: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "app:user:list:") {
		t.Fatalf("key missing prefix: %q", a)
	}

	c := HashKey("app:user:list", "bob", "", "10", "0")
	if a == c {
		t.Fatal("different inputs produced the same key")
	}
}

func TestDegradedOperations(t *testing.T) {
	t.Parallel()

	c := downClient()
	ctx := context.Background()

	if c.Available(ctx) {
		t.Fatal("expected unavailable client")
	}
	if err := c.Set(ctx, "k", "v", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Set: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.Keys(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Keys: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.Incr(ctx, "k", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Incr: expected ErrUnavailable, got %v", err)
	}
	if err := c.Delete(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Delete: expected ErrUnavailable, got %v", err)
	}
}

func TestRememberFallsThroughWhenDown(t *testing.T) {
	t.Parallel()

	c := downClient()
	calls := 0
	loader := func(context.Context) (string, error) {
		calls++
		return "loaded", nil
	}

	v, err := Remember(context.Background(), c, "k", time.Minute, loader)
	if err != nil {
		t.Fatalf("Remember error: %v", err)
	}
	if v != "loaded" || calls != 1 {
		t.Fatalf("unexpected result: v=%q calls=%d", v, calls)
	}

	// With the cache down every call reloads.
	if _, err := Remember(context.Background(), c, "k", time.Minute, loader); err != nil {
		t.Fatalf("Remember error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected loader to run again, calls=%d", calls)
	}
}

func TestRememberPropagatesLoaderError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("boom")
	_, err := Remember(context.Background(), downClient(), "k", time.Minute, func(context.Context) (int, error) {
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestCatalogueCoversKnownPrefixes(t *testing.T) {
	t.Parallel()

	names := map[string]bool{}
	for _, c := range Catalogue() {
		names[c.Name] = true
	}
	for _, want := range []string{PrefixAccessToken, PrefixCaptcha, PrefixSysConfig, PrefixUserList} {
		if !names[want] {
			t.Errorf("catalogue missing %q", want)
		}
	}
}
