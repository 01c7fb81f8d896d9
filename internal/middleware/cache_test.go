package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/config"
	"github.com/iliyamo/fleet-usage-control/internal/utils"
)

func cacheContext(t *testing.T, path, token string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath(path)
	return c
}

// Two users asking for the same personal listing must never share a
// cache entry, and an unauthenticated request must not match either.
func TestCacheKeySeparatesCallers(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}

	tokA, err := utils.NewAccessToken(testSecret, 1, "motorista", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	tokB, err := utils.NewAccessToken(testSecret, 2, "motorista", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	keyA := cacheKeyFrom(cfg, cacheContext(t, "/v1/usage-controls/meus", tokA.Token))
	keyB := cacheKeyFrom(cfg, cacheContext(t, "/v1/usage-controls/meus", tokB.Token))
	keyAnon := cacheKeyFrom(cfg, cacheContext(t, "/v1/usage-controls/meus", ""))

	if keyA == keyB {
		t.Fatalf("distinct callers share cache key %s", keyA)
	}
	if keyA == keyAnon || keyB == keyAnon {
		t.Fatal("anonymous request shares a cache key with an authenticated one")
	}
}

func TestCacheKeyStableForSameCaller(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}

	tok, err := utils.NewAccessToken(testSecret, 1, "motorista", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	k1 := cacheKeyFrom(cfg, cacheContext(t, "/v1/vehicles", tok.Token))
	k2 := cacheKeyFrom(cfg, cacheContext(t, "/v1/vehicles", tok.Token))
	if k1 != k2 {
		t.Fatalf("same caller, same route: keys differ (%s vs %s)", k1, k2)
	}

	other := cacheKeyFrom(cfg, cacheContext(t, "/v1/vehicles/available", tok.Token))
	if other == k1 {
		t.Fatal("different routes share a cache key")
	}
}
