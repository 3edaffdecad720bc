package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/config"
)

func cacheCtx(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/tutors/:id/subjects")
	return c
}

func TestCacheKeyDistinguishesPathParams(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "path_query"}

	a := cacheKeyFrom(cfg, cacheCtx("/v1/tutors/aaa/subjects"))
	b := cacheKeyFrom(cfg, cacheCtx("/v1/tutors/bbb/subjects"))
	if a == b {
		t.Fatalf("key %q shared across different tutor ids", a)
	}

	again := cacheKeyFrom(cfg, cacheCtx("/v1/tutors/aaa/subjects"))
	if a != again {
		t.Fatalf("same request hashed to %q then %q", a, again)
	}
}

func TestCacheKeyIncludesQuery(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "path_query"}

	plain := cacheKeyFrom(cfg, cacheCtx("/v1/users/search"))
	withQ := cacheKeyFrom(cfg, cacheCtx("/v1/users/search?q=alice"))
	if plain == withQ {
		t.Fatal("query string ignored by path_query strategy")
	}
}

func TestEncodeDecodePayload(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	body := []byte(`{"ok":true}`)

	bs, err := encodePayload(http.StatusOK, hdr, body)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	status, gotHdr, gotBody, ok := decodePayload(bs)
	if !ok {
		t.Fatal("decode rejected a valid payload")
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if gotHdr.Get("Content-Type") != "application/json" {
		t.Fatalf("header = %v", gotHdr)
	}
	if string(gotBody) != string(body) {
		t.Fatalf("body = %q", gotBody)
	}

	if _, _, _, ok := decodePayload([]byte("short")); ok {
		t.Fatal("decode accepted a truncated payload")
	}
}
