package server_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/prerender-hub/prerender-hub/internal/cache"
	"github.com/prerender-hub/prerender-hub/internal/facade"
	"github.com/prerender-hub/prerender-hub/internal/proxy"
	"github.com/prerender-hub/prerender-hub/internal/server"
)

// TestCacheFlowEndToEnd 覆盖完整链路：未命中回源、异步落盘、再次请求命中、
// no-cache 旁路，全部通过对外的 HTTP 行为断言。
func TestCacheFlowEndToEnd(t *testing.T) {
	var upstreamCalls int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstreamCalls, 1)
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Set-Cookie", "session=secret")
		io.WriteString(w, "<html>page</html>")
	}))
	defer upstream.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := cache.NewStore(cache.Options{
		Root:   t.TempDir(),
		TTL:    time.Hour,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	cacheFacade := facade.New(store, []int{200, 301, 404}, logger)
	forwarder, err := proxy.NewForwarder(upstream.URL, &http.Client{Timeout: 2 * time.Second}, logger)
	if err != nil {
		t.Fatalf("forwarder error: %v", err)
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Cache:      cacheFacade.Handler(),
		Proxy:      forwarder,
		ListenPort: 3000,
	})
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	// 1. 冷请求：回源并返回正文。
	resp := doRequest(t, app, "http://cache.local/page", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Header.Get(facade.HeaderCacheHit) == "true" {
		t.Fatalf("cold request must not hit the cache")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<html>page</html>" {
		t.Fatalf("unexpected body: %q", body)
	}
	cacheFacade.Flush()

	// 2. 热请求：磁盘命中，不再回源，敏感头不回放。
	resp = doRequest(t, app, "http://cache.local/page", nil)
	if resp.Header.Get(facade.HeaderCacheHit) != "true" {
		t.Fatalf("warm request should hit the cache")
	}
	body, _ = io.ReadAll(resp.Body)
	if string(body) != "<html>page</html>" {
		t.Fatalf("cached body mismatch: %q", body)
	}
	if resp.Header.Get("Content-Type") != "text/html" {
		t.Fatalf("cacheable header should be replayed")
	}
	if resp.Header.Get("Set-Cookie") != "" {
		t.Fatalf("set-cookie must never be replayed from cache")
	}
	if got := atomic.LoadInt64(&upstreamCalls); got != 1 {
		t.Fatalf("upstream should be called once, got %d", got)
	}

	// 3. no-cache 请求：旁路缓存，重新回源。
	resp = doRequest(t, app, "http://cache.local/page", map[string]string{"Cache-Control": "no-cache"})
	if resp.Header.Get(facade.HeaderCacheHit) == "true" {
		t.Fatalf("no-cache request must bypass the cache")
	}
	cacheFacade.Flush()
	if got := atomic.LoadInt64(&upstreamCalls); got != 2 {
		t.Fatalf("bypass should reach upstream, calls=%d", got)
	}
}

func doRequest(t *testing.T, app *fiber.App, url string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("GET", url, nil)
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}
