package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterForwardsToProxy(t *testing.T) {
	var proxied bool
	app := newTestApp(t, ProxyHandlerFunc(func(c fiber.Ctx) error {
		proxied = true
		return c.SendStatus(fiber.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "http://cache.local/some/page", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 status, got %d", resp.StatusCode)
	}
	if !proxied {
		t.Fatalf("proxy handler should be invoked")
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRouterHealthzSkipsCacheAndProxy(t *testing.T) {
	var cacheCalls, proxyCalls int
	app, err := NewApp(AppOptions{
		Logger: silentLogger(),
		Cache: func(c fiber.Ctx) error {
			cacheCalls++
			return c.Next()
		},
		Proxy: ProxyHandlerFunc(func(c fiber.Ctx) error {
			proxyCalls++
			return c.SendStatus(fiber.StatusNoContent)
		}),
		ListenPort: 3000,
	})
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	req := httptest.NewRequest("GET", "http://cache.local/-/healthz", nil)
	resp, appErr := app.Test(req)
	if appErr != nil {
		t.Fatalf("app.Test failed: %v", appErr)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cacheCalls != 0 || proxyCalls != 0 {
		t.Fatalf("diagnostics must bypass cache/proxy (cache=%d proxy=%d)", cacheCalls, proxyCalls)
	}

	body, _ := io.ReadAll(resp.Body)
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("healthz payload not JSON: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected healthz payload: %v", payload)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, ProxyHandlerFunc(func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "http://cache.local/-/metrics", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	passthrough := func(c fiber.Ctx) error { return c.Next() }
	proxy := ProxyHandlerFunc(func(c fiber.Ctx) error { return nil })

	cases := []AppOptions{
		{Cache: passthrough, Proxy: proxy, ListenPort: 3000},
		{Logger: silentLogger(), Proxy: proxy, ListenPort: 3000},
		{Logger: silentLogger(), Cache: passthrough, ListenPort: 3000},
		{Logger: silentLogger(), Cache: passthrough, Proxy: proxy},
	}
	for i, opts := range cases {
		if _, err := NewApp(opts); err == nil {
			t.Fatalf("case %d: expected option validation error", i)
		}
	}
}

func newTestApp(t *testing.T, proxy ProxyHandler) *fiber.App {
	t.Helper()
	app, err := NewApp(AppOptions{
		Logger:     silentLogger(),
		Cache:      func(c fiber.Ctx) error { return c.Next() },
		Proxy:      proxy,
		ListenPort: 3000,
	})
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
