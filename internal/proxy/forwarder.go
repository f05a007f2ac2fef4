// Package proxy forwards cache misses to the configured render upstream and
// streams the answer back through Fiber, where the facade's store hook then
// picks it up. It is deliberately thin: no retries, no rewrite rules.
package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/prerender-hub/prerender-hub/internal/server"
)

// Forwarder 把未命中的请求转发到渲染上游，并原样回流响应。
type Forwarder struct {
	upstream *url.URL
	client   *http.Client
	logger   *logrus.Logger
}

// NewForwarder 构造 Forwarder；upstream 必须是带 scheme 和 host 的合法 URL。
func NewForwarder(upstream string, client *http.Client, logger *logrus.Logger) (*Forwarder, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	parsed, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid upstream url: %s", upstream)
	}
	return &Forwarder{
		upstream: parsed,
		client:   client,
		logger:   logger,
	}, nil
}

// Handle 实现 server.ProxyHandler。上游失败一律映射为 502，绝不 panic。
func (f *Forwarder) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	target := f.buildTarget(c)

	req, err := http.NewRequestWithContext(c.Context(), c.Method(), target, bytes.NewReader(c.Body()))
	if err != nil {
		f.logUpstream(target, requestID, 0, started, err)
		return writeUpstreamError(c, requestID)
	}
	copyRequestHeaders(req, c)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logUpstream(target, requestID, 0, started, err)
		return writeUpstreamError(c, requestID)
	}
	defer resp.Body.Close()

	forwarded := make(http.Header, len(resp.Header))
	server.CopyHeaders(forwarded, resp.Header)
	for key, values := range forwarded {
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
	c.Set("X-Prerender-Upstream", target)
	c.Status(resp.StatusCode)

	_, copyErr := io.Copy(c.Response().BodyWriter(), resp.Body)
	f.logUpstream(target, requestID, resp.StatusCode, started, copyErr)
	if copyErr != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("upstream stream failed: %v", copyErr))
	}
	return nil
}

// buildTarget 在上游基址上拼接本次请求的路径与查询串。
func (f *Forwarder) buildTarget(c fiber.Ctx) string {
	target := *f.upstream
	target.Path = joinPath(f.upstream.Path, string(c.Request().URI().Path()))
	target.RawQuery = string(c.Request().URI().QueryString())
	return target.String()
}

func joinPath(base, request string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(request, "/") {
		request = "/" + request
	}
	return base + request
}

func copyRequestHeaders(req *http.Request, c fiber.Ctx) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := string(key)
		if server.IsHopByHopHeader(name) || strings.EqualFold(name, "Host") {
			return
		}
		req.Header.Add(name, string(value))
	})
}

func writeUpstreamError(c fiber.Ctx, requestID string) error {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "upstream_failed",
	})
}

func (f *Forwarder) logUpstream(target, requestID string, status int, started time.Time, err error) {
	if f.logger == nil {
		return
	}
	fields := logrus.Fields{
		"action":      "proxy",
		"upstream":    target,
		"status":      status,
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		f.logger.WithFields(fields).WithError(err).Warn("回源失败")
		return
	}
	f.logger.WithFields(fields).Info("回源完成")
}
