package facade

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/prerender-hub/prerender-hub/internal/cache"
	"github.com/prerender-hub/prerender-hub/internal/logging"
	"github.com/prerender-hub/prerender-hub/internal/metrics"
)

const (
	// localsCacheHit 标记本次响应来自缓存，存储钩子据此跳过自缓存。
	localsCacheHit = "_prerender_cache_hit"

	// HeaderCacheHit 对外暴露命中状态，便于管道观测。
	HeaderCacheHit = "X-Prerender-Cache-Hit"
)

// Facade 封装缓存读写策略。缓存层任何失败都不允许影响外层请求，
// 读失败退化为未命中，写失败只记日志。
type Facade struct {
	store   cache.Store
	logger  *logrus.Logger
	allowed map[int]struct{}

	pending sync.WaitGroup
}

// New 构造 Facade。statusCodes 为允许落盘的响应状态码白名单。
func New(store cache.Store, statusCodes []int, logger *logrus.Logger) *Facade {
	allowed := make(map[int]struct{}, len(statusCodes))
	for _, code := range statusCodes {
		allowed[code] = struct{}{}
	}
	return &Facade{
		store:   store,
		logger:  logger,
		allowed: allowed,
	}
}

// Handler 把两只管道钩子合并为一个 Fiber 中间件：请求进入时尝试命中缓存，
// 处理器返回后异步落盘。
func (f *Facade) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		served, err := f.serveFromCache(c)
		if served {
			return err
		}

		// 处理器报错时响应里可能只有半截正文，此时绝不落盘。
		if err := c.Next(); err != nil {
			return err
		}
		f.storeResponse(c)
		return nil
	}
}

// Flush 等待所有在途的异步存储完成，用于优雅停机与测试。
func (f *Facade) Flush() {
	f.pending.Wait()
}

// serveFromCache 是“请求到达”钩子：命中时直接输出缓存响应并短路管道。
func (f *Facade) serveFromCache(c fiber.Ctx) (bool, error) {
	if c.Method() != http.MethodGet {
		return false, nil
	}
	if requestsBypass(c.Get(fiber.HeaderCacheControl), c.Get(fiber.HeaderPragma)) {
		f.logger.WithFields(logrus.Fields{
			"action": "cache_bypass",
			"url":    requestKey(c),
		}).Debug("请求声明 no-cache，跳过缓存读取")
		metrics.IncCacheMiss()
		return false, nil
	}

	url := requestKey(c)
	entry, err := f.store.Get(c.Context(), url)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			f.logger.WithError(err).WithFields(logging.CacheFields(url, cache.HashKey(url), false)).
				Warn("cache_get_failed")
		}
		metrics.IncCacheMiss()
		return false, nil
	}

	for name, value := range entry.Headers {
		c.Set(name, value)
	}
	c.Set(HeaderCacheHit, "true")
	c.Locals(localsCacheHit, true)
	c.Status(entry.StatusCode)
	metrics.IncCacheHit()

	f.logger.WithFields(logging.CacheFields(url, cache.HashKey(url), true)).Debug("缓存命中")
	return true, c.Send(entry.Body)
}

// storeResponse 是“响应发送前”钩子：快照响应后交给后台落盘，不拖慢发送。
func (f *Facade) storeResponse(c fiber.Ctx) {
	if c.Method() != http.MethodGet {
		return
	}
	if served, _ := c.Locals(localsCacheHit).(bool); served {
		return
	}

	statusCode := c.Response().StatusCode()
	if _, ok := f.allowed[statusCode]; !ok {
		return
	}

	url := requestKey(c)
	headers := responseHeaders(c)
	body := append([]byte(nil), c.Response().Body()...)

	f.pending.Add(1)
	go func() {
		defer f.pending.Done()
		if err := f.store.Set(context.Background(), url, statusCode, FilterHeaders(headers), body); err != nil {
			f.logger.WithError(err).WithFields(logging.CacheFields(url, cache.HashKey(url), false)).
				Warn("cache_store_failed")
			return
		}
		metrics.IncCacheStore()
	}()
}

// requestKey 取原始请求 URL 作为缓存键，逐字节使用，不做归一化。
func requestKey(c fiber.Ctx) string {
	return string(c.Request().URI().FullURI())
}

func responseHeaders(c fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	c.Response().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})
	return headers
}
