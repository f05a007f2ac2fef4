// Package metrics 暴露缓存命中率与清扫效果的 Prometheus 计数器，
// 由 /-/metrics 诊断端点输出。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prerender",
			Name:      "cache_hits_total",
			Help:      "Total responses served from the disk cache",
		},
	)

	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prerender",
			Name:      "cache_misses_total",
			Help:      "Total cache lookups that fell through to the pipeline",
		},
	)

	cacheStores = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prerender",
			Name:      "cache_stores_total",
			Help:      "Total responses persisted to the disk cache",
		},
	)

	cacheExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prerender",
			Name:      "cache_expired_total",
			Help:      "Total entries removed because their TTL elapsed",
		},
	)

	sweepRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prerender",
			Name:      "sweep_removed_total",
			Help:      "Total expired entries reclaimed by tree sweeps",
		},
	)
)

// Init 注册所有计数器；进程启动时调用一次。
func Init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheStores, cacheExpired, sweepRemoved)
}

// Handler 返回 /-/metrics 使用的 Prometheus 输出端点。
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncCacheHit()   { cacheHits.Inc() }
func IncCacheMiss()  { cacheMisses.Inc() }
func IncCacheStore() { cacheStores.Inc() }
func IncExpired()    { cacheExpired.Inc() }

func AddSweepRemoved(n int) {
	if n > 0 {
		sweepRemoved.Add(float64(n))
	}
}
