// Package cache 页面缓存：首页渲染结果按 key 缓存一段时间，写操作不主动失效。
package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PageCache 渲染结果缓存，需支持并发读写，冲突时后写覆盖
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Clear 立即清空全部页面缓存（运维/测试使用）
	Clear(ctx context.Context) error
}

var (
	hits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yatube_page_cache_hits_total",
		Help: "Page cache hits by backend",
	}, []string{"backend"})

	misses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yatube_page_cache_misses_total",
		Help: "Page cache misses by backend",
	}, []string{"backend"})

	clears = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yatube_page_cache_clears_total",
		Help: "Explicit page cache clears by backend",
	}, []string{"backend"})
)

func record(backend string, hit bool) {
	if hit {
		hits.WithLabelValues(backend).Inc()
		return
	}
	misses.WithLabelValues(backend).Inc()
}
