// Package metrics Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal 抓取次数, status: hit, miss, error
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feeds",
			Name:      "fetch_total",
			Help:      "Feed fetches by cache status",
		},
		[]string{"status"},
	)

	// FetchDuration 回源请求耗时
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feeds",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of origin requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RefreshFeedsTotal 每个订阅源的刷新结果, outcome: success, failed
	RefreshFeedsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feeds",
			Name:      "refresh_feeds_total",
			Help:      "Refreshed feeds by outcome",
		},
		[]string{"outcome", "stage"},
	)

	// NewArticlesTotal 新入库的文章数
	NewArticlesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "feeds",
			Name:      "new_articles_total",
			Help:      "Articles inserted by refresh",
		},
	)

	// RefreshDuration 单个用户一次刷新的耗时
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feeds",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a user's refresh cycle in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// ReapedArticlesTotal 清理的过期文章数
	ReapedArticlesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "feeds",
			Name:      "reaped_articles_total",
			Help:      "Expired articles deleted by the reaper",
		},
	)

	// ReaderTotal 阅读模式提取次数, outcome: ok, empty, error
	ReaderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feeds",
			Name:      "reader_total",
			Help:      "Reader mode extractions by outcome",
		},
		[]string{"outcome"},
	)
)
