// Package cache 提供抓取结果使用的 KV 缓存。
package cache

//go:generate mockgen -source=cache.go -destination=mock_cache.go -package=cache

import (
	"context"
	"time"
)

// Cache KV 缓存, 实现需保证单个 Get/Put 的原子性
type Cache interface {
	// Get 返回缓存值, 未命中时 ok 为 false
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put 写入缓存, ttl 到期后失效
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// FeedKey 原始订阅源内容的缓存键
func FeedKey(url string) string {
	return "rss:" + url
}
