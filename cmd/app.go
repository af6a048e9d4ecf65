package cmd

import (
	"context"
	"fmt"

	"go-feeds/config"
	"go-feeds/internal/cache"
	"go-feeds/internal/fetcher"
	"go-feeds/internal/logger"
	"go-feeds/internal/service"
	"go-feeds/internal/store"
)

// app 组装好的服务
type app struct {
	store     *store.Store
	cache     cache.Cache
	fetcher   *fetcher.FetchCache
	refresh   *service.RefreshService
	articles  *service.ArticleService
	feeds     *service.FeedService
	favorites *service.FavoriteService
	reaper    *service.ReaperService
	status    *service.StatusService
	reader    *service.ReaderService
	closers   []func() error
}

func newApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a := &app{store: st, closers: []func() error{st.Close}}

	c, err := newCache(cfg.Cache)
	if err != nil {
		a.close()
		return nil, err
	}
	a.cache = c
	if closer, ok := c.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	a.fetcher = fetcher.New(c, nil, fetcher.Options{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		CacheTTL:     cfg.Cache.TTL,
		HostInterval: cfg.Fetch.HostInterval,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})

	a.refresh = service.NewRefreshService(st, a.fetcher, service.RefreshOptions{
		Workers:    cfg.Refresh.Workers,
		MaxFeeds:   cfg.Refresh.MaxFeeds,
		ArticleTTL: cfg.Refresh.ArticleTTL,
	})
	a.articles = service.NewArticleService(st, cfg.Refresh.StaleAfter)
	a.feeds = service.NewFeedService(st, a.fetcher, cfg.Refresh.MaxFeeds)
	a.favorites = service.NewFavoriteService(st)
	a.reaper = service.NewReaperService(st, cfg.Refresh.ReapBatchSize)
	a.status = service.NewStatusService(st)
	a.reader = service.NewReaderService(nil, service.ReaderOptions{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})
	return a, nil
}

func newCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := rc.Ping(context.Background()); err != nil {
			// 缓存不可用不影响抓取, 只记录
			logger.Warnf("[cache] redis %s unreachable: %v", cfg.RedisURL, err)
		}
		logger.Infof("[cache] using redis")
		return rc, nil
	case "memory", "":
		logger.Infof("[cache] using in-process memory cache")
		return cache.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

// healthCheck 数据库必须可用, 缓存失败不算不健康
func (a *app) healthCheck(ctx context.Context) error {
	return a.store.Ping(ctx)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("[app] close: %v", err)
		}
	}
}
