package service

import (
	"context"
	"time"

	"go-feeds/internal/fetcher"
	"go-feeds/internal/model"
)

// Fetcher 由 fetcher.FetchCache 实现
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, bypassCache bool) ([]byte, fetcher.CacheStatus, error)
}

// RefreshStore 刷新流程需要的存储操作
type RefreshStore interface {
	GetFeeds(ctx context.Context, userID string, limit int) ([]model.Feed, error)
	GetArticleIDs(ctx context.Context, userID string) ([]string, error)
	CommitFeedSuccess(ctx context.Context, feedID string, articles []model.Article, patch model.FeedPatch) (int64, error)
	MarkFeedFailed(ctx context.Context, feedID string, at time.Time) error
	StaleUserIDs(ctx context.Context, cutoff time.Time) ([]string, error)
}

// ArticleStore 文章列表与已读标记
type ArticleStore interface {
	GetFeeds(ctx context.Context, userID string, limit int) ([]model.Feed, error)
	ListActiveArticles(ctx context.Context, userID, feedID string, now time.Time) ([]model.Article, error)
	GetReadIDs(ctx context.Context, userID string) ([]string, error)
	MarkRead(ctx context.Context, userID string, articleIDs []string, at time.Time) error
}

func utcNow() time.Time {
	return time.Now().UTC()
}
