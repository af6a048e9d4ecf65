package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"go-feeds/internal/dedupe"
	"go-feeds/internal/logger"
	"go-feeds/internal/metrics"
	"go-feeds/internal/model"
	"go-feeds/internal/parser"
)

const (
	DefaultRefreshWorkers = 5
)

// Stage 订阅源失败时所处的阶段
type Stage string

const (
	StageFetch Stage = "fetch"
	StageParse Stage = "parse"
	StageStore Stage = "store"
)

// FailedFeed 单个失败订阅源的说明
type FailedFeed struct {
	FeedID string `json:"feedId"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Stage  Stage  `json:"stage"`
	Error  string `json:"error"`
}

// RefreshStats 一次刷新的汇总
type RefreshStats struct {
	TotalFeeds        int          `json:"totalFeeds"`
	SuccessfulFeeds   int          `json:"successfulFeeds"`
	FailedFeeds       int          `json:"failedFeeds"`
	NewArticles       int          `json:"newArticles"`
	FailedFeedDetails []FailedFeed `json:"failedFeedDetails"`
}

type RefreshResult struct {
	Stats                 RefreshStats `json:"stats"`
	Feeds                 []model.Feed `json:"feeds"`
	ShouldRefreshArticles bool         `json:"shouldRefreshArticles"`
}

type RefreshOptions struct {
	Workers    int
	MaxFeeds   int
	ArticleTTL time.Duration
}

type RefreshService struct {
	store   RefreshStore
	fetcher Fetcher
	parser  *parser.Parser
	opts    RefreshOptions
	now     func() time.Time
}

func NewRefreshService(st RefreshStore, f Fetcher, opts RefreshOptions) *RefreshService {
	if opts.Workers <= 0 {
		opts.Workers = DefaultRefreshWorkers
	}
	if opts.MaxFeeds <= 0 {
		opts.MaxFeeds = DefaultMaxFeeds
	}
	if opts.ArticleTTL <= 0 {
		opts.ArticleTTL = dedupe.ArticleTTL
	}
	s := &RefreshService{
		store:   st,
		fetcher: f,
		opts:    opts,
		now:     utcNow,
	}
	// 缺失发布时间的条目使用本次刷新的时钟
	s.parser = &parser.Parser{Now: func() time.Time { return s.now() }}
	return s
}

// feedResult 单个订阅源的处理结果, 汇总前互不影响
type feedResult struct {
	feed        model.Feed
	newArticles int
	failure     *FailedFeed
}

// RefreshAll 刷新用户的全部订阅源
// 单个订阅源失败只计入统计, 只有加载订阅源或文章 ID 失败才返回错误
func (s *RefreshService) RefreshAll(ctx context.Context, userID string) (*RefreshResult, error) {
	start := time.Now()

	feeds, err := s.store.GetFeeds(ctx, userID, s.opts.MaxFeeds)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	if len(feeds) == 0 {
		return &RefreshResult{
			Stats: RefreshStats{FailedFeedDetails: []FailedFeed{}},
			Feeds: []model.Feed{},
		}, nil
	}

	ids, err := s.store.GetArticleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load article ids: %w", err)
	}
	known := dedupe.NewKnownIDs(ids)
	now := s.now()

	results := make([]feedResult, len(feeds))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, feed := range feeds {
		g.Go(func() error {
			results[i] = s.refreshFeed(ctx, feed, known, now)
			return nil
		})
	}
	_ = g.Wait()

	stats, updated := foldResults(results)
	metrics.NewArticlesTotal.Add(float64(stats.NewArticles))
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	logger.Infof("[refresh] user=%s feeds=%d ok=%d failed=%d new=%d took=%s",
		userID, stats.TotalFeeds, stats.SuccessfulFeeds, stats.FailedFeeds, stats.NewArticles, time.Since(start).Round(time.Millisecond))

	return &RefreshResult{
		Stats:                 stats,
		Feeds:                 updated,
		ShouldRefreshArticles: stats.NewArticles > 0,
	}, nil
}

func (s *RefreshService) refreshFeed(ctx context.Context, feed model.Feed, known *dedupe.KnownIDs, now time.Time) feedResult {
	body, _, err := s.fetcher.Fetch(ctx, feed.URL, true)
	if err != nil {
		return s.fail(ctx, feed, StageFetch, err, now)
	}

	parsed, err := s.parser.Parse(body)
	if err != nil {
		return s.fail(ctx, feed, StageParse, err, now)
	}

	patch := successPatch(feed, parsed, now)
	target := dedupe.Target{
		FeedID:    feed.ID,
		UserID:    feed.UserID,
		FeedTitle: patch.Apply(feed).Title,
	}
	articles, _ := dedupe.Dedupe(target, parsed.Items, known, now, s.opts.ArticleTTL)

	inserted, err := s.store.CommitFeedSuccess(ctx, feed.ID, articles, patch)
	if err != nil {
		return s.fail(ctx, feed, StageStore, err, now)
	}

	metrics.RefreshFeedsTotal.WithLabelValues("success", "").Inc()
	logger.Debugf("[refresh] feed %s: %d items, %d new", feed.URL, len(parsed.Items), inserted)
	return feedResult{feed: patch.Apply(feed), newArticles: int(inserted)}
}

func (s *RefreshService) fail(ctx context.Context, feed model.Feed, stage Stage, cause error, now time.Time) feedResult {
	logger.Warnf("[refresh] feed %s failed at %s: %v", feed.URL, stage, cause)
	metrics.RefreshFeedsTotal.WithLabelValues("failed", string(stage)).Inc()

	// 请求已取消时仍然记录失败
	if err := s.store.MarkFeedFailed(context.WithoutCancel(ctx), feed.ID, now); err != nil {
		logger.Errorf("[refresh] record failure for feed %s: %v", feed.ID, err)
	}

	errorCount := feed.ErrorCount + 1
	patch := model.FeedPatch{LastFetchedAt: &now, ErrorCount: &errorCount}
	return feedResult{
		feed: patch.Apply(feed),
		failure: &FailedFeed{
			FeedID: feed.ID,
			URL:    feed.URL,
			Title:  feed.Title,
			Stage:  stage,
			Error:  cause.Error(),
		},
	}
}

// successPatch 成功后的订阅源更新, 标题与描述只在为空时回填
func successPatch(feed model.Feed, parsed *parser.ParsedFeed, now time.Time) model.FeedPatch {
	zero := 0
	patch := model.FeedPatch{
		LastFetchedAt: &now,
		LastSuccessAt: &now,
		ErrorCount:    &zero,
	}
	if feed.Title == "" && parsed.Title != "" {
		patch.Title = &parsed.Title
	}
	if feed.Description == "" && parsed.Description != "" {
		patch.Description = &parsed.Description
	}
	if feed.FaviconURL == "" {
		if favicon := FaviconURL(feed.URL); favicon != "" {
			patch.FaviconURL = &favicon
		}
	}
	return patch
}

// FaviconURL 通过 Google favicon 服务获取站点图标
func FaviconURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(u.Hostname()) + "&sz=32"
}

// foldResults 按订阅源顺序汇总结果
func foldResults(results []feedResult) (RefreshStats, []model.Feed) {
	stats := RefreshStats{
		TotalFeeds:        len(results),
		FailedFeedDetails: []FailedFeed{},
	}
	feeds := make([]model.Feed, 0, len(results))
	for _, r := range results {
		feeds = append(feeds, r.feed)
		if r.failure != nil {
			stats.FailedFeeds++
			stats.FailedFeedDetails = append(stats.FailedFeedDetails, *r.failure)
			continue
		}
		stats.SuccessfulFeeds++
		stats.NewArticles += r.newArticles
	}
	return stats, feeds
}

// RefreshStale 刷新所有存在过期订阅源的用户, 返回成功刷新的用户数
func (s *RefreshService) RefreshStale(ctx context.Context, olderThan time.Duration) (int, error) {
	users, err := s.store.StaleUserIDs(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	var (
		refreshed int
		errs      []error
	)
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err := s.RefreshAll(ctx, userID); err != nil {
			logger.Errorf("[refresh] user %s: %v", userID, err)
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}
