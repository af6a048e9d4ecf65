package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-feeds/internal/fetcher"
	"go-feeds/internal/logger"
	"go-feeds/internal/model"
	"go-feeds/internal/parser"
	"go-feeds/internal/store"
)

type FeedStore interface {
	GetFeeds(ctx context.Context, userID string, limit int) ([]model.Feed, error)
	CountFeeds(ctx context.Context, userID string) (int64, error)
	FindFeedByURL(ctx context.Context, userID, url string) (*model.Feed, error)
	MaxFeedOrder(ctx context.Context, userID string) (int, error)
	CreateFeed(ctx context.Context, feed *model.Feed) error
	DeleteFeed(ctx context.Context, userID, feedID string) error
	SetFeedOrder(ctx context.Context, userID, feedID string, order int) error
}

// DefaultMaxFeeds 每个用户最多订阅的数量, 与单次刷新的上限一致
const DefaultMaxFeeds = 100

type FeedService struct {
	store    FeedStore
	fetcher  Fetcher
	maxFeeds int
	now      func() time.Time
}

// NewFeedService maxFeeds <= 0 时使用 DefaultMaxFeeds
func NewFeedService(st FeedStore, f Fetcher, maxFeeds int) *FeedService {
	if maxFeeds <= 0 {
		maxFeeds = DefaultMaxFeeds
	}
	return &FeedService{
		store:    st,
		fetcher:  f,
		maxFeeds: maxFeeds,
		now:      utcNow,
	}
}

// Subscribe 校验并抓取订阅源, 成功后排在用户列表末尾
// title 为空时使用订阅源自带的标题
func (s *FeedService) Subscribe(ctx context.Context, userID, rawURL, title string) (*model.Feed, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, invalid("url", "url is required")
	}
	if err := fetcher.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	// 超出上限的订阅源不会被刷新
	count, err := s.store.CountFeeds(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= int64(s.maxFeeds) {
		return nil, &ValidationError{Message: fmt.Sprintf("Maximum %d feeds allowed", s.maxFeeds)}
	}

	_, err = s.store.FindFeedByURL(ctx, userID, rawURL)
	if err == nil {
		return nil, ErrDuplicateFeed
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	body, _, err := s.fetcher.Fetch(ctx, rawURL, false)
	if err != nil {
		return nil, invalid("url", "fetch feed: "+err.Error())
	}
	parsed, err := parser.Parse(body)
	if err != nil {
		return nil, invalid("url", "not a valid feed: "+err.Error())
	}

	maxOrder, err := s.store.MaxFeedOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = parsed.Title
	}
	feed := &model.Feed{
		ID:          uuid.NewString(),
		UserID:      userID,
		URL:         rawURL,
		Title:       title,
		Description: parsed.Description,
		FaviconURL:  FaviconURL(rawURL),
		AddedAt:     s.now(),
		Order:       maxOrder + 1,
	}
	if err := s.store.CreateFeed(ctx, feed); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateFeed
		}
		return nil, err
	}

	logger.Infof("[feeds] user %s subscribed to %s (%d items)", userID, rawURL, len(parsed.Items))
	return feed, nil
}

// List 按排序返回用户的订阅源
func (s *FeedService) List(ctx context.Context, userID string) ([]model.Feed, error) {
	return s.store.GetFeeds(ctx, userID, 0)
}

// Delete 删除订阅源及其文章
func (s *FeedService) Delete(ctx context.Context, userID, feedID string) error {
	if err := s.store.DeleteFeed(ctx, userID, feedID); err != nil {
		return err
	}
	logger.Infof("[feeds] user %s removed feed %s", userID, feedID)
	return nil
}

func (s *FeedService) Reorder(ctx context.Context, userID, feedID string, order int) error {
	if order < 0 {
		return invalid("order", "must not be negative")
	}
	return s.store.SetFeedOrder(ctx, userID, feedID, order)
}
