package service

import (
	"context"
	"time"

	"go-feeds/internal/store"
)

type StatusStore interface {
	Counts(ctx context.Context, userID string, now time.Time) (*store.Counts, error)
}

type StatusService struct {
	store StatusStore
	now   func() time.Time
}

type SystemStatus struct {
	// 订阅源统计
	TotalFeeds   int64 `json:"totalFeeds"`
	FailingFeeds int64 `json:"failingFeeds"`

	// 文章统计
	TotalArticles   int64 `json:"totalArticles"`
	ExpiredArticles int64 `json:"expiredArticles"`
	Favorites       int64 `json:"favorites"`
	ReadMarks       int64 `json:"readMarks"`

	// 定时任务信息
	NextRefreshTime time.Time `json:"nextRefreshTime"`
	NextReapTime    time.Time `json:"nextReapTime"`
}

func NewStatusService(st StatusStore) *StatusService {
	return &StatusService{store: st, now: utcNow}
}

// GetSystemStatus 获取当前用户的统计, 定时任务时间由调用方填充
func (s *StatusService) GetSystemStatus(ctx context.Context, userID string) (*SystemStatus, error) {
	c, err := s.store.Counts(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	return &SystemStatus{
		TotalFeeds:      c.Feeds,
		FailingFeeds:    c.FailingFeeds,
		TotalArticles:   c.Articles,
		ExpiredArticles: c.ExpiredArticles,
		Favorites:       c.Favorites,
		ReadMarks:       c.ReadMarks,
	}, nil
}
