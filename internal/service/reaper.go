package service

import (
	"context"
	"fmt"
	"time"

	"go-feeds/internal/logger"
	"go-feeds/internal/metrics"
)

type ReapStore interface {
	DeleteExpired(ctx context.Context, now time.Time, batchSize int) (int64, error)
}

// ReaperService 删除过期文章, 收藏与已读记录不受影响
type ReaperService struct {
	store     ReapStore
	batchSize int
}

func NewReaperService(st ReapStore, batchSize int) *ReaperService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ReaperService{store: st, batchSize: batchSize}
}

func (s *ReaperService) ReapExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, now, s.batchSize)
	metrics.ReapedArticlesTotal.Add(float64(n))
	if err != nil {
		return n, fmt.Errorf("reap expired articles: %w", err)
	}
	if n > 0 {
		logger.Infof("[reap] deleted %d expired articles", n)
	}
	return n, nil
}
