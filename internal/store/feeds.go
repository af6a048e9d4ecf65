package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go-feeds/internal/model"
)

// GetFeeds 按排序返回用户的订阅源, limit <= 0 表示不限制
func (s *Store) GetFeeds(ctx context.Context, userID string, limit int) ([]model.Feed, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sort_order ASC").
		Order("added_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var feeds []model.Feed
	if err := q.Find(&feeds).Error; err != nil {
		return nil, fmt.Errorf("get feeds: %w", err)
	}
	return feeds, nil
}

func (s *Store) GetFeed(ctx context.Context, userID, feedID string) (*model.Feed, error) {
	var feed model.Feed
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", feedID, userID).First(&feed).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &feed, nil
}

// FindFeedByURL 同一用户下 URL 唯一
func (s *Store) FindFeedByURL(ctx context.Context, userID, url string) (*model.Feed, error) {
	var feed model.Feed
	err := s.db.WithContext(ctx).Where("user_id = ? AND url = ?", userID, url).First(&feed).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &feed, nil
}

func (s *Store) CountFeeds(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Feed{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count feeds: %w", err)
	}
	return n, nil
}

// MaxFeedOrder 没有订阅源时返回 -1
func (s *Store) MaxFeedOrder(ctx context.Context, userID string) (int, error) {
	var max sql.NullInt64
	err := s.db.WithContext(ctx).Model(&model.Feed{}).
		Where("user_id = ?", userID).
		Select("MAX(sort_order)").
		Row().Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max feed order: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

func (s *Store) CreateFeed(ctx context.Context, feed *model.Feed) error {
	if err := s.db.WithContext(ctx).Create(feed).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create feed: %w", err)
	}
	return nil
}

// DeleteFeed 删除订阅源及其全部文章
func (s *Store) DeleteFeed(ctx context.Context, userID, feedID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", feedID, userID).Delete(&model.Feed{})
		if res.Error != nil {
			return fmt.Errorf("delete feed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("feed_id = ?", feedID).Delete(&model.Article{}).Error; err != nil {
			return fmt.Errorf("delete feed articles: %w", err)
		}
		return nil
	})
}

func (s *Store) SetFeedOrder(ctx context.Context, userID, feedID string, order int) error {
	res := s.db.WithContext(ctx).Model(&model.Feed{}).
		Where("id = ? AND user_id = ?", feedID, userID).
		Update("sort_order", order)
	if res.Error != nil {
		return fmt.Errorf("set feed order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFeed 只更新 patch 中非 nil 的字段
func (s *Store) UpdateFeed(ctx context.Context, feedID string, patch model.FeedPatch) error {
	return updateFeed(s.db.WithContext(ctx), feedID, patch)
}

func updateFeed(db *gorm.DB, feedID string, patch model.FeedPatch) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		return nil
	}
	for k, v := range cols {
		if t, ok := v.(time.Time); ok {
			cols[k] = utc(t)
		}
	}
	if err := db.Model(&model.Feed{}).Where("id = ?", feedID).Updates(cols).Error; err != nil {
		return fmt.Errorf("update feed %s: %w", feedID, err)
	}
	return nil
}

// CommitFeedSuccess 在同一事务中写入新文章并更新订阅源, 返回实际插入的行数
func (s *Store) CommitFeedSuccess(ctx context.Context, feedID string, articles []model.Article, patch model.FeedPatch) (int64, error) {
	var inserted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := insertArticles(tx, articles)
		if err != nil {
			return err
		}
		inserted = n
		return updateFeed(tx, feedID, patch)
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// MarkFeedFailed 错误计数加一并记录抓取时间
func (s *Store) MarkFeedFailed(ctx context.Context, feedID string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.Feed{}).
		Where("id = ?", feedID).
		Updates(map[string]interface{}{
			"error_count":     gorm.Expr("error_count + 1"),
			"last_fetched_at": utc(at),
		}).Error
	if err != nil {
		return fmt.Errorf("mark feed %s failed: %w", feedID, err)
	}
	return nil
}

// StaleUserIDs 拥有从未抓取或早于 cutoff 抓取的订阅源的用户
func (s *Store) StaleUserIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.Feed{}).
		Distinct("user_id").
		Where("last_fetched_at IS NULL OR last_fetched_at < ?", utc(cutoff)).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("stale users: %w", err)
	}
	return ids, nil
}
