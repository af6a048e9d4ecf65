package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-feeds/internal/model"
)

// GetArticleIDs 返回用户全部文章 ID, 包含已过期但尚未清理的
func (s *Store) GetArticleIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Article{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("get article ids: %w", err)
	}
	return ids, nil
}

// InsertArticles 已存在的 ID 保持不变, 返回实际插入的行数
func (s *Store) InsertArticles(ctx context.Context, articles []model.Article) (int64, error) {
	return insertArticles(s.db.WithContext(ctx), articles)
}

func insertArticles(db *gorm.DB, articles []model.Article) (int64, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	rows := make([]model.Article, len(articles))
	for i, a := range articles {
		a.FetchedAt = utc(a.FetchedAt)
		a.ExpiresAt = utc(a.ExpiresAt)
		if a.PublishedAt != nil {
			t := utc(*a.PublishedAt)
			a.PublishedAt = &t
		}
		rows[i] = a
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("insert articles: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListActiveArticles 返回未过期的文章, feedID 为空时不过滤订阅源
func (s *Store) ListActiveArticles(ctx context.Context, userID, feedID string, now time.Time) ([]model.Article, error) {
	q := s.db.WithContext(ctx).Where("user_id = ? AND expires_at > ?", userID, utc(now))
	if feedID != "" {
		q = q.Where("feed_id = ?", feedID)
	}

	var articles []model.Article
	if err := q.Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// GetArticle 仅返回属于该用户的文章
func (s *Store) GetArticle(ctx context.Context, userID, articleID string) (*model.Article, error) {
	var a model.Article
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", articleID, userID).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// DeleteExpired 分批删除 expires_at <= now 的文章, 返回删除总数
func (s *Store) DeleteExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	now = utc(now)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sub := s.db.Model(&model.Article{}).Select("id").Where("expires_at <= ?", now).Limit(batchSize)
		res := s.db.WithContext(ctx).Where("id IN (?)", sub).Delete(&model.Article{})
		if res.Error != nil {
			return total, fmt.Errorf("delete expired articles: %w", res.Error)
		}
		total += res.RowsAffected
		if res.RowsAffected < int64(batchSize) {
			return total, nil
		}
	}
}
