package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"go-feeds/internal/model"
)

func (s *Store) GetReadIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.ReadMark{}).Where("user_id = ?", userID).Pluck("article_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("get read ids: %w", err)
	}
	return ids, nil
}

// MarkRead 写入已读记录, 重复标记只刷新 read_at
func (s *Store) MarkRead(ctx context.Context, userID string, articleIDs []string, at time.Time) error {
	if len(articleIDs) == 0 {
		return nil
	}
	marks := make([]model.ReadMark, 0, len(articleIDs))
	for _, id := range articleIDs {
		marks = append(marks, model.ReadMark{UserID: userID, ArticleID: id, ReadAt: utc(at)})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "article_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"read_at"}),
	}).CreateInBatches(marks, 200).Error
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// SaveFavorite 重复收藏时覆盖快照
func (s *Store) SaveFavorite(ctx context.Context, fav *model.Favorite) error {
	fav.SavedAt = utc(fav.SavedAt)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "article_id"}},
		UpdateAll: true,
	}).Create(fav).Error
	if err != nil {
		return fmt.Errorf("save favorite: %w", err)
	}
	return nil
}

// DeleteFavorite 不存在时也返回成功
func (s *Store) DeleteFavorite(ctx context.Context, userID, articleID string) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND article_id = ?", userID, articleID).Delete(&model.Favorite{}).Error
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

func (s *Store) ListFavorites(ctx context.Context, userID string, limit int) ([]model.Favorite, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("saved_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var favs []model.Favorite
	if err := q.Find(&favs).Error; err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favs, nil
}
