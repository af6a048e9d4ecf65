package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go-feeds/internal/model"
)

// Counts 状态页使用的单个用户统计
type Counts struct {
	Feeds           int64
	FailingFeeds    int64
	Articles        int64
	ExpiredArticles int64
	Favorites       int64
	ReadMarks       int64
}

func (s *Store) Counts(ctx context.Context, userID string, now time.Time) (*Counts, error) {
	db := s.db.WithContext(ctx).Where("user_id = ?", userID).Session(&gorm.Session{})
	c := &Counts{}

	steps := []struct {
		name string
		run  func() error
	}{
		{"feeds", func() error { return db.Model(&model.Feed{}).Count(&c.Feeds).Error }},
		{"failing feeds", func() error { return db.Model(&model.Feed{}).Where("error_count > 0").Count(&c.FailingFeeds).Error }},
		{"articles", func() error { return db.Model(&model.Article{}).Count(&c.Articles).Error }},
		{"expired articles", func() error {
			return db.Model(&model.Article{}).Where("expires_at <= ?", utc(now)).Count(&c.ExpiredArticles).Error
		}},
		{"favorites", func() error { return db.Model(&model.Favorite{}).Count(&c.Favorites).Error }},
		{"read marks", func() error { return db.Model(&model.ReadMark{}).Count(&c.ReadMarks).Error }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("count %s: %w", step.name, err)
		}
	}
	return c, nil
}
