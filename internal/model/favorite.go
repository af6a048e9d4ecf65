package model

import "time"

// Favorite 收藏是文章字段的永久副本, 文章过期后仍然保留
type Favorite struct {
	UserID      string    `gorm:"primaryKey;size:128" json:"-"`
	ArticleID   string    `gorm:"primaryKey;size:32" json:"articleId"`
	Title       string    `gorm:"size:1000;not null" json:"title"`
	URL         string    `gorm:"size:2048;not null" json:"url"`
	Description string    `gorm:"type:text" json:"description"`
	FeedTitle   string    `gorm:"size:500" json:"feedTitle"`
	ImageURL    *string   `gorm:"size:2048" json:"imageUrl"`
	SavedAt     time.Time `gorm:"not null;index" json:"savedAt"`
}
