package model

import "time"

// ReadMark 已读记录, 生命周期与文章无关
type ReadMark struct {
	UserID    string    `gorm:"primaryKey;size:128"`
	ArticleID string    `gorm:"primaryKey;size:32"`
	ReadAt    time.Time `gorm:"not null"`
}
