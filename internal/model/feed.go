package model

import "time"

type Feed struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        string     `gorm:"size:128;not null;uniqueIndex:idx_feed_user_url;index" json:"-"`
	URL           string     `gorm:"size:2048;not null;uniqueIndex:idx_feed_user_url" json:"url"`
	Title         string     `gorm:"size:500" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	FaviconURL    string     `gorm:"size:2048" json:"faviconUrl"`
	AddedAt       time.Time  `gorm:"not null" json:"addedAt"`
	LastFetchedAt *time.Time `json:"lastFetchedAt"`
	LastSuccessAt *time.Time `json:"lastSuccessAt"`
	ErrorCount    int        `gorm:"not null;default:0" json:"errorCount"`
	Order         int        `gorm:"column:sort_order;not null;default:0" json:"order"`
}

// FeedPatch 刷新后对订阅源的部分更新, nil 字段不修改
type FeedPatch struct {
	Title         *string
	Description   *string
	FaviconURL    *string
	LastFetchedAt *time.Time
	LastSuccessAt *time.Time
	ErrorCount    *int
}

// Apply 将更新应用到内存中的订阅源副本
func (p FeedPatch) Apply(f Feed) Feed {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.FaviconURL != nil {
		f.FaviconURL = *p.FaviconURL
	}
	if p.LastFetchedAt != nil {
		t := *p.LastFetchedAt
		f.LastFetchedAt = &t
	}
	if p.LastSuccessAt != nil {
		t := *p.LastSuccessAt
		f.LastSuccessAt = &t
	}
	if p.ErrorCount != nil {
		f.ErrorCount = *p.ErrorCount
	}
	return f
}

// Columns 转换为 gorm Updates 使用的列映射
func (p FeedPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.FaviconURL != nil {
		cols["favicon_url"] = *p.FaviconURL
	}
	if p.LastFetchedAt != nil {
		cols["last_fetched_at"] = *p.LastFetchedAt
	}
	if p.LastSuccessAt != nil {
		cols["last_success_at"] = *p.LastSuccessAt
	}
	if p.ErrorCount != nil {
		cols["error_count"] = *p.ErrorCount
	}
	return cols
}
