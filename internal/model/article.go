package model

import "time"

// Article 由订阅源条目生成, 写入后不再修改
type Article struct {
	ID          string     `gorm:"primaryKey;size:32" json:"id"`
	UserID      string     `gorm:"size:128;not null;index" json:"-"`
	FeedID      string     `gorm:"size:36;not null;index" json:"feedId"`
	FeedTitle   string     `gorm:"size:500" json:"feedTitle"`
	Title       string     `gorm:"size:1000" json:"title"`
	URL         string     `gorm:"size:2048" json:"url"`
	Description string     `gorm:"type:text" json:"description"`
	PublishedAt *time.Time `gorm:"index" json:"publishedAt"`
	FetchedAt   time.Time  `gorm:"not null" json:"fetchedAt"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expiresAt"`
	Author      *string    `gorm:"size:500" json:"author"`
	ImageURL    *string    `gorm:"size:2048" json:"imageUrl"`
}

// ArticleView 返回给客户端的文章, 附带已读状态
type ArticleView struct {
	Article
	IsRead bool `json:"isRead"`
}
