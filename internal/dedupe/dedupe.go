// Package dedupe 将解析出的条目与已知文章比对, 生成新文章。
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
	"unicode/utf8"

	"go-feeds/internal/model"
	"go-feeds/internal/parser"
)

const (
	// DescriptionMaxRunes 文章摘要的最大长度
	DescriptionMaxRunes = 10000
	// ArticleTTL 文章写入后的保留时间
	ArticleTTL = 7 * 24 * time.Hour
)

// ArticleID 由订阅源 ID 与条目 guid 生成稳定的文章 ID
func ArticleID(feedID, guid string) string {
	sum := sha256.Sum256([]byte(feedID + ":" + guid))
	return hex.EncodeToString(sum[:])[:32]
}

// KnownIDs 一次刷新内共享的已知文章 ID 集合
type KnownIDs struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewKnownIDs(ids []string) *KnownIDs {
	k := &KnownIDs{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		k.ids[id] = struct{}{}
	}
	return k
}

// AddIfAbsent 不存在时加入并返回 true
func (k *KnownIDs) AddIfAbsent(id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.ids[id]; ok {
		return false
	}
	k.ids[id] = struct{}{}
	return true
}

func (k *KnownIDs) Has(id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.ids[id]
	return ok
}

func (k *KnownIDs) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.ids)
}

// Target 文章所属的订阅源
type Target struct {
	FeedID    string
	UserID    string
	FeedTitle string
}

// Dedupe 返回 known 中没有的文章, 同时把它们加入 known
// 第二个返回值为跳过的条目数
func Dedupe(target Target, items []parser.ParsedItem, known *KnownIDs, now time.Time, ttl time.Duration) ([]model.Article, int) {
	if ttl <= 0 {
		ttl = ArticleTTL
	}

	var (
		articles []model.Article
		skipped  int
	)
	for _, item := range items {
		id := ArticleID(target.FeedID, item.GUID)
		if !known.AddIfAbsent(id) {
			skipped++
			continue
		}

		var published *time.Time
		if !item.PublishedAt.IsZero() {
			t := item.PublishedAt
			published = &t
		}

		articles = append(articles, model.Article{
			ID:          id,
			UserID:      target.UserID,
			FeedID:      target.FeedID,
			FeedTitle:   target.FeedTitle,
			Title:       item.Title,
			URL:         item.Link,
			Description: Truncate(item.Content, DescriptionMaxRunes),
			PublishedAt: published,
			FetchedAt:   now,
			ExpiresAt:   now.Add(ttl),
			Author:      item.Author,
			ImageURL:    item.ImageURL,
		})
	}
	return articles, skipped
}

// Truncate 按字符截断, 不会切开多字节字符
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
