package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go-feeds/internal/logger"
	"go-feeds/internal/model"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
	// DefaultStaleAfter 距最近一次抓取超过该时间时提示客户端刷新
	DefaultStaleAfter = 6 * time.Hour
)

// ListQuery 文章列表查询参数
type ListQuery struct {
	FeedID     string
	Limit      int
	Offset     int
	UnreadOnly bool
}

// Normalize 填充默认值并校验
func (q ListQuery) Normalize() (ListQuery, error) {
	if q.Offset < 0 {
		return q, invalid("offset", "must not be negative")
	}
	if q.Limit < 0 {
		return q, invalid("limit", "must not be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	q.FeedID = strings.TrimSpace(q.FeedID)
	return q, nil
}

type ArticleList struct {
	Articles      []model.ArticleView `json:"articles"`
	HasMore       bool                `json:"hasMore"`
	ShouldRefresh bool                `json:"shouldRefresh"`
}

type ArticleService struct {
	store      ArticleStore
	staleAfter time.Duration
	now        func() time.Time
}

func NewArticleService(st ArticleStore, staleAfter time.Duration) *ArticleService {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &ArticleService{store: st, staleAfter: staleAfter, now: utcNow}
}

// List 返回用户当前可见的文章
func (s *ArticleService) List(ctx context.Context, userID string, q ListQuery) (*ArticleList, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	now := s.now()

	feeds, err := s.store.GetFeeds(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	articles, err := s.store.ListActiveArticles(ctx, userID, q.FeedID, now)
	if err != nil {
		return nil, err
	}
	readIDs, err := s.store.GetReadIDs(ctx, userID)
	if err != nil {
		// 已读状态不影响列表可用性
		logger.Warnf("[articles] load read ids for %s: %v", userID, err)
		readIDs = nil
	}

	return Assemble(articles, feeds, readIDs, q, now, s.staleAfter), nil
}

// Assemble 过滤, 排序并分页
// 过期文章与已删除订阅源的文章不返回; unreadOnly 在分页之前过滤
func Assemble(articles []model.Article, feeds []model.Feed, readIDs []string, q ListQuery, now time.Time, staleAfter time.Duration) *ArticleList {
	feedIDs := make(map[string]struct{}, len(feeds))
	for _, f := range feeds {
		feedIDs[f.ID] = struct{}{}
	}
	read := make(map[string]struct{}, len(readIDs))
	for _, id := range readIDs {
		read[id] = struct{}{}
	}

	views := make([]model.ArticleView, 0, len(articles))
	for _, a := range articles {
		if !a.ExpiresAt.After(now) {
			continue
		}
		if _, ok := feedIDs[a.FeedID]; !ok {
			continue
		}
		if q.FeedID != "" && a.FeedID != q.FeedID {
			continue
		}
		_, isRead := read[a.ID]
		if q.UnreadOnly && isRead {
			continue
		}
		views = append(views, model.ArticleView{Article: a, IsRead: isRead})
	}

	sort.SliceStable(views, func(i, j int) bool {
		ti, tj := publishedUnix(views[i].PublishedAt), publishedUnix(views[j].PublishedAt)
		if ti != tj {
			return ti > tj
		}
		return views[i].ID < views[j].ID
	})

	start := q.Offset
	if start > len(views) {
		start = len(views)
	}
	end := start + q.Limit
	if end > len(views) {
		end = len(views)
	}

	return &ArticleList{
		Articles:      views[start:end],
		HasMore:       q.Offset+q.Limit < len(views),
		ShouldRefresh: ShouldRefresh(feeds, now, staleAfter),
	}
}

// publishedUnix 缺失的发布时间按 1970-01-01 处理
func publishedUnix(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

// ShouldRefresh 有订阅源且最近一次抓取缺失或早于 staleAfter 时返回 true
func ShouldRefresh(feeds []model.Feed, now time.Time, staleAfter time.Duration) bool {
	if len(feeds) == 0 {
		return false
	}
	var latest *time.Time
	for _, f := range feeds {
		if f.LastFetchedAt == nil {
			continue
		}
		if latest == nil || f.LastFetchedAt.After(*latest) {
			latest = f.LastFetchedAt
		}
	}
	if latest == nil {
		return true
	}
	return now.Sub(*latest) > staleAfter
}

// MarkRead 标记单篇已读, 存储失败只记录日志
func (s *ArticleService) MarkRead(ctx context.Context, userID, articleID string) error {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return invalid("id", "article id is required")
	}
	if err := s.store.MarkRead(ctx, userID, []string{articleID}, s.now()); err != nil {
		logger.Warnf("[articles] mark read %s for %s: %v", articleID, userID, err)
	}
	return nil
}

// MarkReadBatch 批量标记已读, 返回去重后的 ID 数
func (s *ArticleService) MarkReadBatch(ctx context.Context, userID string, articleIDs []string) (int, error) {
	seen := make(map[string]struct{}, len(articleIDs))
	ids := make([]string, 0, len(articleIDs))
	for _, id := range articleIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, invalid("articleIds", "articleIds array is required")
	}

	if err := s.store.MarkRead(ctx, userID, ids, s.now()); err != nil {
		logger.Warnf("[articles] batch read (%d ids) for %s: %v", len(ids), userID, err)
		return 0, nil
	}
	return len(ids), nil
}
