package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go-feeds/internal/fetcher"
	"go-feeds/internal/model"
	"go-feeds/internal/store"
)

var now = time.Date(2025, 4, 20, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addFeed(t *testing.T, s *store.Store, userID, url string, order int) model.Feed {
	t.Helper()
	f := model.Feed{ID: uuid.NewString(), UserID: userID, URL: url, AddedAt: now, Order: order}
	require.NoError(t, s.CreateFeed(context.Background(), &f))
	return f
}

// rssFeed 生成包含 guids 条目的 RSS 文档
func rssFeed(title string, guids ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title><description>%s desc</description>`, title, title)
	for i, g := range guids {
		fmt.Fprintf(&b, `<item><title>%s</title><guid>%s</guid><link>https://example.com/%s</link><pubDate>%s</pubDate><description>body %d</description></item>`,
			g, g, g, now.Add(-time.Duration(i)*time.Hour).Format(time.RFC1123Z), i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

type fetchCall struct {
	url    string
	bypass bool
}

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  []fetchCall
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, bypass bool) ([]byte, fetcher.CacheStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{url: rawURL, bypass: bypass})
	if err, ok := f.errs[rawURL]; ok {
		return nil, "", err
	}
	body, ok := f.bodies[rawURL]
	if !ok {
		return nil, "", &fetcher.UpstreamError{StatusCode: 404}
	}
	return []byte(body), fetcher.StatusMiss, nil
}

// failingStore 在指定操作上返回错误, 其余操作交给真实存储
type failingStore struct {
	*store.Store
	commitFails map[string]bool
	readIDsErr  error
	markReadErr error
	getFeedsErr error
}

func (s *failingStore) CommitFeedSuccess(ctx context.Context, feedID string, articles []model.Article, patch model.FeedPatch) (int64, error) {
	if s.commitFails[feedID] {
		return 0, fmt.Errorf("disk I/O error")
	}
	return s.Store.CommitFeedSuccess(ctx, feedID, articles, patch)
}

func (s *failingStore) GetReadIDs(ctx context.Context, userID string) ([]string, error) {
	if s.readIDsErr != nil {
		return nil, s.readIDsErr
	}
	return s.Store.GetReadIDs(ctx, userID)
}

func (s *failingStore) MarkRead(ctx context.Context, userID string, ids []string, at time.Time) error {
	if s.markReadErr != nil {
		return s.markReadErr
	}
	return s.Store.MarkRead(ctx, userID, ids, at)
}

func (s *failingStore) GetFeeds(ctx context.Context, userID string, limit int) ([]model.Feed, error) {
	if s.getFeedsErr != nil {
		return nil, s.getFeedsErr
	}
	return s.Store.GetFeeds(ctx, userID, limit)
}
