package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"go-feeds/internal/logger"
	"go-feeds/internal/model"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedFeed(t *testing.T, s *Store, userID, url string, order int) model.Feed {
	t.Helper()
	f := model.Feed{ID: uuid.NewString(), UserID: userID, URL: url, AddedAt: now, Order: order}
	require.NoError(t, s.CreateFeed(context.Background(), &f))
	return f
}

func article(id, userID, feedID string, expires time.Time) model.Article {
	return model.Article{ID: id, UserID: userID, FeedID: feedID, Title: id, FetchedAt: now, ExpiresAt: expires}
}

func TestFeeds_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	max, err := s.MaxFeedOrder(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, -1, max)

	b := seedFeed(t, s, "u1", "https://b.test/rss", 1)
	a := seedFeed(t, s, "u1", "https://a.test/rss", 0)
	seedFeed(t, s, "u2", "https://a.test/rss", 0)

	feeds, err := s.GetFeeds(ctx, "u1", 100)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, a.ID, feeds[0].ID)
	assert.Equal(t, b.ID, feeds[1].ID)

	limited, err := s.GetFeeds(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	max, err = s.MaxFeedOrder(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, max)

	found, err := s.FindFeedByURL(ctx, "u1", "https://a.test/rss")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	_, err = s.FindFeedByURL(ctx, "u1", "https://missing.test/rss")
	assert.ErrorIs(t, err, ErrNotFound)

	// 同一用户重复 URL 违反唯一索引
	dup := model.Feed{ID: uuid.NewString(), UserID: "u1", URL: "https://a.test/rss", AddedAt: now}
	assert.ErrorIs(t, s.CreateFeed(ctx, &dup), ErrDuplicate)

	require.NoError(t, s.SetFeedOrder(ctx, "u1", a.ID, 5))
	assert.ErrorIs(t, s.SetFeedOrder(ctx, "u2", a.ID, 5), ErrNotFound)
	feeds, err = s.GetFeeds(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, b.ID, feeds[0].ID)

	_, err = s.GetFeed(ctx, "u2", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFeed_CascadesArticles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f1 := seedFeed(t, s, "u1", "https://one.test/rss", 0)
	f2 := seedFeed(t, s, "u1", "https://two.test/rss", 1)
	_, err := s.InsertArticles(ctx, []model.Article{
		article("a1", "u1", f1.ID, now.Add(time.Hour)),
		article("a2", "u1", f1.ID, now.Add(time.Hour)),
		article("b1", "u1", f2.ID, now.Add(time.Hour)),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteFeed(ctx, "u2", f1.ID), ErrNotFound)
	require.NoError(t, s.DeleteFeed(ctx, "u1", f1.ID))

	ids, err := s.GetArticleIDs(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1"}, ids)

	assert.ErrorIs(t, s.DeleteFeed(ctx, "u1", f1.ID), ErrNotFound)
}

func TestInsertArticles_IgnoresExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedFeed(t, s, "u1", "https://one.test/rss", 0)

	n, err := s.InsertArticles(ctx, []model.Article{article("a1", "u1", f.ID, now.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	changed := article("a1", "u1", f.ID, now.Add(time.Hour))
	changed.Title = "changed"
	n, err = s.InsertArticles(ctx, []model.Article{changed, article("a2", "u1", f.ID, now.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetArticle(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.Title, "articles are immutable once written")

	n, err = s.InsertArticles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertArticles_ManyBatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedFeed(t, s, "u1", "https://one.test/rss", 0)

	var rows []model.Article
	for i := 0; i < insertBatchSize*3+7; i++ {
		rows = append(rows, article(uuid.NewString()[:32], "u1", f.ID, now.Add(time.Hour)))
	}
	n, err := s.InsertArticles(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(len(rows)), n)
}

func TestCommitFeedSuccess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedFeed(t, s, "u1", "https://one.test/rss", 0)
	require.NoError(t, s.MarkFeedFailed(ctx, f.ID, now))

	title := "Fresh title"
	zero := 0
	at := now.Add(time.Minute)
	n, err := s.CommitFeedSuccess(ctx, f.ID,
		[]model.Article{article("a1", "u1", f.ID, now.Add(time.Hour))},
		model.FeedPatch{Title: &title, ErrorCount: &zero, LastFetchedAt: &at, LastSuccessAt: &at},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetFeed(ctx, "u1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh title", got.Title)
	assert.Zero(t, got.ErrorCount)
	require.NotNil(t, got.LastSuccessAt)
	assert.True(t, got.LastSuccessAt.Equal(at))
}

func TestMarkFeedFailed_Increments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedFeed(t, s, "u1", "https://one.test/rss", 0)

	require.NoError(t, s.MarkFeedFailed(ctx, f.ID, now))
	require.NoError(t, s.MarkFeedFailed(ctx, f.ID, now.Add(time.Hour)))

	got, err := s.GetFeed(ctx, "u1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ErrorCount)
	require.NotNil(t, got.LastFetchedAt)
	assert.True(t, got.LastFetchedAt.Equal(now.Add(time.Hour)))
	assert.Nil(t, got.LastSuccessAt)
}

func TestListActiveArticles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f1 := seedFeed(t, s, "u1", "https://one.test/rss", 0)
	f2 := seedFeed(t, s, "u1", "https://two.test/rss", 1)

	_, err := s.InsertArticles(ctx, []model.Article{
		article("live1", "u1", f1.ID, now.Add(time.Hour)),
		article("live2", "u1", f2.ID, now.Add(time.Hour)),
		article("expired", "u1", f1.ID, now),
		article("other", "u2", f1.ID, now.Add(time.Hour)),
	})
	require.NoError(t, err)

	all, err := s.ListActiveArticles(ctx, "u1", "", now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"live1", "live2"}, ids(all))

	one, err := s.ListActiveArticles(ctx, "u1", f1.ID, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"live1"}, ids(one))
}

func TestDeleteExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedFeed(t, s, "u1", "https://one.test/rss", 0)

	var rows []model.Article
	for i := 0; i < 7; i++ {
		rows = append(rows, article(uuid.NewString()[:32], "u1", f.ID, now.Add(-time.Minute)))
	}
	rows = append(rows, article("keep", "u1", f.ID, now.Add(time.Minute)))
	_, err := s.InsertArticles(ctx, rows)
	require.NoError(t, err)
	require.NoError(t, s.MarkRead(ctx, "u1", []string{rows[0].ID}, now))
	require.NoError(t, s.SaveFavorite(ctx, &model.Favorite{UserID: "u1", ArticleID: rows[0].ID, Title: "t", URL: "https://x", SavedAt: now}))

	n, err := s.DeleteExpired(ctx, now, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	left, err := s.GetArticleIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, left)

	// 已读与收藏不随文章删除
	read, err := s.GetReadIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, read, 1)
	favs, err := s.ListFavorites(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}

func TestMarkRead_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkRead(ctx, "u1", []string{"a", "b"}, now))
	require.NoError(t, s.MarkRead(ctx, "u1", []string{"b", "c"}, now.Add(time.Hour)))
	require.NoError(t, s.MarkRead(ctx, "u1", nil, now))

	read, err := s.GetReadIDs(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, read)

	other, err := s.GetReadIDs(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestFavorites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFavorite(ctx, &model.Favorite{UserID: "u1", ArticleID: "a", Title: "A", URL: "https://a", SavedAt: now}))
	require.NoError(t, s.SaveFavorite(ctx, &model.Favorite{UserID: "u1", ArticleID: "b", Title: "B", URL: "https://b", SavedAt: now.Add(time.Hour)}))
	require.NoError(t, s.SaveFavorite(ctx, &model.Favorite{UserID: "u1", ArticleID: "a", Title: "A2", URL: "https://a", SavedAt: now.Add(2 * time.Hour)}))

	favs, err := s.ListFavorites(ctx, "u1", 1000)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, "a", favs[0].ArticleID)
	assert.Equal(t, "A2", favs[0].Title)
	assert.Equal(t, "b", favs[1].ArticleID)

	require.NoError(t, s.DeleteFavorite(ctx, "u1", "a"))
	require.NoError(t, s.DeleteFavorite(ctx, "u1", "missing"))
	favs, err = s.ListFavorites(ctx, "u1", 1000)
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}

func TestStaleUserIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedFeed(t, s, "never", "https://n.test/rss", 0)
	old := seedFeed(t, s, "old", "https://o.test/rss", 0)
	fresh := seedFeed(t, s, "fresh", "https://f.test/rss", 0)

	oldAt := now.Add(-7 * time.Hour)
	freshAt := now.Add(-time.Hour)
	require.NoError(t, s.UpdateFeed(ctx, old.ID, model.FeedPatch{LastFetchedAt: &oldAt}))
	require.NoError(t, s.UpdateFeed(ctx, fresh.ID, model.FeedPatch{LastFetchedAt: &freshAt}))

	users, err := s.StaleUserIDs(ctx, now.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"never", "old"}, users)
}

func TestCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedFeed(t, s, "u1", "https://one.test/rss", 0)
	seedFeed(t, s, "u1", "https://two.test/rss", 1)
	other := seedFeed(t, s, "u2", "https://one.test/rss", 0)
	require.NoError(t, s.MarkFeedFailed(ctx, f.ID, now))
	require.NoError(t, s.MarkFeedFailed(ctx, other.ID, now))
	_, err := s.InsertArticles(ctx, []model.Article{
		article("a", "u1", f.ID, now.Add(time.Hour)),
		article("b", "u1", f.ID, now.Add(-time.Hour)),
		article("c", "u2", other.ID, now.Add(-time.Hour)),
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveFavorite(ctx, &model.Favorite{UserID: "u2", ArticleID: "c", Title: "C", URL: "https://c", SavedAt: now}))

	// 其他用户的数据不计入
	c, err := s.Counts(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Feeds)
	assert.Equal(t, int64(1), c.FailingFeeds)
	assert.Equal(t, int64(2), c.Articles)
	assert.Equal(t, int64(1), c.ExpiredArticles)
	assert.Zero(t, c.Favorites)
}

func ids(articles []model.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ID)
	}
	return out
}

func TestGormLogsGoThroughZap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	core, logs := observer.New(zapcore.DebugLevel)
	prevZ, prevL := logger.Z, logger.L
	logger.Z = zap.New(core)
	logger.L = logger.Z.Sugar()
	t.Cleanup(func() { logger.Z, logger.L = prevZ, prevL })

	_, err := s.FindFeedByURL(ctx, "u1", "https://missing.test/rss")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, logs.Len(), "record not found is not logged")

	require.Error(t, s.DB().WithContext(ctx).Exec("SELECT * FROM no_such_table").Error)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "[db]")
	assert.Contains(t, entries[0].Message, "no_such_table")
}
