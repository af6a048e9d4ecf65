package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-feeds/internal/fetcher"
)

// articlePage 生成一篇足够长的文章页面, 正文中的图片使用相对地址
func articlePage() string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head>
<title>Reading Go Slices</title>
<meta name="author" content="Jane Doe">
<meta property="og:site_name" content="Example Site">
</head><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article><h1>Reading Go Slices</h1>
<p><img src="/img/photo.jpg" alt="cover"></p>`)
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, `<p>Paragraph %d explains how a slice header points into a backing array, why append may reallocate, and how capacity grows when the array is full. Readers who keep this model in mind avoid aliasing surprises.</p>`, i)
	}
	b.WriteString(`</article><footer>Copyright Example Site</footer></body></html>`)
	return b.String()
}

func newPageOrigin(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestReaderService_Extract(t *testing.T) {
	var userAgent atomic.Value
	srv := newPageOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articlePage())
	})

	svc := NewReaderService(srv.Client(), ReaderOptions{UserAgent: "reader-test"})
	article, err := svc.Extract(context.Background(), srv.URL+"/posts/slices")
	require.NoError(t, err)

	assert.Equal(t, "reader-test", userAgent.Load())
	assert.Equal(t, "Reading Go Slices", article.Title)
	assert.Equal(t, "Jane Doe", article.Byline)
	assert.Equal(t, "Example Site", article.SiteName)
	assert.Contains(t, article.TextContent, "Paragraph 0 explains")
	assert.NotContains(t, article.TextContent, "Copyright")
	assert.Equal(t, len([]rune(article.TextContent)), article.Length)
	// 相对地址以页面地址为基准
	assert.Contains(t, article.Content, srv.URL+"/img/photo.jpg")
}

func TestReaderService_Errors(t *testing.T) {
	srv := newPageOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			http.Error(w, "gone", http.StatusNotFound)
		case "/empty":
			fmt.Fprint(w, `<html><head><title>x</title></head><body></body></html>`)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}
	})
	svc := NewReaderService(srv.Client(), ReaderOptions{Timeout: 50 * time.Millisecond})
	ctx := context.Background()

	_, err := svc.Extract(ctx, "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Extract(ctx, "ftp://example.com/post")
	assert.ErrorIs(t, err, fetcher.ErrInvalidURL)

	_, err = svc.Extract(ctx, srv.URL+"/gone")
	var upstream *fetcher.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)

	_, err = svc.Extract(ctx, srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrNoReadableContent)

	_, err = svc.Extract(ctx, srv.URL+"/slow")
	assert.ErrorIs(t, err, fetcher.ErrTimeout)
}

func TestReaderService_BodyLimit(t *testing.T) {
	srv := newPageOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage())
	})
	svc := NewReaderService(srv.Client(), ReaderOptions{MaxBodyBytes: 256})

	_, err := svc.Extract(context.Background(), srv.URL)
	assert.ErrorIs(t, err, fetcher.ErrInvalidPayload)
}
