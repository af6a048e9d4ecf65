package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go-feeds/internal/cache"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Blog</title></channel></rss>`

type origin struct {
	*httptest.Server
	hits      atomic.Int32
	userAgent atomic.Value
}

func newOrigin(t *testing.T, handler http.HandlerFunc) *origin {
	t.Helper()
	o := &origin{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		o.userAgent.Store(r.UserAgent())
		handler(w, r)
	}))
	t.Cleanup(o.Close)
	return o
}

func serveXML(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("Cache-Control", "no-store")
		fmt.Fprint(w, body)
	}
}

func TestFetch_MissThenHit(t *testing.T) {
	o := newOrigin(t, serveXML(testRSS))
	f := New(cache.NewMemoryCache(), o.Client(), Options{})
	ctx := context.Background()

	body, status, err := f.Fetch(ctx, o.URL, false)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.Equal(t, testRSS, string(body))

	// 源站的 no-store 不影响缓存
	again, status, err := f.Fetch(ctx, o.URL, false)
	require.NoError(t, err)
	assert.Equal(t, StatusHit, status)
	assert.Equal(t, body, again)
	assert.Equal(t, int32(1), o.hits.Load())
	assert.Equal(t, DefaultUserAgent, o.userAgent.Load())
}

func TestFetch_BypassAlwaysHitsOrigin(t *testing.T) {
	o := newOrigin(t, serveXML(testRSS))
	f := New(cache.NewMemoryCache(), o.Client(), Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, status, err := f.Fetch(ctx, o.URL, true)
		require.NoError(t, err)
		assert.Equal(t, StatusMiss, status)
	}
	assert.Equal(t, int32(3), o.hits.Load())

	// bypass 的结果也会写入缓存
	_, status, err := f.Fetch(ctx, o.URL, false)
	require.NoError(t, err)
	assert.Equal(t, StatusHit, status)
	assert.Equal(t, int32(3), o.hits.Load())
}

func TestFetch_InvalidURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	// 非法地址不能访问缓存
	mockCache := cache.NewMockCache(ctrl)
	f := New(mockCache, nil, Options{})

	for _, u := range []string{"ftp://example.com/feed", "file:///etc/passwd", "not a url", "http://", "://bad"} {
		_, _, err := f.Fetch(context.Background(), u, false)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
	}
}

func TestFetch_UpstreamStatus(t *testing.T) {
	o := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	c := cache.NewMemoryCache()
	f := New(c, o.Client(), Options{})

	_, _, err := f.Fetch(context.Background(), o.URL, false)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
	assert.Equal(t, 0, c.Len())
}

func TestFetch_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{name: "json", body: `{"error":"nope"}`},
		{name: "empty", body: "   "},
		{name: "html is still markup", body: "<html><body>hi</body></html>", ok: true},
		{name: "leading whitespace and BOM", body: "\n\xef\xbb\xbf<rss/>", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrigin(t, serveXML(tt.body))
			c := cache.NewMemoryCache()
			f := New(c, o.Client(), Options{})

			_, _, err := f.Fetch(context.Background(), o.URL, false)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidPayload)
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestFetch_BodyTooLarge(t *testing.T) {
	o := newOrigin(t, serveXML("<rss>"+string(make([]byte, 2048))+"</rss>"))
	f := New(cache.NewMemoryCache(), o.Client(), Options{MaxBodyBytes: 1024})

	_, _, err := f.Fetch(context.Background(), o.URL, true)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestFetch_Timeout(t *testing.T) {
	o := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	f := New(cache.NewMemoryCache(), o.Client(), Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, _, err := f.Fetch(context.Background(), o.URL, true)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetch_CacheFailuresAreNotFatal(t *testing.T) {
	o := newOrigin(t, serveXML(testRSS))
	ctrl := gomock.NewController(t)
	mockCache := cache.NewMockCache(ctrl)

	key := cache.FeedKey(o.URL)
	mockCache.EXPECT().Get(gomock.Any(), key).Return(nil, false, errors.New("connection refused"))
	mockCache.EXPECT().Put(gomock.Any(), key, []byte(testRSS), time.Hour).Return(errors.New("connection refused"))

	f := New(mockCache, o.Client(), Options{})
	body, status, err := f.Fetch(context.Background(), o.URL, false)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.Equal(t, testRSS, string(body))
}

func TestFetch_HitSkipsOrigin(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCache := cache.NewMockCache(ctrl)

	url := "https://feeds.example.com/rss"
	mockCache.EXPECT().Get(gomock.Any(), "rss:"+url).Return([]byte("<rss/>"), true, nil)

	// 客户端会让任何请求失败
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("origin must not be called on cache hit")
		return nil, nil
	})}

	f := New(mockCache, client, Options{})
	body, status, err := f.Fetch(context.Background(), url, false)
	require.NoError(t, err)
	assert.Equal(t, StatusHit, status)
	assert.Equal(t, "<rss/>", string(body))
}

func TestFetch_TransportError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})}
	f := New(cache.NewMemoryCache(), client, Options{})

	_, _, err := f.Fetch(context.Background(), "https://down.example.com/feed", true)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 0, upstream.StatusCode)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
