// Package fetcher 带缓存的订阅源抓取。
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go-feeds/internal/cache"
	"go-feeds/internal/logger"
	"go-feeds/internal/metrics"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultCacheTTL     = time.Hour
	DefaultUserAgent    = "go-feeds/1.0 (RSS Reader)"
	DefaultMaxBodyBytes = 5 << 20
)

// CacheStatus 本次抓取是否命中缓存
type CacheStatus string

const (
	StatusHit  CacheStatus = "HIT"
	StatusMiss CacheStatus = "MISS"
)

type Options struct {
	Timeout      time.Duration
	UserAgent    string
	CacheTTL     time.Duration // 与源站的缓存头无关
	HostInterval time.Duration
	MaxBodyBytes int64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

// FetchCache 抓取订阅源原始内容, 成功结果写入缓存
type FetchCache struct {
	cache   cache.Cache
	client  *http.Client
	limiter *HostRateLimiter
	opts    Options
}

// New client 为 nil 时使用默认客户端, 超时由每次请求的 context 控制
func New(c cache.Cache, client *http.Client, opts Options) *FetchCache {
	if client == nil {
		client = &http.Client{}
	}
	opts = opts.withDefaults()

	f := &FetchCache{
		cache:  c,
		client: client,
		opts:   opts,
	}
	if opts.HostInterval > 0 {
		f.limiter = NewHostRateLimiter(opts.HostInterval)
	}
	return f
}

// ValidateURL 只接受带主机名的 http/https 地址
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q (must be http or https)", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// Fetch 获取 rawURL 的内容
// bypassCache 为 false 时优先返回缓存; 每次调用最多一次读缓存, 一次写缓存, 一次回源
func (f *FetchCache) Fetch(ctx context.Context, rawURL string, bypassCache bool) ([]byte, CacheStatus, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, "", err
	}

	key := cache.FeedKey(rawURL)
	if !bypassCache {
		body, ok, err := f.cache.Get(ctx, key)
		if err != nil {
			logger.Warnf("[fetch] cache read failed for %s: %v", rawURL, err)
		} else if ok {
			metrics.FetchTotal.WithLabelValues("hit").Inc()
			return body, StatusHit, nil
		}
	}

	body, err := f.fetchOrigin(ctx, rawURL)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return nil, "", err
	}

	if err := f.cache.Put(ctx, key, body, f.opts.CacheTTL); err != nil {
		logger.Warnf("[fetch] cache write failed for %s: %v", rawURL, err)
	}
	metrics.FetchTotal.WithLabelValues("miss").Inc()
	return body, StatusMiss, nil
}

func (f *FetchCache) fetchOrigin(ctx context.Context, rawURL string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, &UpstreamError{Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/rdf+xml, application/xml, text/xml;q=0.9, */*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉少量响应体以便连接复用
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &UpstreamError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, ClassifyTransportError(ctx, err)
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidPayload, f.opts.MaxBodyBytes)
	}
	if !LooksLikeXML(body) {
		return nil, ErrInvalidPayload
	}
	return body, nil
}

// ClassifyTransportError 超时归为 ErrTimeout, 其余包装为 UpstreamError
func ClassifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &UpstreamError{Err: err}
}

var utf8BOM = []byte("\xef\xbb\xbf")

// LooksLikeXML 去掉空白和 BOM 后以 '<' 开头
func LooksLikeXML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	trimmed = bytes.TrimSpace(bytes.TrimPrefix(trimmed, utf8BOM))
	return len(trimmed) > 0 && trimmed[0] == '<'
}
