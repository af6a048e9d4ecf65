package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"codeberg.org/readeck/go-readability/v2"

	"go-feeds/internal/fetcher"
	"go-feeds/internal/logger"
	"go-feeds/internal/metrics"
)

// ErrNoReadableContent 页面可以访问但提取不到正文
var ErrNoReadableContent = errors.New("could not extract article content")

type ReaderOptions struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// ReadableArticle 阅读模式的提取结果, 链接和图片地址已转为绝对地址
type ReadableArticle struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	TextContent string `json:"textContent"`
	Excerpt     string `json:"excerpt"`
	Byline      string `json:"byline"`
	SiteName    string `json:"siteName"`
	Length      int    `json:"length"`
}

// ReaderService 抓取文章页面并用 readability 提取正文, 结果不缓存
type ReaderService struct {
	client *http.Client
	opts   ReaderOptions
}

func NewReaderService(client *http.Client, opts ReaderOptions) *ReaderService {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = fetcher.DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = fetcher.DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = fetcher.DefaultMaxBodyBytes
	}
	return &ReaderService{client: client, opts: opts}
}

// Extract 获取 rawURL 的可读内容
func (s *ReaderService) Extract(ctx context.Context, rawURL string) (*ReadableArticle, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, invalid("url", "url is required")
	}
	if err := fetcher.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetcher.ErrInvalidURL, err)
	}

	body, err := s.download(ctx, rawURL)
	if err != nil {
		metrics.ReaderTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	article, err := readability.FromReader(strings.NewReader(body), pageURL)
	if err == nil && article.Node == nil {
		err = errors.New("no content node")
	}
	if err != nil {
		logger.Debugf("[reader] %s: %v", rawURL, err)
		metrics.ReaderTotal.WithLabelValues("empty").Inc()
		return nil, ErrNoReadableContent
	}

	var text, content strings.Builder
	if err := article.RenderText(&text); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	textContent := strings.TrimSpace(text.String())
	if textContent == "" {
		metrics.ReaderTotal.WithLabelValues("empty").Inc()
		return nil, ErrNoReadableContent
	}
	if err := article.RenderHTML(&content); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	metrics.ReaderTotal.WithLabelValues("ok").Inc()
	return &ReadableArticle{
		Title:       article.Title(),
		Content:     content.String(),
		TextContent: textContent,
		Excerpt:     article.Excerpt(),
		Byline:      article.Byline(),
		SiteName:    article.SiteName(),
		Length:      utf8.RuneCountInString(textContent),
	}, nil
}

func (s *ReaderService) download(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", fetcher.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fetcher.ClassifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", &fetcher.UpstreamError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBodyBytes+1))
	if err != nil {
		return "", fetcher.ClassifyTransportError(ctx, err)
	}
	if int64(len(body)) > s.opts.MaxBodyBytes {
		return "", fmt.Errorf("%w: page exceeds %d bytes", fetcher.ErrInvalidPayload, s.opts.MaxBodyBytes)
	}
	return string(body), nil
}
