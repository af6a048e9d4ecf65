package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-feeds/internal/fetcher"
	"go-feeds/internal/service"
)

// Deps 处理器依赖的服务
type Deps struct {
	Refresh   *service.RefreshService
	Articles  *service.ArticleService
	Feeds     *service.FeedService
	Favorites *service.FavoriteService
	Status    *service.StatusService
	Reader    *service.ReaderService
	Fetcher   service.Fetcher
	// Health 健康检查, 为 nil 时总是健康
	Health func(ctx context.Context) error
}

type Handler struct {
	refresh   *service.RefreshService
	articles  *service.ArticleService
	feeds     *service.FeedService
	favorites *service.FavoriteService
	status    *service.StatusService
	reader    *service.ReaderService
	fetcher   service.Fetcher
	health    func(ctx context.Context) error
	scheduler interface {
		GetNextRefreshTime() time.Time
		GetNextReapTime() time.Time
	}
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		refresh:   d.Refresh,
		articles:  d.Articles,
		feeds:     d.Feeds,
		favorites: d.Favorites,
		status:    d.Status,
		reader:    d.Reader,
		fetcher:   d.Fetcher,
		health:    d.Health,
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	GetNextRefreshTime() time.Time
	GetNextReapTime() time.Time
}) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/fetch", h.FetchProxy)

	api := r.Group("/api", RequireUser())
	{
		// Refresh
		api.POST("/refresh", h.Refresh)
		api.GET("/status", h.GetStatus)

		// Articles
		api.GET("/articles", h.ListArticles)
		api.POST("/articles/batch-read", h.BatchRead)
		api.POST("/articles/:id/read", h.MarkRead)
		api.POST("/articles/:id/favorite", h.AddFavorite)
		api.DELETE("/articles/:id/favorite", h.RemoveFavorite)
		api.GET("/article-content", h.ArticleContent)

		// Favorites
		api.GET("/favorites", h.ListFavorites)

		// Feeds
		api.GET("/feeds", h.ListFeeds)
		api.POST("/feeds", h.CreateFeed)
		api.DELETE("/feeds/:id", h.DeleteFeed)
		api.PATCH("/feeds/:id", h.UpdateFeed)
	}
}

// ===== 刷新 =====

func (h *Handler) Refresh(c *gin.Context) {
	res, err := h.refresh.RefreshAll(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err, "Failed to refresh feeds")
		return
	}

	message := "Refresh complete"
	if res.Stats.TotalFeeds == 0 {
		message = "No feeds to refresh"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":               message,
		"stats":                 res.Stats,
		"feeds":                 res.Feeds,
		"shouldRefreshArticles": res.ShouldRefreshArticles,
	})
}

// ===== 文章 =====

func (h *Handler) ListArticles(c *gin.Context) {
	q := service.ListQuery{
		FeedID:     c.Query("feedId"),
		UnreadOnly: parseBool(c.Query("unreadOnly")),
	}
	var err error
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	if q.Offset, err = queryInt(c, "offset"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
		return
	}

	list, err := h.articles.List(c.Request.Context(), currentUser(c), q)
	if err != nil {
		abortWithError(c, err, "Failed to get articles")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.articles.MarkRead(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		abortWithError(c, err, "Failed to mark article as read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type batchReadRequest struct {
	ArticleIDs []string `json:"articleIds"`
}

func (h *Handler) BatchRead(c *gin.Context) {
	var req batchReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "articleIds array is required"})
		return
	}
	n, err := h.articles.MarkReadBatch(c.Request.Context(), currentUser(c), req.ArticleIDs)
	if err != nil {
		abortWithError(c, err, "Failed to mark articles as read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

// ArticleContent 阅读模式, 提取不到正文时仍返回 200 与 success=false
func (h *Handler) ArticleContent(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL parameter is required"})
		return
	}

	article, err := h.reader.Extract(c.Request.Context(), rawURL)
	var upstream *fetcher.UpstreamError
	switch {
	case err == nil:
		c.Header("Cache-Control", "public, max-age=3600")
		c.JSON(http.StatusOK, gin.H{"success": true, "article": article})
	case errors.Is(err, service.ErrNoReadableContent):
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Could not extract article content"})
	case errors.Is(err, fetcher.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL provided"})
	case errors.As(err, &upstream) && upstream.StatusCode != 0:
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("Failed to fetch article: %d", upstream.StatusCode)})
	default:
		abortWithError(c, err, "Failed to extract article content")
	}
}

// ===== 收藏 =====

func (h *Handler) AddFavorite(c *gin.Context) {
	var in service.FavoriteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fav, err := h.favorites.Add(c.Request.Context(), currentUser(c), c.Param("id"), in)
	if err != nil {
		abortWithError(c, err, "Failed to add to favorites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "favorite": fav})
}

func (h *Handler) RemoveFavorite(c *gin.Context) {
	if err := h.favorites.Remove(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		abortWithError(c, err, "Failed to remove from favorites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ListFavorites(c *gin.Context) {
	favs, err := h.favorites.List(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err, "Failed to get favorites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favs})
}

// ===== 订阅源 =====

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feeds.List(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err, "Failed to get feeds")
		return
	}
	c.JSON(http.StatusOK, gin.H{"feeds": feeds})
}

type createFeedRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	feed, err := h.feeds.Subscribe(c.Request.Context(), currentUser(c), req.URL, req.Title)
	if err != nil {
		abortWithError(c, err, "Failed to add feed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"feed": feed})
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	if err := h.feeds.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		abortWithError(c, err, "Failed to delete feed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type updateFeedRequest struct {
	Order *int `json:"order"`
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Order == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order field is required"})
		return
	}
	if err := h.feeds.Reorder(c.Request.Context(), currentUser(c), c.Param("id"), *req.Order); err != nil {
		abortWithError(c, err, "Failed to update feed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ===== 抓取代理 =====

// FetchProxy 返回订阅源原文, X-Cache 标明是否命中缓存
func (h *Handler) FetchProxy(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	body, status, err := h.fetcher.Fetch(c.Request.Context(), rawURL, false)
	if err != nil {
		abortWithError(c, err, "Failed to fetch feed")
		return
	}
	c.Header("X-Cache", string(status))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

// ===== 状态 =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err, "Failed to get status")
		return
	}

	// 添加定时任务信息
	if h.scheduler != nil {
		status.NextRefreshTime = h.scheduler.GetNextRefreshTime()
		status.NextReapTime = h.scheduler.GetNextReapTime()
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
