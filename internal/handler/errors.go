package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-feeds/internal/fetcher"
	"go-feeds/internal/logger"
	"go-feeds/internal/parser"
	"go-feeds/internal/service"
)

// statusFor 将领域错误映射为 HTTP 状态码
func statusFor(err error) int {
	var (
		verr     *service.ValidationError
		upstream *fetcher.UpstreamError
		perr     *parser.ParseError
	)
	switch {
	case errors.As(err, &verr), errors.Is(err, fetcher.ErrInvalidURL),
		errors.Is(err, fetcher.ErrInvalidPayload), errors.As(err, &perr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateFeed):
		return http.StatusConflict
	case errors.Is(err, fetcher.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		if upstream.StatusCode >= 400 {
			return upstream.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError 5xx 不向客户端暴露内部错误
func abortWithError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout && status != http.StatusBadGateway {
		logger.Errorf("[http] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
