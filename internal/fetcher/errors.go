package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL 非 http/https 地址, 不发起任何请求
	ErrInvalidURL = errors.New("invalid feed url")
	// ErrTimeout 回源超时
	ErrTimeout = errors.New("feed request timed out")
	// ErrInvalidPayload 响应内容不是 XML
	ErrInvalidPayload = errors.New("response is not valid XML")
)

// UpstreamError 源站返回非 2xx, 或请求在拿到响应前失败(StatusCode 为 0)
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
