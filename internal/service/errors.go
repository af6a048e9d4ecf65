package service

import (
	"errors"

	"go-feeds/internal/store"
)

var (
	// ErrNotFound 资源不存在或不属于当前用户
	ErrNotFound = store.ErrNotFound
	// ErrDuplicateFeed 用户已订阅该 URL
	ErrDuplicateFeed = errors.New("feed already subscribed")
)

// ValidationError 请求参数不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
