// Package store 基于 gorm 的持久化层。
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"go-feeds/internal/logger"
	"go-feeds/internal/model"
)

var (
	// ErrNotFound 记录不存在或不属于该用户
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("duplicate record")
)

// insertBatchSize 控制单条 INSERT 的参数个数, 避免超过 sqlite 的变量上限
const insertBatchSize = 50

type Store struct {
	db *gorm.DB
}

// Open 打开 sqlite 数据库并自动迁移
// dsn 可以是文件路径, 也可以是 file: 开头的 sqlite URI
func Open(dsn string) (*Store, error) {
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         newGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite 同一时间只允许一个写入者, 并发刷新在这里串行
	sqlDB.SetMaxOpenConns(1)

	return New(db)
}

// gormWriter 将 gorm 的日志转给 zap
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Warnf("[db] "+format, args...)
}

// newGormLogger 只记录慢查询和错误, 查不到记录属于正常流程
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// New 使用已有连接, 执行自动迁移
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&model.Feed{}, &model.Article{}, &model.ReadMark{}, &model.Favorite{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// utc sqlite 以文本保存时间, 统一时区后才能直接比较
func utc(t time.Time) time.Time {
	return t.UTC()
}
