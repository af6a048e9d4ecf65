package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"go-feeds/config"
	"go-feeds/internal/logger"
)

// Refresher 由 service.RefreshService 实现
type Refresher interface {
	RefreshStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Reaper 由 service.ReaperService 实现
type Reaper interface {
	ReapExpired(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron         *cron.Cron
	refresher    Refresher
	reaper       Reaper
	config       config.CronConfig
	staleAfter   time.Duration
	refreshEntry cron.EntryID
	reapEntry    cron.EntryID
}

func NewScheduler(refresher Refresher, reaper Reaper, cfg config.CronConfig, staleAfter time.Duration) *Scheduler {
	return &Scheduler{
		// 上一轮未结束时跳过本轮
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		refresher:  refresher,
		reaper:     reaper,
		config:     cfg,
		staleAfter: staleAfter,
	}
}

// Start 注册任务并启动, 表达式无效时返回错误
func (s *Scheduler) Start() error {
	var err error

	// 订阅源刷新任务
	if s.config.RefreshInterval != "" {
		s.refreshEntry, err = s.cron.AddFunc(s.config.RefreshInterval, s.runRefresh)
		if err != nil {
			return fmt.Errorf("schedule refresh %q: %w", s.config.RefreshInterval, err)
		}
	}

	// 过期文章清理任务
	if s.config.ReapInterval != "" {
		s.reapEntry, err = s.cron.AddFunc(s.config.ReapInterval, s.runReap)
		if err != nil {
			return fmt.Errorf("schedule reap %q: %w", s.config.ReapInterval, err)
		}
	}

	s.cron.Start()
	logger.Infof("[cron] scheduler started (refresh: %s, reap: %s)", s.config.RefreshInterval, s.config.ReapInterval)
	return nil
}

func (s *Scheduler) runRefresh() {
	logger.Infof("[cron] refreshing stale feeds...")
	n, err := s.refresher.RefreshStale(context.Background(), s.staleAfter)
	if err != nil {
		logger.Errorf("[cron] refresh: %v", err)
	}
	logger.Infof("[cron] refreshed %d users", n)
}

func (s *Scheduler) runReap() {
	n, err := s.reaper.ReapExpired(context.Background(), time.Now())
	if err != nil {
		logger.Errorf("[cron] reap: %v", err)
		return
	}
	logger.Infof("[cron] reaped %d expired articles", n)
}

// GetNextRefreshTime 获取下次刷新时间, 未启用时为零值
func (s *Scheduler) GetNextRefreshTime() time.Time {
	return s.cron.Entry(s.refreshEntry).Next
}

// GetNextReapTime 获取下次清理时间
func (s *Scheduler) GetNextReapTime() time.Time {
	return s.cron.Entry(s.reapEntry).Next
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
