package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"go-feeds/internal/handler"
	"go-feeds/internal/logger"
	"go-feeds/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// 启动定时任务
	sched := scheduler.NewScheduler(a.refresh, a.reaper, cfg.Cron, cfg.Refresh.StaleAfter)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	// 初始化 Gin
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestID(), handler.AccessLog(), handler.CORS())

	// 注册路由
	h := handler.NewHandler(handler.Deps{
		Refresh:   a.refresh,
		Articles:  a.articles,
		Feeds:     a.feeds,
		Favorites: a.favorites,
		Status:    a.status,
		Reader:    a.reader,
		Fetcher:   a.fetcher,
		Health:    a.healthCheck,
	})
	h.SetScheduler(sched)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[server] %s listening on %s", version, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
