// Package main запускает HTTP-сервер сервиса projectdesk.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/projectdesk/internal/activity"
	"github.com/mmeshcher/projectdesk/internal/cache"
	"github.com/mmeshcher/projectdesk/internal/config"
	"github.com/mmeshcher/projectdesk/internal/handler"
	"github.com/mmeshcher/projectdesk/internal/middleware"
	"github.com/mmeshcher/projectdesk/internal/repository"
	"github.com/mmeshcher/projectdesk/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Warn("DATABASE_URI is not set, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	var opts []service.Option

	if cfg.RedisAddress != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddress)
		defer rdb.Close()
		opts = append(opts, service.WithCache(cache.NewDashboardCache(rdb, cfg.DashboardCacheTTL)))
		sugar.Infow("dashboard cache enabled", "addr", cfg.RedisAddress, "ttl", cfg.DashboardCacheTTL)
	}

	if cfg.ActivityServiceAddress != "" {
		opts = append(opts, service.WithActivityFeed(activity.NewClient(cfg.ActivityServiceAddress)))
	}

	svc := service.NewService(repo, logger, opts...)
	defer svc.Close()

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, tokens issued elsewhere will be rejected")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting projectdesk server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка сервера)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
