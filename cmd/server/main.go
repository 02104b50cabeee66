package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/api"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/bootstrap"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/buildconfig"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	rt, err := bootstrap.Open(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise engine", zap.Error(err))
	}
	rt.Start()

	app := api.NewApp(rt.Engine, api.Options{
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
		HealthCheck:    rt.HealthCheck,
	}, logger)

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.Version()),
			zap.String("store", config.StoreBackend()),
			zap.String("score_cache", config.ScoreCache()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := rt.Close(); err != nil {
		logger.Error("failed to release resources", zap.Error(err))
	}

	logger.Info("server stopped")
}
