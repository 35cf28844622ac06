package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Snagnar/facto.github.io/internal/compiler"
	"github.com/Snagnar/facto.github.io/internal/config"
	handler "github.com/Snagnar/facto.github.io/internal/delivery/http"
	"github.com/Snagnar/facto.github.io/internal/delivery/http/middleware"
	"github.com/Snagnar/facto.github.io/internal/queue"
	"github.com/Snagnar/facto.github.io/internal/stats"
	"github.com/Snagnar/facto.github.io/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Facto compiler backend")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Rate limiter: in-memory by default, Redis-backed when configured
	var limiter middleware.LimiterStore = middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to parse Redis URL", zap.Error(err))
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to ping Redis", zap.Error(err))
		}
		logger.Info("Connected to Redis, using shared rate-limit window")
		limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	// Stats recorder (flat file)
	recorder := stats.NewRecorder(cfg.Stats.File, logger)

	// Compilation pipeline: session runner, stats/metrics wrapper, queue
	session := compiler.NewSession(cfg.Compiler.BinPath, cfg.Compiler.Timeout, logger)
	runner := usecase.NewInstrumentedRunner(session, recorder)
	jobQueue := queue.New(runner, cfg.Compiler.Timeout, cfg.Compiler.MaxQueueWaiting, logger)

	compileUC := usecase.NewCompileUsecase(
		jobQueue,
		cfg.Compiler.MaxSourceBytes,
		cfg.Compiler.SyncCancelOnDisconnect,
		logger,
	)

	// Initialize router
	router := handler.NewRouter(&handler.RouterDeps{
		CompileUC:      compileUC,
		Recorder:       recorder,
		Limiter:        limiter,
		Logger:         logger,
		CompilerPath:   cfg.Compiler.BinPath,
		MaxSourceBytes: int64(cfg.Compiler.MaxSourceBytes),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
	})

	// Create HTTP server. WriteTimeout of zero keeps long-lived event
	// streams alive; the compile timeout bounds each job instead.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := jobQueue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Queue did not drain in time", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
