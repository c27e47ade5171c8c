package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/music-livereview/backend/internal/api"
	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/db/mongo"
	"github.com/music-livereview/backend/internal/db/mongo/repositories"
	"github.com/music-livereview/backend/internal/db/redis"
	"github.com/music-livereview/backend/internal/db/redis/managers"
	"github.com/music-livereview/backend/internal/services/community"
	"github.com/music-livereview/backend/internal/services/share"
	"github.com/music-livereview/backend/internal/services/stats"
	"github.com/music-livereview/backend/internal/services/system"
	"github.com/music-livereview/backend/internal/services/upload"
	"github.com/music-livereview/backend/internal/utils"
)

// convert logger level to zapcore.Level
func hLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "panic":
		return zapcore.PanicLevel
	default:
		return zapcore.InfoLevel
	}
}

func main() {
	// Create a context that will be canceled on interrupt signal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("Received shutdown signal")
		cancel()
	}()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerOptions := utils.LoggerOptions{
		Development: cfg.Environment == "development",
		Level:       hLevel(cfg.Logging.Level),
		OutputPaths: cfg.Logging.OutputPaths,
	}
	logger := utils.NewLogger(loggerOptions)
	logger.Info("Starting livereview server", "environment", cfg.Environment)

	// Initialize MongoDB client
	mongoClient, err := mongo.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect from MongoDB", err)
		}
	}()

	if err := mongoClient.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to ensure MongoDB indexes", err)
	}

	// Initialize Redis client
	redisClient, err := redis.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()

	// Initialize MongoDB repositories
	sessionRepo := repositories.NewSessionRepository(mongoClient.Database(), logger)
	bucketRepo := repositories.NewBucketRepository(mongoClient.Database(), logger)
	communityRepo := repositories.NewCommunityRepository(mongoClient.Database(), logger)

	// Initialize Redis managers
	tokenCache := managers.NewTokenCache(redisClient, cfg.Share.TokenCacheTTL)
	statsCache := managers.NewStatsCache(redisClient, cfg.Community.RefreshInterval)

	// Initialize system services
	metricsService := system.NewMetricsService(logger)
	version, _ := utils.BuildVersion()
	healthConfig := system.HealthServiceConfig{
		Version:     version,
		Environment: cfg.Environment,
	}
	healthService := system.NewHealthService(mongoClient.Client(), redisClient, logger, healthConfig)

	maintenanceService := system.NewMaintenanceService(
		system.DefaultMaintenanceConfig(),
		mongoClient.Database(),
		logger,
	)

	// Initialize domain services. The share service is built first so the
	// upload manager can drop cached previews when a session is deleted.
	statsService := stats.NewService(sessionRepo, bucketRepo, tokenCache, logger)
	shareService := share.NewService(statsService, cfg, logger)
	uploadManager := upload.NewManager(sessionRepo, bucketRepo, tokenCache, statsCache, shareService, metricsService, cfg, logger)
	communityService := community.NewService(communityRepo, sessionRepo, statsService, statsCache, metricsService, cfg, logger)

	// Initialize rate limiters
	uploadLimiter := redis.NewRateLimiter(redisClient)
	limiters := utils.NewDefaultLimiterConfig()
	stopCleanup := limiters.StartCleanupRoutines(ctx)
	defer stopCleanup()

	// Initialize API router
	router := api.NewRouter(
		uploadManager,
		statsService,
		communityService,
		shareService,
		healthService,
		metricsService,
		uploadLimiter,
		limiters,
		cfg,
		logger,
	)

	// Start maintenance service
	if err := maintenanceService.Start(ctx); err != nil {
		logger.Error("Failed to start maintenance service", err)
	}

	// Start health service
	healthService.Start(ctx)

	// Create HTTP server
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         apiAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", apiAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutting down server")

	// Create a context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server first so no new uploads arrive
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", err)
	}

	// Drain the upload worker pool; queued aggregations finish first
	uploadManager.Close()

	// Stop maintenance service
	maintenanceService.Stop()

	logger.Info("Server shutdown complete")
}
