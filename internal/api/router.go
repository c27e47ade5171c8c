// Package api provides the HTTP API for the application.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/music-livereview/backend/internal/api/handlers"
	appMiddleware "github.com/music-livereview/backend/internal/api/middleware"
	"github.com/music-livereview/backend/internal/config"
	redisdb "github.com/music-livereview/backend/internal/db/redis"
	"github.com/music-livereview/backend/internal/services/community"
	"github.com/music-livereview/backend/internal/services/share"
	"github.com/music-livereview/backend/internal/services/stats"
	"github.com/music-livereview/backend/internal/services/system"
	"github.com/music-livereview/backend/internal/services/upload"
	"github.com/music-livereview/backend/internal/utils"
)

// Router is the main HTTP router for the API.
type Router struct {
	*chi.Mux
	logger *utils.Logger
}

// NewRouter creates a new API router.
func NewRouter(
	uploadManager *upload.Manager,
	statsService *stats.Service,
	communityService *community.Service,
	shareService *share.Service,
	healthService *system.HealthService,
	metricsService *system.MetricsService,
	uploadLimiter *redisdb.RateLimiter,
	limiters *utils.LimiterConfig,
	cfg *config.Config,
	logger *utils.Logger,
) *Router {
	r := chi.NewRouter()
	apiLogger := logger.Named("api")

	// Create middleware
	recoveryMiddleware := appMiddleware.NewRecoveryMiddleware(apiLogger)
	loggerMiddleware := appMiddleware.NewLoggerMiddleware(apiLogger)
	metricsMiddleware := appMiddleware.NewMetricsMiddleware(metricsService)
	uploadLimitMiddleware := appMiddleware.NewUploadLimitMiddleware(uploadLimiter, apiLogger)

	corsConfig := appMiddleware.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	}
	corsMiddleware := appMiddleware.NewCORSMiddleware(corsConfig, apiLogger)

	// Create handlers
	uploadHandler := handlers.NewUploadHandler(uploadManager, cfg, apiLogger)
	statsHandler := handlers.NewStatsHandler(statsService, metricsService, apiLogger)
	communityHandler := handlers.NewCommunityHandler(communityService, cfg, apiLogger)
	shareHandler := handlers.NewShareHandler(shareService, metricsService, cfg, apiLogger)
	healthHandler := handlers.NewHealthHandler(apiLogger, healthService, cfg)

	// Apply global middleware. RequestID and RealIP run first so the
	// logger sees both.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(recoveryMiddleware.Recovery)
	r.Use(loggerMiddleware.Logger)
	r.Use(metricsMiddleware.Metrics)
	r.Use(corsMiddleware.CORS)
	r.Use(middleware.Heartbeat("/ping"))

	// Operational endpoints
	r.Get("/health", healthHandler.Check)
	r.Get("/health/detailed", healthHandler.DetailedCheck)
	r.Method("GET", "/metrics", metricsService.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(utils.RateLimitMiddleware(limiters.API, utils.DefaultKeyFunc))

		// Upload lifecycle
		r.Group(func(r chi.Router) {
			r.Use(uploadLimitMiddleware.Limit)
			r.Post("/upload", uploadHandler.Upload)
		})
		r.Get("/status/{token}", uploadHandler.Status)

		// Personal stats
		r.Route("/stats/{token}", func(r chi.Router) {
			r.Use(utils.RateLimitMiddleware(limiters.Stats, utils.DefaultKeyFunc))

			r.Get("/overview", statsHandler.Overview)
			r.Get("/top-artists", statsHandler.TopArtists)
			r.Get("/top-tracks", statsHandler.TopTracks)
			r.Get("/timeline", statsHandler.Timeline)
			r.Get("/heatmap", statsHandler.Heatmap)
			r.Get("/discovery", statsHandler.Discovery)
			r.Get("/stamina", statsHandler.Stamina)
			r.Get("/marathons", statsHandler.Marathons)
			r.Get("/personality-inputs", statsHandler.PersonalityInputs)
			r.Get("/personality", statsHandler.Personality)
			r.Post("/personality", uploadHandler.SetPersonality)
			r.Delete("/", uploadHandler.Delete)
		})

		// Community stats
		r.Route("/community", func(r chi.Router) {
			r.Get("/global", communityHandler.Global)
			r.Get("/trending", communityHandler.Trending)
			r.Get("/percentile/{token}", communityHandler.Percentiles)
			r.Get("/personalities", communityHandler.Personalities)
		})
	})

	// Share pages, outside /api so crawlers get plain HTML
	r.Group(func(r chi.Router) {
		r.Use(utils.RateLimitMiddleware(limiters.Share, utils.DefaultKeyFunc))
		r.Get("/share/{token}", shareHandler.Page)
	})

	return &Router{
		Mux:    r,
		logger: apiLogger,
	}
}
