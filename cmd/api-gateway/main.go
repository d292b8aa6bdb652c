package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/arbos-dev/arbos-api/api/swagger"
	"github.com/arbos-dev/arbos-api/internal/handler"
	"github.com/arbos-dev/arbos-api/internal/middleware"
	"github.com/arbos-dev/arbos-api/internal/repository"
	"github.com/arbos-dev/arbos-api/internal/service"
	"github.com/arbos-dev/arbos-api/pkg/cache"
	"github.com/arbos-dev/arbos-api/pkg/config"
	"github.com/arbos-dev/arbos-api/pkg/database"
	"github.com/arbos-dev/arbos-api/pkg/jobs"
	"github.com/arbos-dev/arbos-api/pkg/llm"
	"github.com/arbos-dev/arbos-api/pkg/logger"
	corsmiddleware "github.com/arbos-dev/arbos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/arbos-dev/arbos-api/pkg/middleware/requestid"
	"github.com/arbos-dev/arbos-api/pkg/storage"
)

// @title ArbOS API
// @version 1.0.0
// @description Case management service for arbitration proceedings
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare attachment storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsService := service.NewMetricsService()
	requestRepo.SetQueryObserver(metricsService.ObserveDBQuery)
	timelineRepo.SetQueryObserver(metricsService.ObserveDBQuery)

	// Services.
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "arbos-api",
	})

	cacheService := service.NewCacheService(cacheRepo, logr, cfg.Timeline.CacheEnabled, cfg.Timeline.CacheTTL,
		service.WithCacheMetrics(metricsService))
	timelineService := service.NewTimelineService(timelineRepo, cacheService, userRepo, logr)

	notificationService := service.NewNotificationService(userRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
	})
	notificationService.Start(context.Background())
	defer notificationService.Stop()

	requestService := service.NewRequestService(
		requestRepo,
		timelineRepo,
		userRepo,
		logr,
		cfg.Impact.DailyBurnRateUSD,
		service.WithRequestNotifier(notificationService),
		service.WithTimelineInvalidation(timelineService.InvalidateCache),
	)

	var extractor service.Extractor
	if cfg.Drafting.Enabled {
		if cfg.Drafting.PrivacyMode {
			extractor = service.NewKeywordExtractor()
		} else {
			extractor = service.NewLLMExtractor(llm.NewClient(llm.ClientConfig{
				BaseURL: cfg.Drafting.APIBaseURL,
				APIKey:  cfg.Drafting.APIKey,
				Model:   cfg.Drafting.Model,
				Timeout: cfg.Drafting.Timeout,
			}))
		}
	}
	draftingService := service.NewDraftingService(extractor, timelineService, userRepo, logr)

	attachmentService := service.NewAttachmentService(requestRepo, fileStore, signer, userRepo, logr, service.AttachmentConfig{
		MaxFileSizeBytes: cfg.Attachments.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Attachments.AllowedMIMEs,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.RouterDeps{
		Auth:        handler.NewAuthHandler(authService),
		Requests:    handler.NewRequestHandler(requestService, metricsService),
		Timeline:    handler.NewTimelineHandler(timelineService),
		Drafting:    handler.NewDraftingHandler(draftingService),
		Attachments: handler.NewAttachmentHandler(attachmentService),
		AuthService: authService,
		AuditWriter: userRepo,
		Logger:      logr,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
