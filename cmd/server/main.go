// Package main runs the voice room lifecycle service: gateway consumer,
// reclamation scheduler, control-surface HTTP API and dashboard WebSocket.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-voice/backend/config"
	"github.com/aura-voice/backend/internal/api"
	"github.com/aura-voice/backend/internal/audit"
	"github.com/aura-voice/backend/internal/auth"
	"github.com/aura-voice/backend/internal/events"
	"github.com/aura-voice/backend/internal/gateway"
	"github.com/aura-voice/backend/internal/middleware"
	"github.com/aura-voice/backend/internal/platform"
	"github.com/aura-voice/backend/internal/policy"
	"github.com/aura-voice/backend/internal/preference"
	"github.com/aura-voice/backend/internal/rooms"
	"github.com/aura-voice/backend/internal/worker"
	"github.com/aura-voice/backend/pkg/database"
	"github.com/aura-voice/backend/pkg/queue"
	"github.com/aura-voice/backend/pkg/redis"
	"github.com/aura-voice/backend/pkg/response"
	"github.com/aura-voice/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			AuditBucket:     cfg.AWS.AuditBucket,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	platformClient := platform.NewRESTClient(cfg.Platform.BaseURL, cfg.Platform.Token,
		time.Duration(cfg.Platform.TimeoutSec)*time.Second, logger)

	// Repositories
	roomStore := rooms.NewRepository(pool)
	policyRepo := policy.NewRepository(pool, cfg.Rooms)
	prefRepo := preference.NewRepository(pool)
	auditRepo := audit.NewRepository(pool)

	// Event fanout
	pubsub := events.NewRedisPubSub(rdb.Client, logger)
	hub := events.NewHub(pubsub, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Lifecycle core
	synchronizer := rooms.NewSynchronizer(platformClient, logger)
	factory := rooms.NewFactory(roomStore, policyRepo, prefRepo, platformClient, synchronizer, pubsub, auditRepo, logger)
	scheduler := rooms.NewScheduler(roomStore, policyRepo, platformClient, pubsub, auditRepo, jobQueue,
		time.Duration(cfg.Rooms.DefaultGraceSeconds)*time.Second,
		time.Duration(cfg.Rooms.SweepIntervalSec)*time.Second, logger)
	ownership := rooms.NewOwnershipManager(roomStore, platformClient, synchronizer, pubsub, auditRepo, logger)
	service := rooms.NewService(roomStore, policyRepo, platformClient, synchronizer, ownership, scheduler, pubsub, logger)
	tracker := rooms.NewTracker(roomStore, policyRepo, platformClient, factory, scheduler, logger)
	scheduler.SetRemovalHook(tracker.Untrack)

	// Gateway
	dispatcher := gateway.NewDispatcher(logger)
	tracker.Register(dispatcher)
	consumer := gateway.NewConsumer(cfg.Gateway.URL, cfg.Gateway.Token,
		time.Duration(cfg.Gateway.ReconnectBackoff)*time.Second, dispatcher, logger)

	if err := tracker.WarmStart(ctx); err != nil {
		logger.Fatal("warm start", zap.Error(err))
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// HTTP handlers
	roomHandler := api.NewRoomHandler(service, logger)
	policyHandler := api.NewPolicyHandler(policyRepo, platformClient, logger)
	prefHandler := api.NewPreferenceHandler(prefRepo, policyRepo, logger)
	auditHandler := api.NewAuditHandler(auditRepo, jobQueue, logger)

	wsValidate := func(token string) error {
		_, err := jwtService.Validate(token)
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	apiGroup := router.Group("")
	apiGroup.Use(middleware.JWT(jwtService))
	{
		// Guild policy
		apiGroup.POST("/guilds/:id/hub", middleware.RequireRole("admin"), policyHandler.CreateHub)
		apiGroup.GET("/guilds/:id/policy", policyHandler.Get)
		apiGroup.PATCH("/guilds/:id/policy", middleware.RequireRole("admin"), policyHandler.Update)

		// Rooms (reads)
		apiGroup.GET("/guilds/:id/rooms", roomHandler.ListByGuild)
		apiGroup.GET("/rooms/:id", roomHandler.Get)
		apiGroup.GET("/rooms/:id/occupants", roomHandler.Occupants)

		// Room commands (act on behalf of the platform user in the body)
		apiGroup.POST("/rooms/:id/rename", roomHandler.Rename)
		apiGroup.POST("/rooms/:id/capacity", roomHandler.SetCapacity)
		apiGroup.POST("/rooms/:id/bitrate", roomHandler.SetBitrate)
		apiGroup.POST("/rooms/:id/lock", roomHandler.SetLock)
		apiGroup.POST("/rooms/:id/keepalive", roomHandler.SetKeepAlive)
		apiGroup.POST("/rooms/:id/allow", roomHandler.Allow)
		apiGroup.POST("/rooms/:id/deny", roomHandler.Deny)
		apiGroup.POST("/rooms/:id/transfer", roomHandler.Transfer)
		apiGroup.POST("/rooms/:id/claim", roomHandler.Claim)
		apiGroup.POST("/rooms/:id/delete", roomHandler.Delete)

		// Preferences
		apiGroup.GET("/guilds/:id/preferences/:userId", prefHandler.Get)
		apiGroup.PUT("/guilds/:id/preferences/:userId", prefHandler.Set)
		apiGroup.DELETE("/guilds/:id/preferences/:userId", prefHandler.Reset)

		// Audit
		apiGroup.GET("/guilds/:id/audit", auditHandler.List)
		apiGroup.POST("/guilds/:id/audit/export", middleware.RequireRole("admin"), auditHandler.Export)
	}

	// Dashboard WebSocket (token in query; no Authorization header required)
	router.GET("/ws", events.ServeWs(hub, logger, wsValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go consumer.Run(bgCtx)
	go scheduler.Run(bgCtx)

	if s3Client != nil {
		exporter := worker.NewExporter(jobQueue, auditRepo, s3Client, logger)
		go exporter.Run(bgCtx)
		logger.Info("audit exporter started in-process")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
