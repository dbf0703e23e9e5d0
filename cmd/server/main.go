// Package main runs the association platform HTTP server with the live
// gate feed and graceful shutdown.
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

	"github.com/sangam-association/backend/config"
	"github.com/sangam-association/backend/internal/auth"
	"github.com/sangam-association/backend/internal/checkin"
	"github.com/sangam-association/backend/internal/events"
	"github.com/sangam-association/backend/internal/live"
	"github.com/sangam-association/backend/internal/members"
	"github.com/sangam-association/backend/internal/middleware"
	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/internal/notifications"
	"github.com/sangam-association/backend/internal/notify"
	"github.com/sangam-association/backend/internal/pass"
	"github.com/sangam-association/backend/internal/qrtoken"
	"github.com/sangam-association/backend/internal/registrations"
	"github.com/sangam-association/backend/pkg/database"
	"github.com/sangam-association/backend/pkg/queue"
	"github.com/sangam-association/backend/pkg/redis"
	"github.com/sangam-association/backend/pkg/response"
	"github.com/sangam-association/backend/pkg/storage"
	"github.com/sangam-association/backend/pkg/whatsapp"
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

	// Redis is optional: without it OTP login answers 503 and pass
	// delivery runs inline (degraded mode) instead of through workers.
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, running degraded", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PassesBucket:         cfg.AWS.PassesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	waClient := whatsapp.NewClient(whatsapp.Config{
		APIBaseURL:    cfg.WhatsApp.APIBaseURL,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
	}, logger)
	codec := qrtoken.NewCodec(cfg.QR.Secret)

	// Auth (OTP login)
	authRepo := auth.NewRepository(pool)
	var otpStore *auth.OTPStore
	if rdb != nil {
		otpStore = auth.NewOTPStore(rdb.Client, time.Duration(cfg.OTP.TTLMinutes)*time.Minute, cfg.OTP.Digits)
	}
	authHandler := auth.NewHandler(authRepo, otpStore, jwtService, waClient, cfg.OTP.DevLogCodes, logger)

	// Members and events
	memberRepo := members.NewRepository(pool)
	memberHandler := members.NewHandler(memberRepo, s3Client, logger)
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Pass rendering
	var passStore pass.ObjectStore
	mediaBucket := ""
	if s3Client != nil {
		passStore = s3Client
		mediaBucket = s3Client.MediaBucket()
	}
	renderer := pass.NewRenderer(codec, passStore, mediaBucket, cfg.Assets.LogoPath, cfg.Assets.FontsDir, logger)

	// Pass delivery pipeline
	registrationRepo := registrations.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	sendLock := notify.NewSendLock(pool)
	sender := notify.NewSender(sendLock, waClient, notificationRepo, logger)

	var transport notify.Transport
	var processor *notify.PassProcessor
	if rdb != nil {
		jobQueue := queue.NewQueue(rdb.Client, logger)
		transport = notify.NewQueuedTransport(jobQueue)
		var archived notify.PassStore
		passesBucket := ""
		if s3Client != nil {
			archived = s3Client
			passesBucket = s3Client.PassesBucket()
		}
		processor = notify.NewPassProcessor(jobQueue, sender, registrationRepo, archived, passesBucket,
			cfg.Worker.PassWorkerCount, cfg.Worker.PassSendRatePerSec, logger)
	} else {
		transport = notify.NewDirectTransport(sender, logger)
	}
	logger.Info("pass delivery transport selected", zap.String("mode", transport.Mode()))

	registrationHandler := registrations.NewHandler(registrationRepo, eventRepo, renderer, transport, s3Client, cfg.Server.BaseURL, logger)

	// Gate check-in and live dashboard feed
	hub := live.NewHub(logger)
	checkinService := checkin.NewService(codec, registrationRepo, logger)
	checkinHandler := checkin.NewHandler(checkinService, hub, logger)

	notificationHandler := notifications.NewHandler(notificationRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/request-otp", authHandler.RequestOTP)
		authGroup.POST("/verify-otp", authHandler.VerifyOTP)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Members
		api.GET("/members", middleware.RequireRole(models.RoleAdmin), memberHandler.List)
		api.POST("/members", middleware.RequireRole(models.RoleAdmin), memberHandler.Create)
		api.GET("/members/:id", memberHandler.GetByID)
		api.PATCH("/members/:id", memberHandler.Update)
		api.DELETE("/members/:id", middleware.RequireRole(models.RoleAdmin), memberHandler.Delete)
		api.POST("/members/:id/photo-upload-url", memberHandler.GeneratePhotoUploadURL)

		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", middleware.RequireRole(models.RoleAdmin), eventHandler.Create)
		api.GET("/events/:id", eventHandler.GetByID)
		api.PATCH("/events/:id", middleware.RequireRole(models.RoleAdmin), eventHandler.Update)

		// Registrations and passes
		api.POST("/events/:id/register", registrationHandler.Register)
		api.POST("/events/:id/bulk-register", middleware.RequireRole(models.RoleAdmin), registrationHandler.BulkRegister)
		api.GET("/events/:id/registrations", middleware.RequireRole(models.RoleAdmin, models.RoleGateStaff), registrationHandler.ListByEvent)
		api.GET("/registrations/mine", registrationHandler.ListMine)
		api.GET("/registrations/:id/pass", registrationHandler.GetPass)
		api.POST("/registrations/:id/cancel", registrationHandler.Cancel)
		api.POST("/registrations/:id/resend-pass", middleware.RequireRole(models.RoleAdmin), registrationHandler.ResendPass)
		api.POST("/registrations/:id/payment", middleware.RequireRole(models.RoleAdmin), registrationHandler.RecordPayment)
		api.POST("/registrations/:id/refund", middleware.RequireRole(models.RoleAdmin), registrationHandler.Refund)

		// Gate
		api.POST("/checkin", middleware.RequireRole(models.RoleGateStaff, models.RoleAdmin), checkinHandler.Scan)

		// Activity feed
		api.GET("/notifications", notificationHandler.List)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
		api.POST("/notifications/read-all", notificationHandler.MarkAllRead)
	}

	// WebSocket gate feed (token in query; no Authorization header required)
	router.GET("/ws/events/:id", live.ServeWs(hub, jwtService, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Embedded pass workers (queued mode only)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if processor != nil {
		go processor.Run(workerCtx)
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

	workerCancel()
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
