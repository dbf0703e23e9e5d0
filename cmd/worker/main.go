// Package main runs the standalone pass delivery worker pool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sangam-association/backend/config"
	"github.com/sangam-association/backend/internal/notifications"
	"github.com/sangam-association/backend/internal/notify"
	"github.com/sangam-association/backend/internal/registrations"
	"github.com/sangam-association/backend/pkg/database"
	"github.com/sangam-association/backend/pkg/queue"
	"github.com/sangam-association/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var archived notify.PassStore
	passesBucket := ""
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PassesBucket:         cfg.AWS.PassesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled, archived passes unavailable", zap.Error(err))
		} else {
			archived = s3Client
			passesBucket = s3Client.PassesBucket()
		}
	}

	waClient := whatsapp.NewClient(whatsapp.Config{
		APIBaseURL:    cfg.WhatsApp.APIBaseURL,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
	}, logger)
	if !waClient.Configured() {
		logger.Fatal("whatsapp credentials required for the pass worker")
	}

	registrationRepo := registrations.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	sendLock := notify.NewSendLock(pool)
	sender := notify.NewSender(sendLock, waClient, notificationRepo, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := notify.NewPassProcessor(jobQueue, sender, registrationRepo, archived, passesBucket,
		cfg.Worker.PassWorkerCount, cfg.Worker.PassSendRatePerSec, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
