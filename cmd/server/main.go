package main

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/database"
	"github.com/tutorhub/tutorhub/internal/handler"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/queue"
	"github.com/tutorhub/tutorhub/internal/realtime"
	"github.com/tutorhub/tutorhub/internal/repository"
	"github.com/tutorhub/tutorhub/internal/router"
	"github.com/tutorhub/tutorhub/internal/storage"
)

func main() {
	cfg := config.Load()

	logger := config.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	migCtx, migCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := database.Migrate(migCtx, db); err != nil {
		migCancel()
		logger.Fatal("run migrations", zap.Error(err))
	}
	migCancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and caching disabled")
	}

	hub := realtime.NewHub(logger)

	// The notification consumer reconnects forever on its own.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			logger.Error("notification consumer stopped", zap.Error(err))
		}
	}()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	profiles := repository.NewProfileRepo(db)
	tickets := repository.NewTicketRepo(db)
	conversations := repository.NewConversationRepo(db)
	meetings := repository.NewMeetingRepo(db)
	rooms := repository.NewStudyRoomRepo(db)
	connections := repository.NewConnectionRepo(db)

	s3 := storage.NewS3Store(cfg.AWSRegion, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.AWSBucket)

	e := echo.New()
	e.HideBanner = true

	router.Register(e, router.Handlers{
		Auth:       handler.NewAuthHandler(cfg, users, tokens, profiles, logger),
		Profile:    handler.NewProfileHandler(profiles),
		Ticket:     handler.NewTicketHandler(tickets, profiles, nil),
		Conv:       handler.NewConversationHandler(conversations, profiles, hub),
		Meeting:    handler.NewMeetingHandler(meetings, profiles, hub, nil),
		Room:       handler.NewStudyRoomHandler(rooms, profiles, hub),
		Connection: handler.NewConnectionHandler(connections, profiles, nil),
		Storage:    handler.NewStorageHandler(s3),
		Realtime:   handler.NewRealtimeHandler(hub, conversations, rooms),
		JWTSecret:  cfg.JWTSecret,
		RateLimit:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:      middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
