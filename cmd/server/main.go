package main

import (
	"context"
	"os"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/cache"
	"github.com/chainsplit/chainsplit-backend/internal/config"
	"github.com/chainsplit/chainsplit-backend/internal/handlers"
	"github.com/chainsplit/chainsplit-backend/internal/handlers/ws"
	"github.com/chainsplit/chainsplit-backend/internal/metrics"
	"github.com/chainsplit/chainsplit-backend/internal/repository"
	"github.com/chainsplit/chainsplit-backend/internal/service"
	"github.com/chainsplit/chainsplit-backend/internal/storage"
	"github.com/chainsplit/chainsplit-backend/internal/worker"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	log := logger.New(cfg.LogLevel)
	if !envLoaded {
		log.Info("No .env file found, using system environment variables")
	}

	// Initialize database connection
	db, err := repository.InitDB(cfg.DB.DSN())
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Initialize Redis cache (optional)
	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := redisCache.Ping(pingCtx); err != nil {
		log.WithError(err).Warn("Redis connection failed, running without cache")
		_ = redisCache.Close()
		redisCache = nil
	} else {
		log.WithField("addr", cfg.Redis.Addr).Info("Redis cache connected")
	}
	cancelPing()

	chainCache := cache.NewChainCache(redisCache)
	presenceCache := cache.NewPresenceCache(redisCache)
	unreadCache := cache.NewUnreadCache(redisCache)

	m := metrics.New()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	chainRepo := repository.NewChainRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL)
	userService := service.NewUserService(userRepo, presenceCache)
	chainService := service.NewChainService(chainRepo, userRepo, subscriptionRepo, chainCache, m, log)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, chainService, chainCache, log)
	messageService := service.NewMessageService(messageRepo, chainRepo, userRepo, unreadCache, log)

	hub := ws.NewHub(chainService, m, log)
	messageService.SetRouter(hub)
	hub.Start()

	renewals := worker.NewRenewalWorker(subscriptionRepo, chainRepo, m, cfg.RenewalInterval, log)
	if err := renewals.Start(context.Background()); err != nil {
		log.WithError(err).Fatal("Failed to start renewal worker")
	}

	// Initialize S3/MinIO storage (best-effort; attachment endpoints return 503 if missing)
	var attachments handlers.AttachmentStore
	if s3cfg, err := storage.LoadS3ConfigFromEnv(); err != nil {
		log.WithError(err).Warn("S3 storage not configured")
	} else if st, err := storage.NewS3Storage(s3cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize S3 storage")
	} else {
		bucketCtx, cancelBucket := context.WithTimeout(context.Background(), 5*time.Second)
		if err := st.EnsureBucket(bucketCtx, s3cfg.Region); err != nil {
			log.WithError(err).Warn("Could not verify S3 bucket")
		}
		cancelBucket()
		attachments = st
		log.WithField("bucket", s3cfg.Bucket).Info("S3 storage initialized")
	}

	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
		// Attachments up to 8MB + multipart overhead.
		BodyLimit: handlers.MaxAttachmentSize + 1024*1024,
	})

	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CS-CSRF",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: cfg.AllowedOrigins != "" && cfg.AllowedOrigins != "*",
	}))

	handlers.Register(app, handlers.Set{
		Auth:          handlers.NewAuthHandler(authService, cfg.SecureCookies),
		Users:         handlers.NewUserHandler(userService),
		Chains:        handlers.NewChainHandler(chainService),
		Subscriptions: handlers.NewSubscriptionHandler(subscriptionService),
		Messages:      handlers.NewMessageHandler(messageService),
		Attachments:   handlers.NewAttachmentHandler(attachments, log),
		WebSocket:     handlers.NewWebSocketHandler(hub, messageService, userService, cfg.WSDebug, log),
	}, handlers.RouteConfig{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		CSRFMode:       cfg.CSRFMode,
		AuthRateLimit:  20,
	})

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"message":     cfg.AppName + " is running",
			"connections": hub.Count(),
		})
	})

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return app.ShutdownWithContext(ctx)
			},
			"hub": func(ctx context.Context) error {
				return hub.Stop(ctx)
			},
			"renewals": func(ctx context.Context) error {
				return renewals.Stop(ctx)
			},
			"redis": func(ctx context.Context) error {
				if redisCache == nil {
					return nil
				}
				return redisCache.Close()
			},
		},
	)

	exitCode := <-wait
	log.WithField("exit_code", exitCode).Info("Server stopped")
	os.Exit(exitCode)
}
