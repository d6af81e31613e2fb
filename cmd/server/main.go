package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pruebachat/chatcore/internal/api"
	"github.com/pruebachat/chatcore/internal/config"
	"github.com/pruebachat/chatcore/internal/db"
	"github.com/pruebachat/chatcore/internal/location"
	"github.com/pruebachat/chatcore/internal/media"
	"github.com/pruebachat/chatcore/internal/middleware"
	"github.com/pruebachat/chatcore/internal/observ"
	"github.com/pruebachat/chatcore/internal/repository/postgres"
	"github.com/pruebachat/chatcore/internal/session"
	"github.com/pruebachat/chatcore/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenTTL = 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no parent deadline — Background() is the right root here.
	// Once the server runs, every request carries its own context.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	// ---------------------------------------------------------------
	// Message store + cross-instance fanout.
	//
	// Redis is optional: without it appends still wake local websocket
	// subscribers, they just don't wake subscribers on other instances.
	// ---------------------------------------------------------------
	storeOpts := []store.Option{store.WithHistoryLimit(cfg.HistoryLimit)}
	var notifier *store.RedisNotifier
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, running single-instance", zap.Error(err))
		} else {
			notifier = store.NewRedisNotifier(rdb, logger)
			storeOpts = append(storeOpts, store.WithNotifier(notifier))
		}
	}

	messages := store.New(messageRepo, logger, storeOpts...)

	if notifier != nil {
		listenCtx, stopListen := context.WithCancel(context.Background())
		defer stopListen()
		go notifier.Listen(listenCtx, messages.Refresh)
	}

	// ---------------------------------------------------------------
	// Identity, sessions, media, location.
	// ---------------------------------------------------------------
	identity := session.NewRepoIdentity(userRepo)
	newSession := func() *session.Manager {
		return session.NewManager(identity, cfg.JWTSecret, tokenTTL, logger)
	}

	blobs := media.NewDiskStore(cfg.BlobDir, cfg.BlobBaseURL)
	uploads := media.NewCoordinator(blobs, messages, logger)
	locations := location.NewStaticProvider(cfg.LocationLat, cfg.LocationLon)

	authHandler := api.NewAuthHandler(newSession, logger)
	messageHandler := api.NewMessageHandler(messages, uploads, locations, logger)
	wsHandler := api.NewWSHandler(messages, cfg.JWTSecret, logger)

	// ---------------------------------------------------------------
	// HTTP server.
	// ---------------------------------------------------------------
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// Health check is PUBLIC — load balancers hit this to check liveness.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv.POST("/v1/auth/login", authHandler.Login)
	srv.POST("/v1/auth/register", authHandler.Register)

	// The websocket authenticates via its token query parameter, so it
	// stays outside the middleware group.
	srv.GET("/v1/ws", wsHandler.Subscribe)

	// Uploaded chat images are served straight from the blob directory.
	srv.Static("/blobs", cfg.BlobDir)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	v1.POST("/auth/logout", authHandler.Logout)
	v1.GET("/messages", messageHandler.List)
	v1.POST("/messages", messageHandler.Create)
	v1.POST("/messages/image", messageHandler.SendImage)
	v1.POST("/messages/location", messageHandler.SendLocation)
	v1.GET("/location", messageHandler.LocationAvailability)

	logger.Info("starting chatcore",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Int("history_limit", cfg.HistoryLimit),
	)

	return srv.Run(":" + cfg.Port)
}
