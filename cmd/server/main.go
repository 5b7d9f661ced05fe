package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/partnerhub/engine/internal/app"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/handlers"
	"github.com/partnerhub/engine/internal/jobs"
	"github.com/partnerhub/engine/internal/logging"
	"github.com/partnerhub/engine/internal/middleware"
	"github.com/partnerhub/engine/internal/queue"
	"github.com/partnerhub/engine/internal/routes"
	"go.uber.org/zap"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Initialize database
	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	redisQueue := queue.NewRedisQueue(redisClient, logger)
	engine := app.New(cfg, db, redisClient, redisQueue, logger)
	svc := engine.Services

	// Start background job processor
	jobProcessor := queue.NewJobProcessor(redisQueue, cfg.Scheduler.WorkerCount, logger)
	jobs.RegisterAllJobHandlers(jobProcessor, svc.Commission, svc.Excellence, logger)
	jobProcessor.Start(ctx)

	// Schedule recurring jobs
	scheduler, err := jobs.NewScheduler(cfg.Scheduler, cfg.Leaderboard.RefreshInterval, jobs.Sweeps{
		Leaderboard: svc.Leaderboard,
		Commissions: svc.Commission,
		Activations: svc.Activation,
		PINs:        engine.PINs,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to schedule jobs", zap.Error(err))
	}
	scheduler.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	rateLimiter := middleware.NewRateLimiter(cfg.Security.IPRequestsPerSecond, cfg.Security.IPBurst)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.FrontendURL))
	router.Use(middleware.SecureHeadersMiddleware(middleware.DefaultSecureHeadersConfig(cfg.IsProduction())))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.Setup(router, handlers.NewHandler(svc, logger), routes.Options{
		JWTSecret:   cfg.JWT.Secret,
		RateLimiter: rateLimiter,
		DB:          db,
	})

	// Start server
	srv := startServer(router, cfg.Server, logger)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create a deadline to wait for
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop()
	jobProcessor.Stop()
	rateLimiter.Stop()
	_ = redisClient.Close()

	logger.Info("Server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, cfg config.ServerConfig, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port))
	return srv
}
