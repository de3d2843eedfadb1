package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"invoicedesk/internal/api"
	"invoicedesk/internal/api/handlers"
	"invoicedesk/internal/api/middleware"
	"invoicedesk/internal/cache"
	"invoicedesk/internal/config"
	"invoicedesk/internal/db"
	"invoicedesk/internal/extract"
	"invoicedesk/internal/logging"
	"invoicedesk/internal/services"
	"invoicedesk/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logging.L()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		return 1
	}
	logging.SetLevel(cfg.LogLevel)
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg)
	if err != nil {
		log.Errorf("Failed to connect to database: %v", err)
		return 1
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Warnf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	err = services.EnsureInvoiceIndexes(indexCtx, mongoDb)
	cancelIndex()
	if err != nil {
		log.Errorf("Failed to ensure invoice indexes: %v", err)
		return 1
	}

	// Initialize blob storage
	blobStore, err := newBlobStore(cfg, mongoDb)
	if err != nil {
		log.Errorf("Failed to initialize %s blob storage: %v", cfg.BlobBackend, err)
		return 1
	}

	// Initialize Cache (Redis), optional
	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		log.Errorf("Failed to connect to Redis: %v", err)
		return 1
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Warnf("Error disconnecting from Redis: %v", err)
		}
	}()

	limiter, err := newExtractLimiter(cfg, redisClient)
	if err != nil {
		log.Errorf("Failed to initialize rate limiter: %v", err)
		return 1
	}

	// Initialize Services
	invoiceService := services.NewInvoiceService(mongoDb)
	uploadService := services.NewUploadService(blobStore)
	extractor := extract.NewService(uploadService, extract.BackendsFromConfig(cfg))

	router := api.SetupRouter(api.Dependencies{
		Config:         cfg,
		InvoiceService: invoiceService,
		UploadService:  uploadService,
		Extractor:      extractor,
		ExtractLimiter: limiter,
		HealthChecks:   healthChecks(mongoClient, blobStore, redisClient),
	})
	srv := &http.Server{
		Addr:              ":" + cfg.ApiPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("API listening on :%s (blob backend %s)", cfg.ApiPort, cfg.BlobBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Infof("Received signal: %s. Shutting down gracefully...", sig)
	case err := <-serveErr:
		if err != nil {
			log.Errorf("API server error: %v", err)
			return 1
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Errorf("Graceful shutdown did not finish within %s: %v; forcing close", cfg.ShutdownGrace, err)
		_ = srv.Close()
		return 1
	}

	log.Info("Server gracefully stopped")
	return 0
}

func newBlobStore(cfg *config.Config, mongoDb *mongo.Database) (storage.BlobStore, error) {
	if cfg.BlobBackend == config.BlobBackendS3 {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return storage.NewS3Storage(ctx, cfg)
	}
	return storage.NewGridFSStorage(mongoDb), nil
}

// newExtractLimiter shares the quota through Redis when it is configured.
func newExtractLimiter(cfg *config.Config, rdb *redis.Client) (middleware.Limiter, error) {
	if rdb == nil {
		return middleware.NewLocalLimiter(cfg.ExtractRateLimit, cfg.ExtractRateWindow), nil
	}
	return middleware.NewRedisFixedWindow(rdb, "invoicedesk:ratelimit:extract", cfg.ExtractRateLimit, cfg.ExtractRateWindow)
}

func healthChecks(mongoClient *mongo.Client, blobStore storage.BlobStore, rdb *redis.Client) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"mongo": func(ctx context.Context) error { return db.Ping(ctx, mongoClient) },
		"blob":  blobStore.Ping,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
