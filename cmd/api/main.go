package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"school-journal/internal/api"
	"school-journal/internal/config"
	"school-journal/internal/gateway"
	"school-journal/internal/journal"
	"school-journal/internal/logger"
	"school-journal/internal/queue"
	"school-journal/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Str("store", cfg.Store.Driver).Msg("Starting API server")

	// Remote store
	store, closer, err := gateway.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open remote store")
	}
	defer closer.Close()

	registry := journal.NewRegistry(gateway.New(store), journal.OptionsFromConfig(cfg.Journal))
	defer registry.CloseAll()

	// Import queue is optional
	var imports api.ImportEnqueuer
	if cfg.QueueEnabled() {
		redisClient, err := queue.NewRedisClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		imports = queue.NewProducer(redisClient, cfg)
	} else {
		log.Warn().Msg("Redis not configured, grade imports disabled")
	}

	// Object storage is optional
	var objects storage.Storage
	if cfg.StorageEnabled() {
		s3Storage, err := storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
		objects = s3Storage
	} else {
		log.Warn().Msg("S3 not configured, journal export disabled")
	}

	handler := api.NewHandler(registry, imports, objects, cfg)

	// Setup Gin router
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(api.CORSMiddleware())
	router.Use(api.LoggingMiddleware())
	router.Use(api.RecoveryMiddleware())

	api.SetupRoutes(router, handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
