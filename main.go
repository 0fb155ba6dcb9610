package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ngbao12/GoPass-sub000/internal/config"
	"github.com/ngbao12/GoPass-sub000/internal/events"
	"github.com/ngbao12/GoPass-sub000/internal/handlers"
	"github.com/ngbao12/GoPass-sub000/internal/repositories/casdoor"
	"github.com/ngbao12/GoPass-sub000/internal/repositories/postgres"
	"github.com/ngbao12/GoPass-sub000/internal/services"
	"github.com/ngbao12/GoPass-sub000/internal/session"
	"github.com/ngbao12/GoPass-sub000/internal/utils"
	"github.com/ngbao12/GoPass-sub000/internal/validator"
	"github.com/ngbao12/GoPass-sub000/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize Redis: %v", err)
		}
	}

	// Initialize repositories
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Certificate,
			OrganizationName: cfg.Casdoor.OrganizationName,
			ApplicationName:  cfg.Casdoor.ApplicationName,
		},
	})

	// Initialize event publisher; fall back to a no-op when Kafka is absent
	var publisher events.EventPublisher
	kafkaPublisher, err := events.NewKafkaEventPublisher(events.PublisherConfig{
		KafkaBrokers: cfg.KafkaBrokers,
		TopicName:    cfg.KafkaTopic,
		Logger:       slogLogger,
	})
	if err != nil {
		log.Printf("Warning: Failed to initialize Kafka publisher: %v", err)
		publisher = events.NoopEventPublisher{}
	} else {
		publisher = kafkaPublisher
	}

	// Session snapshot store (only usable when Redis is up)
	snapshots := session.NewSnapshotStore(redisClient, cfg.SnapshotTTL)

	// Initialize validator and services
	validate := validator.New()
	serviceManager, err := services.NewServiceManager(services.ServiceManagerDeps{
		DB:        db,
		Repo:      repo,
		Logger:    slogLogger,
		Validator: validate,
		Snapshots: snapshots,
		Publisher: publisher,
	})
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Background sweeper that finalizes expired in-progress submissions
	workerCtx, stopWorker := context.WithCancel(context.Background())
	timeoutWorker := session.NewTimeoutWorker(repo.Submission(), serviceManager.Submission(), logger, cfg.SweepInterval)
	go timeoutWorker.Start(workerCtx)

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(serviceManager, validate, logger, cfg.Casdoor, repo.User())

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Closes the publisher, database and Redis connections
	if err := serviceManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown services: %v", err)
	}

	logger.Info("Server exited")
}
