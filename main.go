package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/queueflow/queue-core/internal/handler"
	"github.com/queueflow/queue-core/internal/hub"
	"github.com/queueflow/queue-core/internal/metrics"
	"github.com/queueflow/queue-core/internal/notifier"
	"github.com/queueflow/queue-core/internal/repository"
	"github.com/queueflow/queue-core/internal/service"
	"github.com/queueflow/queue-core/internal/worker"
	"github.com/queueflow/queue-core/pkg/config"
	"github.com/queueflow/queue-core/pkg/database"
	"github.com/queueflow/queue-core/pkg/logger"
	"github.com/queueflow/queue-core/pkg/middleware"
	pkgredis "github.com/queueflow/queue-core/pkg/redis"
	"github.com/queueflow/queue-core/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       logLevel(cfg),
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting queue-core service...")

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		appLog.Fatal(fmt.Sprintf("Telemetry init failed: %v", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()
	metrics.Init()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
		MaxRetries:      3,
		RetryInterval:   time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	var publisher service.EventPublisher
	publisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		ClientID: cfg.Kafka.ClientID,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka unavailable, lifecycle events disabled: %v", err))
		publisher = service.NewNoOpEventPublisher()
	} else {
		appLog.Info("Kafka event publisher connected")
	}
	defer publisher.Close()

	queueRepo := repository.NewPostgresQueueRepository(db.Pool())
	ticketRepo := repository.NewPostgresTicketRepository(db.Pool())
	seqRepo := repository.NewRedisSequenceRepository(redisClient)
	if err := seqRepo.LoadScripts(ctx); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to pre-load Lua scripts: %v", err))
	}

	registry := hub.NewRegistry(hub.Config{
		WriteTimeout:   cfg.Hub.WriteTimeout,
		PongTimeout:    cfg.Hub.PongTimeout,
		PingInterval:   cfg.Hub.PingInterval,
		SendBufferSize: cfg.Hub.SendBufferSize,
		MaxMessageSize: cfg.Hub.MaxMessageSize,
	})

	notifyClient := notifier.NewClient(&notifier.Config{
		BaseURL: cfg.Notifier.BaseURL,
		Timeout: cfg.Notifier.Timeout,
	})

	ticketService := service.NewTicketService(queueRepo, ticketRepo, seqRepo, registry, notifyClient, publisher)
	queueService := service.NewQueueService(queueRepo, ticketRepo, registry, notifyClient)

	expiryWorker := worker.NewExpiryWorker(ticketService, worker.Config{
		Interval:  cfg.Worker.ExpiryInterval,
		TicketTTL: cfg.Worker.TicketTTL,
	})
	expiryWorker.Start()
	defer expiryWorker.Stop()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(appLog))
	router.Use(telemetry.TracingMiddleware(cfg.App.Name))

	handler.RegisterRoutes(router,
		handler.NewQueueHandler(queueService, ticketService),
		handler.NewTicketHandler(ticketService),
		handler.NewHealthHandler(map[string]handler.HealthChecker{
			"postgres": db,
			"redis":    redisClient,
		}),
		registry,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLog.Info(fmt.Sprintf("queue-core listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

func logLevel(cfg *config.Config) string {
	if cfg.App.Debug {
		return "debug"
	}
	return "info"
}
