package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Import pprof for profiling
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teerapat-ch/eventhub/internal/di"
	"github.com/teerapat-ch/eventhub/internal/metrics"
	"github.com/teerapat-ch/eventhub/internal/repository"
	"github.com/teerapat-ch/eventhub/internal/service"
	"github.com/teerapat-ch/eventhub/pkg/config"
	"github.com/teerapat-ch/eventhub/pkg/database"
	"github.com/teerapat-ch/eventhub/pkg/logger"
	"github.com/teerapat-ch/eventhub/pkg/middleware"
	pkgredis "github.com/teerapat-ch/eventhub/pkg/redis"
	"github.com/teerapat-ch/eventhub/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting EventHub...")

	ctx := context.Background()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry init failed, continuing without tracing: %v", err))
	}
	defer telemetry.Shutdown(ctx)

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed: %v", err))
	}

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))

	// Initialize Redis connection. Required for the redis membership
	// backend; otherwise only used for idempotency replay.
	var redisClient *pkgredis.Client
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
	}
	redisClient, err = pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		if cfg.Admission.StoreBackend == config.StoreBackendRedis {
			appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
		}
		appLog.Warn(fmt.Sprintf("Redis connection failed, idempotency replay disabled: %v", err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		appLog.Info(fmt.Sprintf("Redis connected (pool: %d)", redisCfg.PoolSize))
	}

	// Initialize repositories
	eventRepo := repository.NewPostgresEventRepository(db.Pool())
	userRepo := repository.NewPostgresUserRepository(db.Pool())

	// Select the membership store backend. Non-Postgres backends serve
	// admissions but write through to Postgres, which stays the system of
	// record the reconcile worker reseeds from.
	var store repository.MembershipStore
	durableStore := repository.NewPostgresMembershipStore(db.Pool())
	switch cfg.Admission.StoreBackend {
	case config.StoreBackendRedis:
		redisStore := repository.NewRedisMembershipStore(redisClient)
		if err := redisStore.LoadScripts(ctx); err != nil {
			appLog.Warn(fmt.Sprintf("Failed to pre-load Lua scripts: %v", err))
		} else {
			appLog.Info("Lua scripts pre-loaded into Redis")
		}
		store = repository.NewWriteThroughMembershipStore(redisStore, durableStore)
	case config.StoreBackendMemory:
		store = repository.NewWriteThroughMembershipStore(repository.NewMemoryMembershipStore(), durableStore)
	default:
		store = durableStore
	}
	appLog.Info(fmt.Sprintf("Membership store backend: %s", cfg.Admission.StoreBackend))

	// Initialize Kafka RSVP publisher
	var rsvpPublisher service.RSVPPublisher
	rsvpPublisher, err = service.NewKafkaRSVPPublisher(ctx, &service.RSVPPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		rsvpPublisher = service.NewNoOpRSVPPublisher()
	} else {
		appLog.Info("Kafka RSVP publisher connected")
	}
	defer rsvpPublisher.Close()

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:            db,
		Redis:         redisClient,
		EventRepo:     eventRepo,
		UserRepo:      userRepo,
		Store:         store,
		RSVPPublisher: rsvpPublisher,
	})

	// Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DisableConsoleColor()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(appLog))
	router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)
	router.GET("/debug/pool", container.HealthHandler.Pool)

	// API routes
	auth := middleware.Auth(&middleware.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	})

	v1 := router.Group("/api/v1")
	{
		events := v1.Group("/events")
		{
			// Read operations, no auth
			events.GET("", container.EventHandler.ListEvents)
			events.GET("/:id", container.EventHandler.GetEvent)
			events.GET("/:id/attendees", container.RSVPHandler.Attendees)

			// Lifecycle operations
			events.POST("", auth, container.EventHandler.CreateEvent)
			events.PUT("/:id", auth, container.EventHandler.UpdateEvent)
			events.DELETE("/:id", auth, container.EventHandler.DeleteEvent)

			// Admission operations with idempotency replay
			if redisClient != nil {
				idem := middleware.Idempotency(middleware.DefaultIdempotencyConfig(redisClient.Client()))
				events.POST("/:id/join", auth, idem, container.RSVPHandler.Join)
				events.POST("/:id/leave", auth, idem, container.RSVPHandler.Leave)
			} else {
				events.POST("/:id/join", auth, container.RSVPHandler.Join)
				events.POST("/:id/leave", auth, container.RSVPHandler.Leave)
			}
		}
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start pprof server on separate port for profiling
	go func() {
		pprofAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1000)
		appLog.Info(fmt.Sprintf("pprof server listening on %s", pprofAddr))
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			appLog.Error(fmt.Sprintf("pprof server error: %v", err))
		}
	}()

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("EventHub listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
