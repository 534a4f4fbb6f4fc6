package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teerapat-ch/eventhub/internal/repository"
	"github.com/teerapat-ch/eventhub/internal/worker"
	"github.com/teerapat-ch/eventhub/pkg/config"
	"github.com/teerapat-ch/eventhub/pkg/database"
	"github.com/teerapat-ch/eventhub/pkg/logger"
	pkgredis "github.com/teerapat-ch/eventhub/pkg/redis"
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
		ServiceName: "reconcile-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Reconcile Worker...")

	if cfg.Admission.StoreBackend != config.StoreBackendRedis {
		appLog.Info("Store backend is not redis, nothing to reconcile")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      10,
		MinConns:      2,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	// Initialize Redis connection
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      50,
		MinIdleConns:  10,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	}
	redisClient, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	// Initialize repositories and stores
	eventRepo := repository.NewPostgresEventRepository(db.Pool())
	sourceStore := repository.NewPostgresMembershipStore(db.Pool())
	targetStore := repository.NewRedisMembershipStore(redisClient)

	// Pre-load Lua scripts into Redis
	if err := targetStore.LoadScripts(ctx); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to pre-load Lua scripts: %v", err))
	} else {
		appLog.Info("Lua scripts pre-loaded into Redis")
	}

	// Create worker
	reconcileWorker := worker.NewReconcileWorker(
		eventRepo,
		sourceStore,
		targetStore,
		&worker.ReconcileWorkerConfig{
			ScanInterval: cfg.Admission.ReconcileInterval,
			BatchSize:    cfg.Admission.ReconcileBatch,
		},
	)

	// Start worker
	if err := reconcileWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Worker error: %v", err))
	}

	appLog.Info("Reconcile Worker started successfully")

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down worker...")
	cancel()
	reconcileWorker.Stop()

	appLog.Info("Worker exited gracefully")
}
