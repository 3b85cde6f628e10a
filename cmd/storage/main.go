package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdamWentworth/pokesync/internal/cache"
	"github.com/AdamWentworth/pokesync/internal/config"
	"github.com/AdamWentworth/pokesync/internal/consumer"
	"github.com/AdamWentworth/pokesync/internal/handler"
	"github.com/AdamWentworth/pokesync/internal/metrics"
	"github.com/AdamWentworth/pokesync/internal/queue"
	"github.com/AdamWentworth/pokesync/internal/repository"
	"github.com/AdamWentworth/pokesync/internal/router"
	"github.com/AdamWentworth/pokesync/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting PokeSync storage service...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	metrics.Register()

	// Initialize store based on config
	var store repository.Store
	switch cfg.Store.Type {
	case "mysql":
		mysqlStore, err := repository.NewMySQLStore(cfg.Store.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL store: %v", err)
		}
		store = mysqlStore
		log.Println("MySQL store initialized")
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite store: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite store initialized")
	}
	defer store.Close()

	// Initialize username-lookup cache; Redis failures degrade to the
	// in-process cache so ingestion never blocks on the cache tier.
	var lookups cache.Cache
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, using memory cache: %v", err)
			lookups = cache.NewMemoryCache()
		} else {
			lookups = redisCache
		}
	} else {
		lookups = cache.NewMemoryCache()
	}
	defer lookups.Close()

	// Initialize services
	reconciler := service.NewReconciler(store, lookups, cfg.Cache.TTL)
	guardian := service.NewGuardian(store, cfg.Store.ProbeAttempts, cfg.Store.ProbeInterval)

	failureQueue, err := queue.New(cfg.Replay.File)
	if err != nil {
		log.Fatalf("Failed to initialize failure queue: %v", err)
	}

	replay, err := service.NewReplayScheduler(failureQueue, reconciler, cfg.Replay.Cron)
	if err != nil {
		log.Fatalf("Failed to initialize replay scheduler: %v", err)
	}

	kafkaConsumer := consumer.New(consumer.Config{
		Broker:             cfg.Kafka.Broker(),
		Topic:              cfg.Kafka.Topic,
		GroupID:            cfg.Kafka.GroupID,
		PollTimeout:        cfg.Kafka.PollTimeout,
		ConnectBase:        cfg.Kafka.ConnectBase,
		ConnectMaxAttempts: cfg.Kafka.ConnectMaxAttempts,
		PollBackoffCap:     cfg.Kafka.PollBackoffCap,
	}, guardian, reconciler, failureQueue)

	// Background workers
	runCtx, stopWorkers := context.WithCancel(context.Background())
	go replay.Run(runCtx)
	go func() {
		if err := kafkaConsumer.Run(runCtx); err != nil {
			log.Printf("Consumer halted: %v", err)
		}
	}()

	// Initialize handlers
	healthHandler := handler.New(store, cfg.App.Version)
	queryHandler := handler.NewQueryHandler(store)

	// Create router
	r := router.New(router.Config{
		Handler:      healthHandler,
		QueryHandler: queryHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
