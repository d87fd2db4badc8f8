// Package main is the entry point for the restock API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"restock/internal/domain/alerts"
	"restock/internal/domain/events"
	"restock/internal/infrastructure/cache"
	infraevents "restock/internal/infrastructure/events"
	v1 "restock/internal/infrastructure/http/v1"
	"restock/internal/infrastructure/http/v1/middleware"
	"restock/internal/infrastructure/storage/postgres"
	"restock/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting restock server")

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")
	poolCfg := postgres.DefaultPoolConfig(dsn)
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	// --- Events ---
	var (
		publisher events.Publisher
		rdb       *redis.Client
	)
	if addr := getEnv("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalw("failed to ping redis", "error", err)
		}
		redisPublisher := infraevents.NewRedisPublisher(rdb)
		defer redisPublisher.Close()
		publisher = redisPublisher
		log.Infow("event publishing enabled", "redis", addr)
	} else {
		log.Info("REDIS_ADDR not set, event publishing disabled")
	}

	// --- JWT ---
	validator := middleware.NewTokenValidator(
		mustEnv("JWT_SECRET"),
		getEnv("JWT_ISSUER", ""),
	)

	// --- Low-stock rules ---
	lowStockRule := getEnv("LOW_STOCK_RULE", "")
	var rules alerts.RuleSource
	if getEnv("ALERT_RULES_FROM_DB", "false") == "true" {
		ruleCache := cache.NewRuleCache(pool.Unwrap(), lowStockRule)
		if err := ruleCache.Start(ctx); err != nil {
			log.Fatalw("failed to start alert rule cache", "error", err)
		}
		defer ruleCache.Stop()
		rules = ruleCache
	}

	// --- Router ---
	router, err := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		Validator:    validator,
		Publisher:    publisher,
		Redis:        rdb,
		Rules:        rules,
		LowStockRule: lowStockRule,
	})
	if err != nil {
		log.Fatalw("failed to build router", "error", err)
	}

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
