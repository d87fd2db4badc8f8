// Package main is the entry point for the restock maintenance worker.
// It prunes expired idempotency records and old audit entries on a
// schedule so the API server never has to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"restock/internal/infrastructure/storage/postgres"
	"restock/pkg/logger"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting restock worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	auditRetention := getEnvDuration("AUDIT_RETENTION", 90*24*time.Hour)

	worker := NewWorker(pool, auditRetention, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	<-done
	log.Info("worker stopped")
}

// Worker runs periodic maintenance against the application database.
type Worker struct {
	pool           *postgres.Pool
	guard          *postgres.Guard
	auditRetention time.Duration
	log            *logger.Logger
}

func NewWorker(pool *postgres.Pool, auditRetention time.Duration, log *logger.Logger) *Worker {
	txm := postgres.NewTxManager(pool)
	return &Worker{
		pool:           pool,
		guard:          postgres.NewGuard(txm, idempotencyTTL),
		auditRetention: auditRetention,
		log:            log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	idemTicker := time.NewTicker(1 * time.Hour)
	defer idemTicker.Stop()

	auditTicker := time.NewTicker(24 * time.Hour)
	defer auditTicker.Stop()

	// One pass at startup so a freshly deployed worker catches up.
	w.cleanupIdempotency(ctx)
	w.pruneAudit(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-idemTicker.C:
			w.cleanupIdempotency(ctx)
		case <-auditTicker.C:
			w.pruneAudit(ctx)
		}
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	removed, err := w.guard.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		w.log.Infow("cleaned up idempotency records", "count", removed)
	}
}

func (w *Worker) pruneAudit(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.auditRetention)
	result, err := w.pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		w.log.Errorw("audit prune failed", "error", err)
		return
	}
	if result.RowsAffected() > 0 {
		w.log.Infow("pruned audit entries", "count", result.RowsAffected(), "cutoff", cutoff)
	}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
