// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"restock/internal/domain/alerts"
	"restock/internal/domain/events"
	"restock/internal/domain/ledger"
	"restock/internal/domain/lots"
	"restock/internal/domain/purchase"
	"restock/internal/domain/stockcount"
	"restock/internal/domain/uom"
	"restock/internal/infrastructure/http/v1/handlers"
	"restock/internal/infrastructure/http/v1/middleware"
	"restock/internal/infrastructure/numbering"
	"restock/internal/infrastructure/storage/postgres"
	"restock/internal/infrastructure/storage/postgres/catalog_repo"
	"restock/internal/infrastructure/storage/postgres/count_repo"
	"restock/internal/infrastructure/storage/postgres/ledger_repo"
	"restock/internal/infrastructure/storage/postgres/lot_repo"
	"restock/internal/infrastructure/storage/postgres/purchase_repo"
	"restock/pkg/logger"
)

const idempotencyTTL = 24 * time.Hour

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the application database connection pool.
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// Validator for token validation
	Validator *middleware.TokenValidator

	// Publisher delivers post-commit domain events. Optional; nil
	// drops events silently.
	Publisher events.Publisher

	// Redis is used by the readiness probe. Optional.
	Redis *redis.Client

	// Rules yields low-stock rule expressions per organization. Nil
	// falls back to a static rule built from LowStockRule.
	Rules alerts.RuleSource

	// LowStockRule is the CEL expression used when Rules is nil. Empty
	// selects the evaluator's default.
	LowStockRule string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Redis)
	healthHandler.RegisterRoutes(router.Group("/health"))

	services, err := buildServices(cfg)
	if err != nil {
		return nil, err
	}

	base := handlers.NewBaseHandler()

	// API v1 (JWT required)
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.Validator))
	{
		stockHandler := handlers.NewStockHandler(base, services.Ledger)
		stockHandler.RegisterRoutes(api.Group("/stock"))

		purchaseHandler := handlers.NewPurchaseHandler(base, services.Purchase)
		purchaseHandler.RegisterRoutes(api.Group("/purchase-orders"))

		countHandler := handlers.NewStockCountHandler(base, services.Counts)
		countHandler.RegisterRoutes(api.Group("/stock-counts"))

		auditHandler := handlers.NewAuditHandler(base, services.Audit)
		auditHandler.RegisterRoutes(api.Group("/audit"))
	}

	return router, nil
}

// Services bundles the wired domain services.
type Services struct {
	Ledger   *ledger.Service
	Purchase *purchase.Service
	Counts   *stockcount.Service
	Audit    *postgres.AuditSink
}

func buildServices(cfg RouterConfig) (*Services, error) {
	txm := postgres.NewTxManager(cfg.Pool)

	stores := catalog_repo.NewStoreRepo(txm)
	products := catalog_repo.NewProductRepo(txm)
	packs := catalog_repo.NewPackRepo(txm)
	suppliers := catalog_repo.NewSupplierRepo(txm)

	stockRepo := ledger_repo.NewStockRepo(txm)
	costRepo := ledger_repo.NewCostRepo(txm)
	lotRepo := lot_repo.NewLotRepo(txm)
	orderRepo := purchase_repo.NewOrderRepo(txm)
	countRepo := count_repo.NewCountRepo(txm)

	guard := postgres.NewGuard(txm, idempotencyTTL)
	auditSink, err := postgres.NewAuditSink(txm)
	if err != nil {
		return nil, err
	}

	evaluator, err := alerts.NewEvaluator()
	if err != nil {
		return nil, err
	}

	resolver := uom.NewResolver(packs)
	tracker := lots.NewTracker(lotRepo)

	rules := cfg.Rules
	if rules == nil {
		rules = alerts.StaticRule(cfg.LowStockRule)
	}

	ledgerService := ledger.NewService(ledger.Deps{
		Tx:        txm,
		Repo:      stockRepo,
		Costs:     costRepo,
		Stores:    stores,
		Products:  products,
		Resolver:  resolver,
		Lots:      tracker,
		Guard:     guard,
		OnOrder:   orderRepo,
		Alerts:    evaluator,
		Rules:     rules,
		Publisher: cfg.Publisher,
		Audit:     auditSink,
	})

	purchaseService := purchase.NewService(purchase.Deps{
		Tx:        txm,
		Repo:      orderRepo,
		Stores:    stores,
		Products:  products,
		Suppliers: suppliers,
		Resolver:  resolver,
		Ledger:    ledgerService,
		Guard:     guard,
		Numbers:   numbering.NewPurchaseNumbers(txm),
		Publisher: cfg.Publisher,
		Audit:     auditSink,
	})

	countService := stockcount.NewService(stockcount.Deps{
		Tx:        txm,
		Repo:      countRepo,
		Stores:    stores,
		Products:  products,
		Ledger:    ledgerService,
		Guard:     guard,
		Publisher: cfg.Publisher,
		Audit:     auditSink,
	})

	return &Services{
		Ledger:   ledgerService,
		Purchase: purchaseService,
		Counts:   countService,
		Audit:    auditSink,
	}, nil
}
