// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"restock/internal/core/id"
	"restock/internal/domain/catalog"
	"restock/internal/infrastructure/storage/postgres"
	"restock/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	orgID := id.New()
	if raw := os.Getenv("SEED_ORG_ID"); raw != "" {
		orgID, err = id.Parse(raw)
		if err != nil {
			log.Fatalw("invalid SEED_ORG_ID", "error", err)
		}
	}

	// Seeding runs without a billing service, so plan limits are not enforced.
	if err := seedDemoData(ctx, pool, catalog.NopGate{}, orgID); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	log.Infow("demo data seeded", "organization_id", orgID)
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, gate catalog.CapacityGate, orgID id.ID) error {
	if err := gate.AssertWithinLimits(ctx, orgID, catalog.ResourceStore); err != nil {
		return err
	}

	storeID := id.New()
	supplierID := id.New()
	unitID := id.New() // base unit "pcs"; units are maintained outside this service
	beansID := id.New()
	shirtID := id.New()

	_, err := pool.Exec(ctx, `
		INSERT INTO cat_stores (id, deletion_mark, version, organization_id, name, code, allow_negative_stock, track_expiry_lots)
		VALUES ($1, false, 1, $2, 'Main store', 'MAIN', false, true)
		ON CONFLICT DO NOTHING`,
		storeID, orgID)
	if err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO cat_suppliers (id, deletion_mark, version, organization_id, name, code, active)
		VALUES ($1, false, 1, $2, 'ACME Wholesale', 'ACME', true)
		ON CONFLICT DO NOTHING`,
		supplierID, orgID)
	if err != nil {
		return fmt.Errorf("seed supplier: %w", err)
	}

	if err := gate.AssertWithinLimits(ctx, orgID, catalog.ResourceProduct); err != nil {
		return err
	}

	// A simple product with a barcode and a case pack.
	_, err = pool.Exec(ctx, `
		INSERT INTO cat_products (id, deletion_mark, version, organization_id, name, sku, barcode, base_unit_id, min_stock, active)
		VALUES ($1, false, 1, $2, 'Coffee beans 1kg', 'BEANS-01', '4600000000017', $3, 10, true)
		ON CONFLICT DO NOTHING`,
		beansID, orgID, unitID)
	if err != nil {
		return fmt.Errorf("seed product: %w", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO cat_product_packs (id, deletion_mark, version, organization_id, product_id, name, multiplier, allow_in_purchasing, allow_in_receiving)
		VALUES ($1, false, 1, $2, $3, 'Case of 6', 6, true, true)
		ON CONFLICT DO NOTHING`,
		id.New(), orgID, beansID)
	if err != nil {
		return fmt.Errorf("seed pack: %w", err)
	}

	// A product with size variants; stock is tracked per variant.
	if err := gate.AssertWithinLimits(ctx, orgID, catalog.ResourceProduct); err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO cat_products (id, deletion_mark, version, organization_id, name, sku, barcode, base_unit_id, min_stock, active)
		VALUES ($1, false, 1, $2, 'Staff t-shirt', 'SHIRT-01', NULL, $3, 0, true)
		ON CONFLICT DO NOTHING`,
		shirtID, orgID, unitID)
	if err != nil {
		return fmt.Errorf("seed product: %w", err)
	}

	for _, size := range []string{"S", "M", "L"} {
		_, err = pool.Exec(ctx, `
			INSERT INTO cat_product_variants (id, deletion_mark, version, organization_id, product_id, name, sku, barcode, active)
			VALUES ($1, false, 1, $2, $3, $4, $5, NULL, true)
			ON CONFLICT DO NOTHING`,
			id.New(), orgID, shirtID, "Size "+size, "SHIRT-01-"+size)
		if err != nil {
			return fmt.Errorf("seed variant: %w", err)
		}
	}

	return nil
}
