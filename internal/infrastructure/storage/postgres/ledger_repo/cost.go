package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"restock/internal/core/id"
	"restock/internal/domain/ledger"
	"restock/internal/infrastructure/storage/postgres"
)

const costsTable = "reg_product_costs"

// CostRepo implements ledger.CostRepository.
type CostRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewCostRepo creates a new cost basis repository.
func NewCostRepo(txm *postgres.TxManager) *CostRepo {
	return &CostRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ ledger.CostRepository = (*CostRepo)(nil)

var costColumns = postgres.ExtractDBColumns[ledger.ProductCost]()

// Get returns the cost basis, or (nil, nil) when none exists yet.
func (r *CostRepo) Get(ctx context.Context, orgID, productID id.ID, variantKey string) (*ledger.ProductCost, error) {
	sql, args, err := r.builder.
		Select(costColumns...).
		From(costsTable).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"product_id":      productID,
			"variant_key":     variantKey,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cost ledger.ProductCost
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &cost, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cost: %w", err)
	}

	return &cost, nil
}

// Upsert writes the cost basis. Runs inside the receiving transaction,
// which already holds the snapshot lock for the same key, so concurrent
// receipts of one product serialize before reaching here.
func (r *CostRepo) Upsert(ctx context.Context, cost *ledger.ProductCost) error {
	sql, args, err := r.builder.
		Insert(costsTable).
		Columns("organization_id", "product_id", "variant_key", "avg_cost", "updated_at").
		Values(cost.OrganizationID, cost.ProductID, cost.VariantKey, cost.AvgCost, cost.UpdatedAt).
		Suffix(`ON CONFLICT (organization_id, product_id, variant_key)
			DO UPDATE SET avg_cost = EXCLUDED.avg_cost, updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert cost: %w", err)
	}

	return nil
}
