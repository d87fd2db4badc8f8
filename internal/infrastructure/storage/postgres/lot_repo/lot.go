// Package lot_repo provides PostgreSQL persistence for the expiry-lot
// sub-ledger.
package lot_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/lots"
	"restock/internal/infrastructure/storage/postgres"
)

const lotsTable = "reg_stock_lots"

// LotRepo implements lots.Repository.
type LotRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLotRepo creates a new stock lot repository.
func NewLotRepo(txm *postgres.TxManager) *LotRepo {
	return &LotRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ lots.Repository = (*LotRepo)(nil)

var lotColumns = postgres.ExtractDBColumns[lots.StockLot]()

// Find returns the lot matching key, or (nil, nil). A NULL expiry date
// is a distinct lot key, so the nil pointer maps to IS NULL rather than
// matching any row.
func (r *LotRepo) Find(ctx context.Context, key lots.LotKey) (*lots.StockLot, error) {
	q := r.builder.
		Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{
			"organization_id": key.OrganizationID,
			"store_id":        key.StoreID,
			"product_id":      key.ProductID,
			"variant_key":     key.VariantKey,
		}).
		Limit(1)

	if key.ExpiryDate == nil {
		q = q.Where(squirrel.Eq{"expiry_date": nil})
	} else {
		q = q.Where(squirrel.Eq{"expiry_date": *key.ExpiryDate})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot lots.StockLot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find lot: %w", err)
	}

	return &lot, nil
}

// Insert creates a new lot.
func (r *LotRepo) Insert(ctx context.Context, lot *lots.StockLot) error {
	data := postgres.StructToMap(*lot)

	filtered := make(map[string]any, len(lotColumns))
	for _, col := range lotColumns {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.builder.
		Insert(lotsTable).
		SetMap(filtered).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}

	return nil
}

// Update persists a changed lot balance. Lot writes run under the
// matching snapshot row lock, so no optimistic check is needed here.
func (r *LotRepo) Update(ctx context.Context, lot *lots.StockLot) error {
	sql, args, err := r.builder.
		Update(lotsTable).
		Set("on_hand_qty", lot.OnHandQty).
		Set("version", lot.Version).
		Where(squirrel.Eq{"id": lot.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(lotsTable, lot.ID.String())
	}

	return nil
}

// List returns the lots of one store, optionally narrowed to a product.
// NULL expiry sorts last.
func (r *LotRepo) List(ctx context.Context, orgID, storeID id.ID, productID *id.ID) ([]lots.StockLot, error) {
	q := r.builder.
		Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"store_id":        storeID,
		})

	if productID != nil {
		q = q.Where(squirrel.Eq{"product_id": *productID})
	}

	q = q.OrderBy("product_id", "variant_key", "expiry_date ASC NULLS LAST")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []lots.StockLot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}

	return items, nil
}
