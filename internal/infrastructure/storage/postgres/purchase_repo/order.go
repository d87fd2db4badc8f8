// Package purchase_repo provides PostgreSQL persistence for purchase
// orders and their lines.
package purchase_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/ledger"
	"restock/internal/domain/purchase"
	"restock/internal/infrastructure/storage/postgres"
)

const (
	ordersTable     = "doc_purchase_orders"
	orderLinesTable = "doc_purchase_order_lines"
)

// copyThreshold is the line count above which inserts switch to the
// COPY protocol.
const copyThreshold = 10

// OrderRepo implements purchase.Repository.
type OrderRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	batch   *postgres.BatchInserter
}

// NewOrderRepo creates a new purchase order repository.
func NewOrderRepo(txm *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		batch:   postgres.NewBatchInserter(txm),
	}
}

var _ purchase.Repository = (*OrderRepo)(nil)

var (
	orderColumns = postgres.ExtractDBColumns[purchase.Order]()
	lineColumns  = []string{
		"id", "order_id", "product_id", "variant_id",
		"qty_ordered", "qty_received", "unit_cost",
	}
)

// Insert persists a new order together with its lines.
func (r *OrderRepo) Insert(ctx context.Context, order *purchase.Order) error {
	data := postgres.StructToMap(*order)

	filtered := make(map[string]any, len(orderColumns))
	for _, col := range orderColumns {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.builder.
		Insert(ordersTable).
		SetMap(filtered).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return r.insertLines(ctx, order.Lines)
}

// insertLines bulk-inserts order lines, via COPY when the batch is
// large enough and a transaction is open.
func (r *OrderRepo) insertLines(ctx context.Context, lines []purchase.Line) error {
	if len(lines) == 0 {
		return nil
	}

	if len(lines) >= copyThreshold && r.txm.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(lines))
		for _, line := range lines {
			rows = append(rows, []any{
				line.ID, line.OrderID, line.ProductID, line.VariantID,
				line.QtyOrdered, line.QtyReceived, line.UnitCost,
			})
		}
		if _, err := r.batch.CopyFromSlice(ctx, orderLinesTable, lineColumns, rows); err != nil {
			return fmt.Errorf("copy lines: %w", err)
		}
		return nil
	}

	q := r.builder.
		Insert(orderLinesTable).
		Columns(lineColumns...)
	for _, line := range lines {
		q = q.Values(
			line.ID, line.OrderID, line.ProductID, line.VariantID,
			line.QtyOrdered, line.QtyReceived, line.UnitCost,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// GetByID loads an order with its lines.
func (r *OrderRepo) GetByID(ctx context.Context, orgID, orderID id.ID) (*purchase.Order, error) {
	return r.get(ctx, orgID, orderID, false)
}

// GetForUpdate loads an order with its lines, locking the header row.
// Receiving serializes per order on this lock.
func (r *OrderRepo) GetForUpdate(ctx context.Context, orgID, orderID id.ID) (*purchase.Order, error) {
	return r.get(ctx, orgID, orderID, true)
}

func (r *OrderRepo) get(ctx context.Context, orgID, orderID id.ID, forUpdate bool) (*purchase.Order, error) {
	q := r.builder.
		Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{
			"id":              orderID,
			"organization_id": orgID,
			"deletion_mark":   false,
		})

	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	} else {
		q = q.Limit(1)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)

	var order purchase.Order
	if err := pgxscan.Get(ctx, querier, &order, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("purchase order", orderID.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	linesSQL, args, err := r.builder.
		Select(lineColumns...).
		From(orderLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &order.Lines, linesSQL, args...); err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}

	return &order, nil
}

// UpdateHeader persists header changes. Lines are managed through the
// line methods.
func (r *OrderRepo) UpdateHeader(ctx context.Context, order *purchase.Order) error {
	sql, args, err := r.builder.
		Update(ordersTable).
		Set("status", order.Status).
		Set("comment", order.Comment).
		Set("submitted_at", order.SubmittedAt).
		Set("approved_at", order.ApprovedAt).
		Set("received_at", order.ReceivedAt).
		Set("cancelled_at", order.CancelledAt).
		Set("updated_at", order.UpdatedAt).
		Set("updated_by", order.UpdatedBy).
		Set("version", order.Version).
		Where(squirrel.Eq{
			"id":              order.ID,
			"organization_id": order.OrganizationID,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase order", order.ID.String())
	}

	return nil
}

// InsertLine adds one line to an order.
func (r *OrderRepo) InsertLine(ctx context.Context, line *purchase.Line) error {
	sql, args, err := r.builder.
		Insert(orderLinesTable).
		Columns(lineColumns...).
		Values(
			line.ID, line.OrderID, line.ProductID, line.VariantID,
			line.QtyOrdered, line.QtyReceived, line.UnitCost,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert line: %w", err)
	}

	return nil
}

// UpdateLine persists line changes.
func (r *OrderRepo) UpdateLine(ctx context.Context, line *purchase.Line) error {
	sql, args, err := r.builder.
		Update(orderLinesTable).
		Set("product_id", line.ProductID).
		Set("variant_id", line.VariantID).
		Set("qty_ordered", line.QtyOrdered).
		Set("qty_received", line.QtyReceived).
		Set("unit_cost", line.UnitCost).
		Where(squirrel.Eq{
			"id":       line.ID,
			"order_id": line.OrderID,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update line: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("order line", line.ID.String())
	}

	return nil
}

// DeleteLine removes one line from an order.
func (r *OrderRepo) DeleteLine(ctx context.Context, orderID, lineID id.ID) error {
	sql, args, err := r.builder.
		Delete(orderLinesTable).
		Where(squirrel.Eq{
			"id":       lineID,
			"order_id": orderID,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("order line", lineID.String())
	}

	return nil
}

// List returns order headers matching the filter, newest first. Lines
// are not loaded; list consumers read headers only.
func (r *OrderRepo) List(ctx context.Context, filter purchase.ListFilter) ([]purchase.Order, error) {
	q := r.builder.
		Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{
			"organization_id": filter.OrganizationID,
			"deletion_mark":   false,
		})

	if filter.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *filter.StoreID})
	}
	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	q = q.OrderBy("date DESC", "number DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var orders []purchase.Order
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &orders, sql, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return orders, nil
}

// OpenRemainders sums not-yet-received quantities per (product, variant)
// over open orders of one store. Feeds the on-order side of snapshot
// recompute.
func (r *OrderRepo) OpenRemainders(ctx context.Context, orgID, storeID id.ID) ([]ledger.MovementSum, error) {
	sql := `
		SELECT l.product_id,
		       COALESCE(l.variant_id::text, $3) AS variant_key,
		       COALESCE(SUM(GREATEST(l.qty_ordered - l.qty_received, 0)), 0) AS total
		FROM ` + orderLinesTable + ` l
		JOIN ` + ordersTable + ` o ON o.id = l.order_id
		WHERE o.organization_id = $1
		  AND o.store_id = $2
		  AND o.status IN ($4, $5, $6)
		GROUP BY 1, 2
		ORDER BY 1, 2
	`

	var sums []ledger.MovementSum
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &sums, sql,
		orgID, storeID, ledger.BaseVariantKey,
		purchase.StatusSubmitted, purchase.StatusApproved, purchase.StatusPartiallyReceived,
	)
	if err != nil {
		return nil, fmt.Errorf("sum open remainders: %w", err)
	}

	return sums, nil
}
