// Package count_repo provides PostgreSQL persistence for stock counts
// and their lines.
package count_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/stockcount"
	"restock/internal/infrastructure/storage/postgres"
)

const (
	countsTable     = "doc_stock_counts"
	countLinesTable = "doc_stock_count_lines"
)

// pgUniqueViolation is the PostgreSQL error code for a unique
// constraint violation.
const pgUniqueViolation = "23505"

// CountRepo implements stockcount.Repository.
type CountRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewCountRepo creates a new stock count repository.
func NewCountRepo(txm *postgres.TxManager) *CountRepo {
	return &CountRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ stockcount.Repository = (*CountRepo)(nil)

var (
	countColumns     = postgres.ExtractDBColumns[stockcount.Count]()
	countLineColumns = []string{
		"id", "count_id", "product_id", "variant_id",
		"expected_on_hand", "counted_qty", "delta_qty",
	}
)

// Insert persists a new count. A code collision on the unique number
// index surfaces as a Duplicate error so the caller can retry with a
// fresh code.
func (r *CountRepo) Insert(ctx context.Context, count *stockcount.Count) error {
	data := postgres.StructToMap(*count)

	filtered := make(map[string]any, len(countColumns))
	for _, col := range countColumns {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.builder.
		Insert(countsTable).
		SetMap(filtered).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewDuplicate("stock count", "number", count.Number)
		}
		return fmt.Errorf("insert count: %w", err)
	}

	return nil
}

// GetByID loads a count with its lines.
func (r *CountRepo) GetByID(ctx context.Context, orgID, countID id.ID) (*stockcount.Count, error) {
	return r.get(ctx, orgID, countID, false)
}

// GetForUpdate loads a count with its lines, locking the header row.
func (r *CountRepo) GetForUpdate(ctx context.Context, orgID, countID id.ID) (*stockcount.Count, error) {
	return r.get(ctx, orgID, countID, true)
}

func (r *CountRepo) get(ctx context.Context, orgID, countID id.ID, forUpdate bool) (*stockcount.Count, error) {
	q := r.builder.
		Select(countColumns...).
		From(countsTable).
		Where(squirrel.Eq{
			"id":              countID,
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

	var count stockcount.Count
	if err := pgxscan.Get(ctx, querier, &count, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock count", countID.String())
		}
		return nil, fmt.Errorf("get count: %w", err)
	}

	linesSQL, args, err := r.builder.
		Select(countLineColumns...).
		From(countLinesTable).
		Where(squirrel.Eq{"count_id": countID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &count.Lines, linesSQL, args...); err != nil {
		return nil, fmt.Errorf("get count lines: %w", err)
	}

	return &count, nil
}

// UpdateHeader persists header changes.
func (r *CountRepo) UpdateHeader(ctx context.Context, count *stockcount.Count) error {
	sql, args, err := r.builder.
		Update(countsTable).
		Set("status", count.Status).
		Set("comment", count.Comment).
		Set("updated_at", count.UpdatedAt).
		Set("updated_by", count.UpdatedBy).
		Set("version", count.Version).
		Where(squirrel.Eq{
			"id":              count.ID,
			"organization_id": count.OrganizationID,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("stock count", count.ID.String())
	}

	return nil
}

// InsertLine adds one line to a count.
func (r *CountRepo) InsertLine(ctx context.Context, line *stockcount.Line) error {
	sql, args, err := r.builder.
		Insert(countLinesTable).
		Columns(countLineColumns...).
		Values(
			line.ID, line.CountID, line.ProductID, line.VariantID,
			line.ExpectedOnHand, line.CountedQty, line.DeltaQty,
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
func (r *CountRepo) UpdateLine(ctx context.Context, line *stockcount.Line) error {
	sql, args, err := r.builder.
		Update(countLinesTable).
		Set("expected_on_hand", line.ExpectedOnHand).
		Set("counted_qty", line.CountedQty).
		Set("delta_qty", line.DeltaQty).
		Where(squirrel.Eq{
			"id":       line.ID,
			"count_id": line.CountID,
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
		return apperror.NewNotFound("count line", line.ID.String())
	}

	return nil
}

// DeleteLine removes one line from a count.
func (r *CountRepo) DeleteLine(ctx context.Context, countID, lineID id.ID) error {
	sql, args, err := r.builder.
		Delete(countLinesTable).
		Where(squirrel.Eq{
			"id":       lineID,
			"count_id": countID,
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
		return apperror.NewNotFound("count line", lineID.String())
	}

	return nil
}

// List returns count headers matching the filter, newest first.
func (r *CountRepo) List(ctx context.Context, filter stockcount.ListFilter) ([]stockcount.Count, error) {
	q := r.builder.
		Select(countColumns...).
		From(countsTable).
		Where(squirrel.Eq{
			"organization_id": filter.OrganizationID,
			"deletion_mark":   false,
		})

	if filter.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *filter.StoreID})
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

	var counts []stockcount.Count
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &counts, sql, args...); err != nil {
		return nil, fmt.Errorf("list counts: %w", err)
	}

	return counts, nil
}
