// Package ledger_repo provides PostgreSQL persistence for the stock
// ledger: inventory snapshots, the append-only movement log and the
// weighted-average cost basis.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"restock/internal/core/id"
	"restock/internal/domain/ledger"
	"restock/internal/infrastructure/storage/postgres"
)

const (
	snapshotsTable = "reg_inventory_snapshots"
	movementsTable = "reg_stock_movements"
)

// StockRepo implements ledger.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ ledger.Repository = (*StockRepo)(nil)

var snapshotColumns = postgres.ExtractDBColumns[ledger.Snapshot]()

// LockSnapshot upserts the snapshot row for key if absent, then takes an
// exclusive row lock. The insert races benignly: ON CONFLICT DO NOTHING
// means whoever loses the race locks the winner's row instead. The
// denormalized negative-stock flag is refreshed while the lock is held.
func (r *StockRepo) LockSnapshot(ctx context.Context, key ledger.SnapshotKey, allowNegative bool) (*ledger.Snapshot, error) {
	querier := r.txm.GetQuerier(ctx)

	insertSQL, args, err := r.builder.
		Insert(snapshotsTable).
		Columns(
			"id", "organization_id", "store_id", "product_id", "variant_key",
			"on_hand", "on_order", "allow_negative_stock", "updated_at",
		).
		Values(
			id.New(), key.OrganizationID, key.StoreID, key.ProductID, key.VariantKey,
			int64(0), int64(0), allowNegative, time.Now().UTC(),
		).
		Suffix("ON CONFLICT (organization_id, store_id, product_id, variant_key) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	if _, err := querier.Exec(ctx, insertSQL, args...); err != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}

	selectSQL, args, err := r.builder.
		Select(snapshotColumns...).
		From(snapshotsTable).
		Where(squirrel.Eq{
			"organization_id": key.OrganizationID,
			"store_id":        key.StoreID,
			"product_id":      key.ProductID,
			"variant_key":     key.VariantKey,
		}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var snap ledger.Snapshot
	if err := pgxscan.Get(ctx, querier, &snap, selectSQL, args...); err != nil {
		return nil, fmt.Errorf("lock snapshot: %w", err)
	}

	if snap.AllowNegativeStock != allowNegative {
		updateSQL, args, err := r.builder.
			Update(snapshotsTable).
			Set("allow_negative_stock", allowNegative).
			Where(squirrel.Eq{"id": snap.ID}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build update: %w", err)
		}
		if _, err := querier.Exec(ctx, updateSQL, args...); err != nil {
			return nil, fmt.Errorf("refresh negative-stock flag: %w", err)
		}
		snap.AllowNegativeStock = allowNegative
	}

	return &snap, nil
}

// UpdateSnapshot persists counter changes on a locked snapshot.
func (r *StockRepo) UpdateSnapshot(ctx context.Context, snap *ledger.Snapshot) error {
	sql, args, err := r.builder.
		Update(snapshotsTable).
		Set("on_hand", snap.OnHand).
		Set("on_order", snap.OnOrder).
		Set("allow_negative_stock", snap.AllowNegativeStock).
		Set("updated_at", snap.UpdatedAt).
		Where(squirrel.Eq{"id": snap.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	return nil
}

// GetSnapshot reads one snapshot without locking. Returns (nil, nil)
// when the row does not exist yet.
func (r *StockRepo) GetSnapshot(ctx context.Context, key ledger.SnapshotKey) (*ledger.Snapshot, error) {
	sql, args, err := r.builder.
		Select(snapshotColumns...).
		From(snapshotsTable).
		Where(squirrel.Eq{
			"organization_id": key.OrganizationID,
			"store_id":        key.StoreID,
			"product_id":      key.ProductID,
			"variant_key":     key.VariantKey,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var snap ledger.Snapshot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &snap, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	return &snap, nil
}

// ListSnapshots returns every snapshot of one store.
func (r *StockRepo) ListSnapshots(ctx context.Context, orgID, storeID id.ID) ([]ledger.Snapshot, error) {
	sql, args, err := r.builder.
		Select(snapshotColumns...).
		From(snapshotsTable).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"store_id":        storeID,
		}).
		OrderBy("product_id", "variant_key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var snaps []ledger.Snapshot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &snaps, sql, args...); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	return snaps, nil
}

// InsertMovement appends one ledger entry.
func (r *StockRepo) InsertMovement(ctx context.Context, m *ledger.Movement) error {
	sql, args, err := r.builder.
		Insert(movementsTable).
		Columns(
			"id", "organization_id", "store_id", "product_id", "variant_key",
			"movement_type", "qty_delta", "ref_type", "ref_id", "lot_id",
			"actor_id", "note", "created_at",
		).
		Values(
			m.ID, m.OrganizationID, m.StoreID, m.ProductID, m.VariantKey,
			m.Type, m.QtyDelta, m.RefType, m.RefID, m.LotID,
			m.ActorID, m.Note, m.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}

	return nil
}

// SetMovementLot backfills the lot reference right after insert. The
// movement row is otherwise immutable, so the update guards on lot_id
// still being unset.
func (r *StockRepo) SetMovementLot(ctx context.Context, movementID, lotID id.ID) error {
	sql, args, err := r.builder.
		Update(movementsTable).
		Set("lot_id", lotID).
		Where(squirrel.Eq{"id": movementID}).
		Where(squirrel.Eq{"lot_id": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set movement lot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("movement %s not found or lot already set", movementID)
	}

	return nil
}

var movementColumns = postgres.ExtractDBColumns[ledger.Movement]()

// ListMovements returns movement history, newest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter ledger.MovementFilter) ([]ledger.Movement, error) {
	q := r.builder.
		Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{
			"organization_id": filter.OrganizationID,
			"store_id":        filter.StoreID,
		})

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.VariantKey != nil {
		q = q.Where(squirrel.Eq{"variant_key": *filter.VariantKey})
	}
	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"movement_type": filter.Types})
	}

	q = q.OrderBy("created_at DESC", "id DESC")

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

	var movements []ledger.Movement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	return movements, nil
}

// SumMovements nets all deltas per (product, variant) for one store.
// The movement log is the source of truth; recompute rebuilds the
// snapshots from this sum.
func (r *StockRepo) SumMovements(ctx context.Context, orgID, storeID id.ID) ([]ledger.MovementSum, error) {
	sql, args, err := r.builder.
		Select("product_id", "variant_key", "COALESCE(SUM(qty_delta), 0) AS total").
		From(movementsTable).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"store_id":        storeID,
		}).
		GroupBy("product_id", "variant_key").
		OrderBy("product_id", "variant_key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sums []ledger.MovementSum
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &sums, sql, args...); err != nil {
		return nil, fmt.Errorf("sum movements: %w", err)
	}

	return sums, nil
}
