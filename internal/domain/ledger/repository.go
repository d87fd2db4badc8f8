package ledger

import (
	"context"

	"restock/internal/core/id"
)

// MovementFilter narrows movement history queries.
type MovementFilter struct {
	OrganizationID id.ID
	StoreID        id.ID
	ProductID      *id.ID
	VariantKey     *string
	Types          []MovementType
	Limit          int
	Offset         int
}

// MovementSum is the net delta per (product, variant) within one store.
type MovementSum struct {
	ProductID  id.ID  `db:"product_id"`
	VariantKey string `db:"variant_key"`
	Total      int64  `db:"total"`
}

// Repository persists snapshots and movements. All mutating methods must
// be called inside a transaction.
type Repository interface {
	// LockSnapshot upserts the row for key if absent (insert-on-conflict-
	// do-nothing; a unique-constraint race means someone else created it
	// first and is benign), then acquires an exclusive row lock and
	// refreshes the denormalized allowNegative copy.
	LockSnapshot(ctx context.Context, key SnapshotKey, allowNegative bool) (*Snapshot, error)

	// UpdateSnapshot persists counter changes on a locked snapshot.
	UpdateSnapshot(ctx context.Context, snap *Snapshot) error

	// GetSnapshot reads without locking. Returns (nil, nil) when absent.
	GetSnapshot(ctx context.Context, key SnapshotKey) (*Snapshot, error)

	ListSnapshots(ctx context.Context, orgID, storeID id.ID) ([]Snapshot, error)

	InsertMovement(ctx context.Context, m *Movement) error

	// SetMovementLot backfills the lot reference immediately after the
	// movement insert. The only permitted movement update.
	SetMovementLot(ctx context.Context, movementID, lotID id.ID) error

	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)

	// SumMovements nets all movement deltas per (product, variant) for one
	// store. Source of truth for recompute.
	SumMovements(ctx context.Context, orgID, storeID id.ID) ([]MovementSum, error)
}

// CostRepository persists the weighted-average cost basis.
// Get returns (nil, nil) when no basis exists yet.
type CostRepository interface {
	Get(ctx context.Context, orgID, productID id.ID, variantKey string) (*ProductCost, error)
	Upsert(ctx context.Context, cost *ProductCost) error
}

// OnOrderSource reports open purchase-order remainders per
// (product, variant) for recompute. Implemented by the purchase
// repository; declared here to keep the dependency pointing inward.
type OnOrderSource interface {
	OpenRemainders(ctx context.Context, orgID, storeID id.ID) ([]MovementSum, error)
}
