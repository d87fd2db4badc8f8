package purchase

import (
	"context"

	"restock/internal/core/id"
	"restock/internal/domain/ledger"
)

// ListFilter narrows order list queries.
type ListFilter struct {
	OrganizationID id.ID
	StoreID        *id.ID
	SupplierID     *id.ID
	Status         *Status
	Limit          int
	Offset         int
}

// Repository persists purchase orders. GetByID and GetForUpdate load the
// header together with its lines and return NotFound for rows outside the
// caller's organization.
type Repository interface {
	Insert(ctx context.Context, order *Order) error

	GetByID(ctx context.Context, orgID, orderID id.ID) (*Order, error)

	// GetForUpdate locks the order header for the duration of the
	// transaction. Receiving serializes per order through this lock.
	GetForUpdate(ctx context.Context, orgID, orderID id.ID) (*Order, error)

	UpdateHeader(ctx context.Context, order *Order) error

	InsertLine(ctx context.Context, line *Line) error
	UpdateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, orderID, lineID id.ID) error

	List(ctx context.Context, filter ListFilter) ([]Order, error)

	// OpenRemainders sums qty_ordered - qty_received per (product, variant)
	// over SUBMITTED/APPROVED/PARTIALLY_RECEIVED orders of one store.
	// Satisfies the ledger's on-order source for recompute.
	OpenRemainders(ctx context.Context, orgID, storeID id.ID) ([]ledger.MovementSum, error)
}

var _ ledger.OnOrderSource = (Repository)(nil)

// NumberSource allocates sequential order numbers per organization.
type NumberSource interface {
	NextNumber(ctx context.Context, orgID id.ID) (string, error)
}
