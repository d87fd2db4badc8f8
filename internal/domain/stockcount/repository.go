package stockcount

import (
	"context"

	"restock/internal/core/id"
)

// ListFilter narrows count list queries.
type ListFilter struct {
	OrganizationID id.ID
	StoreID        *id.ID
	Status         *Status
	Limit          int
	Offset         int
}

// Repository persists stock counts with their lines. Insert must fail
// with a Duplicate error on a code collision so the service can retry
// with a fresh code.
type Repository interface {
	Insert(ctx context.Context, count *Count) error

	GetByID(ctx context.Context, orgID, countID id.ID) (*Count, error)

	// GetForUpdate locks the count header for the transaction.
	GetForUpdate(ctx context.Context, orgID, countID id.ID) (*Count, error)

	UpdateHeader(ctx context.Context, count *Count) error

	InsertLine(ctx context.Context, line *Line) error
	UpdateLine(ctx context.Context, line *Line) error
	DeleteLine(ctx context.Context, countID, lineID id.ID) error

	List(ctx context.Context, filter ListFilter) ([]Count, error)
}
