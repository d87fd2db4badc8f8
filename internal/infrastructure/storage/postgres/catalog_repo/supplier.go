package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/catalog"
	"restock/internal/infrastructure/storage/postgres"
)

// SupplierRepo implements catalog.SupplierRepository.
type SupplierRepo struct {
	base
}

// NewSupplierRepo creates a new supplier repository.
func NewSupplierRepo(txm *postgres.TxManager) *SupplierRepo {
	return &SupplierRepo{base: newBase(txm)}
}

var _ catalog.SupplierRepository = (*SupplierRepo)(nil)

var supplierColumns = postgres.ExtractDBColumns[catalog.Supplier]()

// GetByID resolves a supplier within the caller's organization.
func (r *SupplierRepo) GetByID(ctx context.Context, orgID, supplierID id.ID) (*catalog.Supplier, error) {
	sql, args, err := r.builder.
		Select(supplierColumns...).
		From(suppliersTable).
		Where(squirrel.Eq{
			"id":              supplierID,
			"organization_id": orgID,
			"deletion_mark":   false,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var supplier catalog.Supplier
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &supplier, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("supplier", supplierID.String())
		}
		return nil, fmt.Errorf("get supplier: %w", err)
	}

	return &supplier, nil
}
