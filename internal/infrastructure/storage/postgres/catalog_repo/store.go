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

// StoreRepo implements catalog.StoreRepository.
type StoreRepo struct {
	base
}

// NewStoreRepo creates a new store repository.
func NewStoreRepo(txm *postgres.TxManager) *StoreRepo {
	return &StoreRepo{base: newBase(txm)}
}

var _ catalog.StoreRepository = (*StoreRepo)(nil)

var storeColumns = postgres.ExtractDBColumns[catalog.Store]()

// GetByID resolves a store within the caller's organization.
func (r *StoreRepo) GetByID(ctx context.Context, orgID, storeID id.ID) (*catalog.Store, error) {
	sql, args, err := r.builder.
		Select(storeColumns...).
		From(storesTable).
		Where(squirrel.Eq{
			"id":              storeID,
			"organization_id": orgID,
			"deletion_mark":   false,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var store catalog.Store
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &store, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("store", storeID.String())
		}
		return nil, fmt.Errorf("get store: %w", err)
	}

	return &store, nil
}
