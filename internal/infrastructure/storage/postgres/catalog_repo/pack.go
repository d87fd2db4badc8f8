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

// PackRepo implements catalog.PackRepository.
type PackRepo struct {
	base
}

// NewPackRepo creates a new pack repository.
func NewPackRepo(txm *postgres.TxManager) *PackRepo {
	return &PackRepo{base: newBase(txm)}
}

var _ catalog.PackRepository = (*PackRepo)(nil)

var packColumns = postgres.ExtractDBColumns[catalog.Pack]()

// GetByID resolves a pack within the caller's organization.
func (r *PackRepo) GetByID(ctx context.Context, orgID, packID id.ID) (*catalog.Pack, error) {
	sql, args, err := r.builder.
		Select(packColumns...).
		From(packsTable).
		Where(squirrel.Eq{
			"id":              packID,
			"organization_id": orgID,
			"deletion_mark":   false,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var pack catalog.Pack
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &pack, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product pack", packID.String())
		}
		return nil, fmt.Errorf("get pack: %w", err)
	}

	return &pack, nil
}
