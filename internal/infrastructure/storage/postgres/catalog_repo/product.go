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

// ProductRepo implements catalog.ProductRepository.
type ProductRepo struct {
	base
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{base: newBase(txm)}
}

var _ catalog.ProductRepository = (*ProductRepo)(nil)

var (
	productColumns = postgres.ExtractDBColumns[catalog.Product]()
	variantColumns = postgres.ExtractDBColumns[catalog.Variant]()
)

// GetByID resolves a product within the caller's organization.
func (r *ProductRepo) GetByID(ctx context.Context, orgID, productID id.ID) (*catalog.Product, error) {
	sql, args, err := r.builder.
		Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{
			"id":              productID,
			"organization_id": orgID,
			"deletion_mark":   false,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var product catalog.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &product, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &product, nil
}

// GetVariant resolves a variant within the caller's organization.
func (r *ProductRepo) GetVariant(ctx context.Context, orgID, variantID id.ID) (*catalog.Variant, error) {
	sql, args, err := r.builder.
		Select(variantColumns...).
		From(variantsTable).
		Where(squirrel.Eq{
			"id":              variantID,
			"organization_id": orgID,
			"deletion_mark":   false,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var variant catalog.Variant
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &variant, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product variant", variantID.String())
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	return &variant, nil
}

// FindByBarcode returns every active product or variant carrying the
// barcode. Product and variant barcodes share one namespace within this
// tier; more than one row back means the scan is ambiguous, which the
// caller decides.
func (r *ProductRepo) FindByBarcode(ctx context.Context, orgID id.ID, code string) ([]catalog.ScanMatch, error) {
	sql := `
		SELECT p.id AS product_id, NULL::uuid AS variant_id
		FROM ` + productsTable + ` p
		WHERE p.organization_id = $1 AND p.barcode = $2
		  AND p.active AND NOT p.deletion_mark
		UNION ALL
		SELECT v.product_id, v.id
		FROM ` + variantsTable + ` v
		WHERE v.organization_id = $1 AND v.barcode = $2
		  AND v.active AND NOT v.deletion_mark
	`

	var matches []catalog.ScanMatch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &matches, sql, orgID, code); err != nil {
		return nil, fmt.Errorf("find by barcode: %w", err)
	}

	return matches, nil
}

// FindBySKU returns active products whose SKU equals code.
func (r *ProductRepo) FindBySKU(ctx context.Context, orgID id.ID, code string) ([]catalog.ScanMatch, error) {
	sql, args, err := r.builder.
		Select("id AS product_id", "NULL::uuid AS variant_id").
		From(productsTable).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"sku":             code,
			"active":          true,
			"deletion_mark":   false,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var matches []catalog.ScanMatch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &matches, sql, args...); err != nil {
		return nil, fmt.Errorf("find by sku: %w", err)
	}

	return matches, nil
}

// FindByVariantSKU returns active variants whose SKU equals code.
func (r *ProductRepo) FindByVariantSKU(ctx context.Context, orgID id.ID, code string) ([]catalog.ScanMatch, error) {
	sql, args, err := r.builder.
		Select("product_id", "id AS variant_id").
		From(variantsTable).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"sku":             code,
			"active":          true,
			"deletion_mark":   false,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var matches []catalog.ScanMatch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &matches, sql, args...); err != nil {
		return nil, fmt.Errorf("find by variant sku: %w", err)
	}

	return matches, nil
}
