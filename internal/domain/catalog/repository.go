package catalog

import (
	"context"

	"restock/internal/core/id"
)

// StoreRepository resolves stores within one organization.
// Lookups outside the caller's organization return NotFound, never
// another tenant's row.
type StoreRepository interface {
	GetByID(ctx context.Context, orgID, storeID id.ID) (*Store, error)
}

// ProductRepository resolves products, variants and scan codes.
type ProductRepository interface {
	GetByID(ctx context.Context, orgID, productID id.ID) (*Product, error)
	GetVariant(ctx context.Context, orgID, variantID id.ID) (*Variant, error)

	// Scan resolution, one tier per method. Each returns every active match;
	// the caller applies precedence and ambiguity rules.
	FindByBarcode(ctx context.Context, orgID id.ID, code string) ([]ScanMatch, error)
	FindBySKU(ctx context.Context, orgID id.ID, code string) ([]ScanMatch, error)
	FindByVariantSKU(ctx context.Context, orgID id.ID, code string) ([]ScanMatch, error)
}

// PackRepository resolves product packs.
type PackRepository interface {
	GetByID(ctx context.Context, orgID, packID id.ID) (*Pack, error)
}

// SupplierRepository resolves suppliers.
type SupplierRepository interface {
	GetByID(ctx context.Context, orgID, supplierID id.ID) (*Supplier, error)
}
