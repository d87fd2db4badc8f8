// Package catalog_repo provides PostgreSQL implementations of the
// catalog read models: stores, products with variants and packs, and
// suppliers. All lookups are organization-scoped; a row belonging to
// another organization is indistinguishable from a missing one.
package catalog_repo

import (
	"github.com/Masterminds/squirrel"

	"restock/internal/infrastructure/storage/postgres"
)

const (
	storesTable    = "cat_stores"
	productsTable  = "cat_products"
	variantsTable  = "cat_product_variants"
	packsTable     = "cat_product_packs"
	suppliersTable = "cat_suppliers"
)

type base struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func newBase(txm *postgres.TxManager) base {
	return base{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}
