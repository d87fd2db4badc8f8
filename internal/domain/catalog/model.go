// Package catalog holds the read models the stock workflows depend on:
// stores with their stock policies, products with variants and packs,
// and suppliers. Catalog maintenance (CRUD, import) lives outside this
// service; here the rows are resolved, validated and consulted only.
package catalog

import (
	"restock/internal/core/entity"
	"restock/internal/core/id"
)

// Store is a physical or virtual location holding stock.
type Store struct {
	entity.BaseEntity
	OrganizationID id.ID  `db:"organization_id" json:"organizationId"`
	Name           string `db:"name" json:"name"`
	Code           string `db:"code" json:"code"`

	// AllowNegativeStock permits on-hand below zero for this store.
	// The ledger denormalizes a copy of this flag onto every snapshot it touches.
	AllowNegativeStock bool `db:"allow_negative_stock" json:"allowNegativeStock"`

	// TrackExpiryLots enables the lot sub-ledger for this store.
	TrackExpiryLots bool `db:"track_expiry_lots" json:"trackExpiryLots"`
}

// Product is a sellable item. All ledger quantities for a product are
// kept in its base unit; packs provide integer multiples of it.
type Product struct {
	entity.BaseEntity
	OrganizationID id.ID   `db:"organization_id" json:"organizationId"`
	Name           string  `db:"name" json:"name"`
	SKU            string  `db:"sku" json:"sku"`
	Barcode        *string `db:"barcode" json:"barcode,omitempty"`
	BaseUnitID     id.ID   `db:"base_unit_id" json:"baseUnitId"`

	// MinStock is the low-stock threshold in base units (0 disables alerting).
	MinStock int64 `db:"min_stock" json:"minStock"`

	Active bool `db:"active" json:"active"`
}

// Variant is an optional sub-item of a product (size, color).
// Snapshots, lots and costs are keyed by product + variant.
type Variant struct {
	entity.BaseEntity
	OrganizationID id.ID   `db:"organization_id" json:"organizationId"`
	ProductID      id.ID   `db:"product_id" json:"productId"`
	Name           string  `db:"name" json:"name"`
	SKU            string  `db:"sku" json:"sku"`
	Barcode        *string `db:"barcode" json:"barcode,omitempty"`
	Active         bool    `db:"active" json:"active"`
}

// Pack is a purchasing/receiving unit holding an integer multiple of the
// product's base unit (e.g. a case of 24).
type Pack struct {
	entity.BaseEntity
	OrganizationID    id.ID  `db:"organization_id" json:"organizationId"`
	ProductID         id.ID  `db:"product_id" json:"productId"`
	Name              string `db:"name" json:"name"`
	Multiplier        int64  `db:"multiplier" json:"multiplier"`
	AllowInPurchasing bool   `db:"allow_in_purchasing" json:"allowInPurchasing"`
	AllowInReceiving  bool   `db:"allow_in_receiving" json:"allowInReceiving"`
}

// Supplier is a purchase-order counterparty.
type Supplier struct {
	entity.BaseEntity
	OrganizationID id.ID  `db:"organization_id" json:"organizationId"`
	Name           string `db:"name" json:"name"`
	Code           string `db:"code" json:"code"`
	Active         bool   `db:"active" json:"active"`
}

// ScanMatch is one resolution of a scanned code to a product (and
// optionally one of its variants).
type ScanMatch struct {
	ProductID id.ID  `db:"product_id" json:"productId"`
	VariantID *id.ID `db:"variant_id" json:"variantId,omitempty"`
}
