// Package ledger owns the inventory snapshots and the append-only
// movement log. Snapshot mutation happens only here: the purchase and
// stock-count workflows call through the ledger's primitives, keeping a
// single choke point for locking and invariant checks.
package ledger

import (
	"time"

	"restock/internal/core/id"
	"restock/internal/core/types"
)

// BaseVariantKey addresses the variant-less row of a product's
// snapshot/lot/cost tables.
const BaseVariantKey = "BASE"

// VariantKeyOf returns the discriminator for an optional variant.
func VariantKeyOf(variantID *id.ID) string {
	if variantID == nil {
		return BaseVariantKey
	}
	return variantID.String()
}

// MovementType classifies one ledger entry.
type MovementType string

const (
	MovementReceive     MovementType = "RECEIVE"
	MovementAdjustment  MovementType = "ADJUSTMENT"
	MovementTransferIn  MovementType = "TRANSFER_IN"
	MovementTransferOut MovementType = "TRANSFER_OUT"
)

// ReferenceType names the document a movement points back at.
type ReferenceType string

const (
	RefPurchaseOrder ReferenceType = "PURCHASE_ORDER"
	RefStockCount    ReferenceType = "STOCK_COUNT"
	RefTransfer      ReferenceType = "TRANSFER"
)

// Reference ties a movement to its originating document.
type Reference struct {
	Type ReferenceType `json:"type"`
	ID   id.ID         `json:"id"`
}

// SnapshotKey identifies one snapshot row.
type SnapshotKey struct {
	OrganizationID id.ID
	StoreID        id.ID
	ProductID      id.ID
	VariantKey     string
}

// Snapshot is the current-state counter pair for one
// (store, product, variant) triple. Created lazily on first touch, then
// exclusively locked for the duration of any mutating transaction.
type Snapshot struct {
	ID             id.ID  `db:"id" json:"id"`
	OrganizationID id.ID  `db:"organization_id" json:"organizationId"`
	StoreID        id.ID  `db:"store_id" json:"storeId"`
	ProductID      id.ID  `db:"product_id" json:"productId"`
	VariantKey     string `db:"variant_key" json:"variantKey"`

	// OnHand may go negative only when the store policy allows it.
	OnHand int64 `db:"on_hand" json:"onHand"`

	// OnOrder is never negative.
	OnOrder int64 `db:"on_order" json:"onOrder"`

	// AllowNegativeStock is a denormalized copy of the store policy,
	// refreshed on every touch.
	AllowNegativeStock bool `db:"allow_negative_stock" json:"allowNegativeStock"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Key returns the snapshot's composite key.
func (s *Snapshot) Key() SnapshotKey {
	return SnapshotKey{
		OrganizationID: s.OrganizationID,
		StoreID:        s.StoreID,
		ProductID:      s.ProductID,
		VariantKey:     s.VariantKey,
	}
}

// Movement is one immutable ledger entry. Never updated after insert
// except to backfill LotID immediately after creation.
type Movement struct {
	ID             id.ID          `db:"id" json:"id"`
	OrganizationID id.ID          `db:"organization_id" json:"organizationId"`
	StoreID        id.ID          `db:"store_id" json:"storeId"`
	ProductID      id.ID          `db:"product_id" json:"productId"`
	VariantKey     string         `db:"variant_key" json:"variantKey"`
	Type           MovementType   `db:"movement_type" json:"type"`
	QtyDelta       int64          `db:"qty_delta" json:"qtyDelta"`
	RefType        *ReferenceType `db:"ref_type" json:"refType,omitempty"`
	RefID          *id.ID         `db:"ref_id" json:"refId,omitempty"`
	LotID          *id.ID         `db:"lot_id" json:"lotId,omitempty"`
	ActorID        id.ID          `db:"actor_id" json:"actorId"`
	Note           string         `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// ProductCost is the weighted-average cost basis per (product, variant).
// Updated only by receipts carrying a unit cost.
type ProductCost struct {
	OrganizationID id.ID       `db:"organization_id" json:"organizationId"`
	ProductID      id.ID       `db:"product_id" json:"productId"`
	VariantKey     string      `db:"variant_key" json:"variantKey"`
	AvgCost        types.Money `db:"avg_cost" json:"avgCost"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}
