// Package stockcount implements the physical inventory count workflow:
// scan items into a count sheet, compare against the ledger's expected
// on-hand, and apply the variance as stock adjustments.
package stockcount

import (
	"restock/internal/core/entity"
	"restock/internal/core/id"
)

// Status of a stock count. APPLIED and CANCELLED are terminal and lock
// all lines.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusApplied    Status = "APPLIED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether the count accepts no further changes.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusCancelled
}

// Count is one counting session for a store. Number carries the
// human-readable code (SC-YYYYMMDD-XXXX).
type Count struct {
	entity.Document

	StoreID id.ID  `db:"store_id" json:"storeId"`
	Status  Status `db:"status" json:"status"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one counted (product, variant) pair. ExpectedOnHand snapshots
// the ledger's on-hand at first scan; Apply re-reads it before adjusting
// so drift between scan and apply never produces a wrong delta.
type Line struct {
	ID             id.ID  `db:"id" json:"id"`
	CountID        id.ID  `db:"count_id" json:"countId"`
	ProductID      id.ID  `db:"product_id" json:"productId"`
	VariantID      *id.ID `db:"variant_id" json:"variantId,omitempty"`
	ExpectedOnHand int64  `db:"expected_on_hand" json:"expectedOnHand"`
	CountedQty     int64  `db:"counted_qty" json:"countedQty"`
	DeltaQty       int64  `db:"delta_qty" json:"deltaQty"`
}

// FindLine returns the line with the given id, or nil.
func (c *Count) FindLine(lineID id.ID) *Line {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i]
		}
	}
	return nil
}

// LineFor returns the line for a (product, variant) pair, or nil.
func (c *Count) LineFor(productID id.ID, variantID *id.ID) *Line {
	for i := range c.Lines {
		l := &c.Lines[i]
		if l.ProductID != productID {
			continue
		}
		if (l.VariantID == nil) != (variantID == nil) {
			continue
		}
		if l.VariantID == nil || *l.VariantID == *variantID {
			return l
		}
	}
	return nil
}
