// Package purchase implements the purchase order lifecycle: a forward-
// only status machine whose transitions drive on-order and on-hand
// effects through the stock ledger.
package purchase

import (
	"time"

	"restock/internal/core/entity"
	"restock/internal/core/id"
	"restock/internal/core/types"
)

// Status of a purchase order. Transitions are monotonic; see Allowed.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusSubmitted         Status = "SUBMITTED"
	StatusApproved          Status = "APPROVED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusReceived          Status = "RECEIVED"
	StatusCancelled         Status = "CANCELLED"
)

var allowedTransitions = map[Status][]Status{
	StatusDraft:             {StatusSubmitted, StatusCancelled},
	StatusSubmitted:         {StatusApproved, StatusCancelled},
	StatusApproved:          {StatusPartiallyReceived, StatusReceived},
	StatusPartiallyReceived: {StatusReceived},
	StatusReceived:          {},
	StatusCancelled:         {},
}

// CanTransitionTo reports whether s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal reports whether no further transition exists.
func (s Status) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Order is a purchase order header. Lines are loaded alongside.
type Order struct {
	entity.Document

	StoreID    id.ID  `db:"store_id" json:"storeId"`
	SupplierID id.ID  `db:"supplier_id" json:"supplierId"`
	Status     Status `db:"status" json:"status"`

	SubmittedAt *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	ReceivedAt  *time.Time `db:"received_at" json:"receivedAt,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one ordered position. Quantities are base units.
// Lines are mutable only while the order is DRAFT.
type Line struct {
	ID          id.ID        `db:"id" json:"id"`
	OrderID     id.ID        `db:"order_id" json:"orderId"`
	ProductID   id.ID        `db:"product_id" json:"productId"`
	VariantID   *id.ID       `db:"variant_id" json:"variantId,omitempty"`
	QtyOrdered  int64        `db:"qty_ordered" json:"qtyOrdered"`
	QtyReceived int64        `db:"qty_received" json:"qtyReceived"`
	UnitCost    *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
}

// Remaining returns the not-yet-received quantity, never negative.
func (l *Line) Remaining() int64 {
	rem := l.QtyOrdered - l.QtyReceived
	if rem < 0 {
		return 0
	}
	return rem
}

// FullyReceived reports whether the line needs no further receipt.
func (l *Line) FullyReceived() bool {
	return l.QtyReceived >= l.QtyOrdered
}

// FindLine returns the line with the given id, or nil.
func (o *Order) FindLine(lineID id.ID) *Line {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i]
		}
	}
	return nil
}

// AllReceived reports whether every line is fully received.
func (o *Order) AllReceived() bool {
	for i := range o.Lines {
		if !o.Lines[i].FullyReceived() {
			return false
		}
	}
	return len(o.Lines) > 0
}
