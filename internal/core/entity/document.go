package entity

import (
	"context"
	"time"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
)

// Document is the base type for business documents with a lifecycle.
// Examples: PurchaseOrder, StockCount.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique per type)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// OrganizationID is the owning organization; every query filters by it
	OrganizationID id.ID `db:"organization_id" json:"organizationId"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document owned by the given organization.
func NewDocument(organizationID id.ID) Document {
	return Document{
		BaseDocument:   NewBaseDocument(),
		Date:           time.Now().UTC(),
		OrganizationID: organizationID,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.OrganizationID) {
		return apperror.NewValidation("organization is required").
			WithDetail("field", "organizationId")
	}

	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}
