// Package uom converts caller-supplied quantities (units, packs) into the
// product's base-unit integer quantity. Leaf dependency for every mutation path.
package uom

import (
	"context"

	"github.com/shopspring/decimal"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/catalog"
)

// Mode selects which pack permission applies to the conversion.
type Mode string

const (
	ModePurchasing Mode = "purchasing"
	ModeReceiving  Mode = "receiving"
	ModeInventory  Mode = "inventory"
)

// ResolveInput describes one quantity to convert.
type ResolveInput struct {
	Product  *catalog.Product
	Quantity decimal.Decimal

	// UnitID, when set, must equal the product's base unit. Multi-unit
	// conversion other than packs is unsupported.
	UnitID *id.ID

	// PackID, when set, multiplies the quantity by the pack's multiplier.
	PackID *id.ID

	Mode Mode
}

// Resolver converts quantities to base units. Read-only relative to the
// surrounding transaction, safe to call repeatedly.
type Resolver struct {
	packs catalog.PackRepository
}

func NewResolver(packs catalog.PackRepository) *Resolver {
	return &Resolver{packs: packs}
}

// Resolve returns the base-unit integer quantity equivalent to in.Quantity.
func (r *Resolver) Resolve(ctx context.Context, orgID id.ID, in ResolveInput) (int64, error) {
	if in.Product == nil {
		return 0, apperror.NewValidation("product is required")
	}
	if in.UnitID != nil && in.PackID != nil {
		return 0, apperror.NewValidation("specify either a unit or a pack, not both")
	}

	qty := in.Quantity

	if in.PackID != nil {
		pack, err := r.packs.GetByID(ctx, orgID, *in.PackID)
		if err != nil {
			return 0, err
		}
		if pack.ProductID != in.Product.ID {
			return 0, apperror.NewValidation("pack belongs to a different product").
				WithDetail("pack_id", pack.ID.String()).
				WithDetail("product_id", in.Product.ID.String())
		}
		if err := checkPackMode(pack, in.Mode); err != nil {
			return 0, err
		}
		qty = qty.Mul(decimal.NewFromInt(pack.Multiplier))
	}

	if in.UnitID != nil && *in.UnitID != in.Product.BaseUnitID {
		return 0, apperror.NewUnitMismatch(in.Product.ID.String(), in.UnitID.String())
	}

	return toBaseUnits(qty)
}

func checkPackMode(pack *catalog.Pack, mode Mode) error {
	allowed := false
	switch mode {
	case ModePurchasing:
		allowed = pack.AllowInPurchasing
	case ModeReceiving:
		allowed = pack.AllowInReceiving
	case ModeInventory:
		// Packs are a purchasing/receiving concept; inventory flows
		// always operate in base units.
		allowed = false
	default:
		return apperror.NewValidation("unknown resolution mode").
			WithDetail("mode", string(mode))
	}
	if !allowed {
		return apperror.NewPackNotAllowed(pack.ID.String()).
			WithDetail("mode", string(mode))
	}
	return nil
}

// toBaseUnits rejects any quantity that does not land on a whole base unit.
func toBaseUnits(qty decimal.Decimal) (int64, error) {
	if !qty.IsInteger() {
		return 0, apperror.NewValidation("quantity does not resolve to a whole number of base units").
			WithDetail("quantity", qty.String())
	}
	bi := qty.BigInt()
	if !bi.IsInt64() {
		return 0, apperror.NewValidation("quantity out of range").
			WithDetail("quantity", qty.String())
	}
	return bi.Int64(), nil
}
