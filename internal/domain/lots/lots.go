// Package lots is the expiry-lot sub-ledger. Stores that track expiry
// lots mirror every on-hand delta into a per-expiry-date lot balance.
package lots

import (
	"context"
	"time"

	"restock/internal/core/apperror"
	"restock/internal/core/entity"
	"restock/internal/core/id"
	"restock/internal/domain/catalog"
)

// StockLot is one balance per (store, product, variant, expiry date).
// A nil expiry date is itself a valid lot key ("no expiry").
type StockLot struct {
	entity.BaseEntity
	OrganizationID id.ID      `db:"organization_id" json:"organizationId"`
	StoreID        id.ID      `db:"store_id" json:"storeId"`
	ProductID      id.ID      `db:"product_id" json:"productId"`
	VariantKey     string     `db:"variant_key" json:"variantKey"`
	ExpiryDate     *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	OnHandQty      int64      `db:"on_hand_qty" json:"onHandQty"`
}

// LotKey identifies one lot.
type LotKey struct {
	OrganizationID id.ID
	StoreID        id.ID
	ProductID      id.ID
	VariantKey     string
	ExpiryDate     *time.Time
}

// Repository persists lots. Find returns (nil, nil) when no lot matches.
type Repository interface {
	Find(ctx context.Context, key LotKey) (*StockLot, error)
	Insert(ctx context.Context, lot *StockLot) error
	Update(ctx context.Context, lot *StockLot) error
	List(ctx context.Context, orgID, storeID id.ID, productID *id.ID) ([]StockLot, error)
}

// Adjustment is one lot-level delta mirroring a ledger movement.
// The caller supplies the expiry date the movement operates against;
// there is no cross-lot allocation on consumption.
type Adjustment struct {
	Store      *catalog.Store
	ProductID  id.ID
	VariantKey string
	QtyDelta   int64
	ExpiryDate *time.Time
}

// Tracker applies lot adjustments. Must run inside the transaction that
// holds the corresponding snapshot lock, so lot writes serialize with the
// ledger writes they mirror.
type Tracker struct {
	repo Repository
}

func NewTracker(repo Repository) *Tracker {
	return &Tracker{repo: repo}
}

// Apply mirrors a movement delta into the matching lot. Returns (nil, nil)
// when the store does not track expiry lots or the delta is zero.
//
// A new lot is created only by a positive delta; a decrement against a
// missing lot fails. The store's negative-stock policy applies at lot
// granularity too.
func (t *Tracker) Apply(ctx context.Context, in Adjustment) (*StockLot, error) {
	if in.Store == nil {
		return nil, apperror.NewValidation("store is required for lot adjustment")
	}
	if !in.Store.TrackExpiryLots || in.QtyDelta == 0 {
		return nil, nil
	}

	key := LotKey{
		OrganizationID: in.Store.OrganizationID,
		StoreID:        in.Store.ID,
		ProductID:      in.ProductID,
		VariantKey:     in.VariantKey,
		ExpiryDate:     in.ExpiryDate,
	}

	lot, err := t.repo.Find(ctx, key)
	if err != nil {
		return nil, err
	}

	if lot == nil {
		if in.QtyDelta < 0 {
			return nil, apperror.NewNotFound("stock lot", lotKeyString(key)).
				WithDetail("product_id", in.ProductID.String()).
				WithDetail("variant_key", in.VariantKey)
		}
		lot = &StockLot{
			BaseEntity:     entity.NewBaseEntity(),
			OrganizationID: key.OrganizationID,
			StoreID:        key.StoreID,
			ProductID:      key.ProductID,
			VariantKey:     key.VariantKey,
			ExpiryDate:     key.ExpiryDate,
			OnHandQty:      in.QtyDelta,
		}
		if err := t.repo.Insert(ctx, lot); err != nil {
			return nil, err
		}
		return lot, nil
	}

	next := lot.OnHandQty + in.QtyDelta
	if next < 0 && !in.Store.AllowNegativeStock {
		return nil, apperror.NewInsufficientStock(in.ProductID.String(), -in.QtyDelta, lot.OnHandQty).
			WithDetail("lot_id", lot.ID.String())
	}

	lot.OnHandQty = next
	lot.Touch()
	if err := t.repo.Update(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func lotKeyString(key LotKey) string {
	if key.ExpiryDate == nil {
		return key.ProductID.String() + "/" + key.VariantKey + "/no-expiry"
	}
	return key.ProductID.String() + "/" + key.VariantKey + "/" + key.ExpiryDate.Format("2006-01-02")
}
