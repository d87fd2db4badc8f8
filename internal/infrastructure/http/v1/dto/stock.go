package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"restock/internal/core/id"
	"restock/internal/domain/ledger"
)

// AdjustStockRequest for POST /stock/adjust. Quantity is signed and may
// be fractional when a unit or pack resolves it to whole base units.
type AdjustStockRequest struct {
	IdempotencyKey string          `json:"idempotencyKey" binding:"required"`
	StoreID        id.ID           `json:"storeId" binding:"required"`
	ProductID      id.ID           `json:"productId" binding:"required"`
	VariantID      *id.ID          `json:"variantId"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitID         *id.ID          `json:"unitId"`
	PackID         *id.ID          `json:"packId"`
	ExpiryDate     *time.Time      `json:"expiryDate"`
	Note           string          `json:"note"`
}

// ToInput maps the request to the ledger operation input.
func (r AdjustStockRequest) ToInput() ledger.AdjustInput {
	return ledger.AdjustInput{
		IdempotencyKey: r.IdempotencyKey,
		StoreID:        r.StoreID,
		ProductID:      r.ProductID,
		VariantID:      r.VariantID,
		Quantity:       r.Quantity,
		UnitID:         r.UnitID,
		PackID:         r.PackID,
		ExpiryDate:     r.ExpiryDate,
		Note:           r.Note,
	}
}

// ReceiveStockRequest for POST /stock/receive.
type ReceiveStockRequest struct {
	IdempotencyKey string           `json:"idempotencyKey" binding:"required"`
	StoreID        id.ID            `json:"storeId" binding:"required"`
	ProductID      id.ID            `json:"productId" binding:"required"`
	VariantID      *id.ID           `json:"variantId"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitID         *id.ID           `json:"unitId"`
	PackID         *id.ID           `json:"packId"`
	UnitCost       *decimal.Decimal `json:"unitCost"`
	ExpiryDate     *time.Time       `json:"expiryDate"`
	Note           string           `json:"note"`
}

// ToInput maps the request to the ledger operation input.
func (r ReceiveStockRequest) ToInput() ledger.ReceiveInput {
	return ledger.ReceiveInput{
		IdempotencyKey: r.IdempotencyKey,
		StoreID:        r.StoreID,
		ProductID:      r.ProductID,
		VariantID:      r.VariantID,
		Quantity:       r.Quantity,
		UnitID:         r.UnitID,
		PackID:         r.PackID,
		UnitCost:       r.UnitCost,
		ExpiryDate:     r.ExpiryDate,
		Note:           r.Note,
	}
}

// TransferStockRequest for POST /stock/transfer.
type TransferStockRequest struct {
	FromStoreID id.ID           `json:"fromStoreId" binding:"required"`
	ToStoreID   id.ID           `json:"toStoreId" binding:"required"`
	ProductID   id.ID           `json:"productId" binding:"required"`
	VariantID   *id.ID          `json:"variantId"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitID      *id.ID          `json:"unitId"`
	ExpiryDate  *time.Time      `json:"expiryDate"`
	Note        string          `json:"note"`
}

// ToInput maps the request to the ledger operation input.
func (r TransferStockRequest) ToInput() ledger.TransferInput {
	return ledger.TransferInput{
		FromStoreID: r.FromStoreID,
		ToStoreID:   r.ToStoreID,
		ProductID:   r.ProductID,
		VariantID:   r.VariantID,
		Quantity:    r.Quantity,
		UnitID:      r.UnitID,
		ExpiryDate:  r.ExpiryDate,
		Note:        r.Note,
	}
}
