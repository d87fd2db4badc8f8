package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"restock/internal/core/id"
	"restock/internal/domain/purchase"
)

// OrderLineRequest is one line of a create/add-line request.
type OrderLineRequest struct {
	ProductID id.ID            `json:"productId" binding:"required"`
	VariantID *id.ID           `json:"variantId"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitID    *id.ID           `json:"unitId"`
	PackID    *id.ID           `json:"packId"`
	UnitCost  *decimal.Decimal `json:"unitCost"`
}

// ToInput maps the line request to the purchase line input.
func (r OrderLineRequest) ToInput() purchase.LineInput {
	return purchase.LineInput{
		ProductID: r.ProductID,
		VariantID: r.VariantID,
		Quantity:  r.Quantity,
		UnitID:    r.UnitID,
		PackID:    r.PackID,
		UnitCost:  r.UnitCost,
	}
}

// CreateOrderRequest for POST /purchase-orders.
type CreateOrderRequest struct {
	StoreID    id.ID              `json:"storeId" binding:"required"`
	SupplierID id.ID              `json:"supplierId" binding:"required"`
	Comment    string             `json:"comment"`
	Lines      []OrderLineRequest `json:"lines"`
	SubmitNow  bool               `json:"submitNow"`
}

// ToInput maps the request to the purchase create input.
func (r CreateOrderRequest) ToInput() purchase.CreateInput {
	in := purchase.CreateInput{
		StoreID:    r.StoreID,
		SupplierID: r.SupplierID,
		Comment:    r.Comment,
		SubmitNow:  r.SubmitNow,
	}
	for _, line := range r.Lines {
		in.Lines = append(in.Lines, line.ToInput())
	}
	return in
}

// UpdateOrderLineRequest for PUT /purchase-orders/:id/lines/:lineId.
type UpdateOrderLineRequest struct {
	Quantity decimal.Decimal  `json:"quantity"`
	UnitID   *id.ID           `json:"unitId"`
	PackID   *id.ID           `json:"packId"`
	UnitCost *decimal.Decimal `json:"unitCost"`
}

// ToInput maps the request to the purchase line update input.
func (r UpdateOrderLineRequest) ToInput() purchase.UpdateLineInput {
	return purchase.UpdateLineInput{
		Quantity: r.Quantity,
		UnitID:   r.UnitID,
		PackID:   r.PackID,
		UnitCost: r.UnitCost,
	}
}

// ReceiveOrderLineRequest limits a receipt to one line, optionally
// overriding the received quantity.
type ReceiveOrderLineRequest struct {
	LineID     id.ID            `json:"lineId" binding:"required"`
	Quantity   *decimal.Decimal `json:"quantity"`
	UnitID     *id.ID           `json:"unitId"`
	PackID     *id.ID           `json:"packId"`
	ExpiryDate *time.Time       `json:"expiryDate"`
}

// ReceiveOrderRequest for POST /purchase-orders/:id/receive. Empty
// Lines receives every remaining quantity.
type ReceiveOrderRequest struct {
	IdempotencyKey   string                    `json:"idempotencyKey" binding:"required"`
	Lines            []ReceiveOrderLineRequest `json:"lines"`
	AllowOverReceive bool                      `json:"allowOverReceive"`
}

// ToInput maps the request to the purchase receive input.
func (r ReceiveOrderRequest) ToInput(orderID id.ID) purchase.ReceiveInput {
	in := purchase.ReceiveInput{
		IdempotencyKey:   r.IdempotencyKey,
		OrderID:          orderID,
		AllowOverReceive: r.AllowOverReceive,
	}
	for _, line := range r.Lines {
		in.Lines = append(in.Lines, purchase.ReceiveLine{
			LineID:     line.LineID,
			Quantity:   line.Quantity,
			UnitID:     line.UnitID,
			PackID:     line.PackID,
			ExpiryDate: line.ExpiryDate,
		})
	}
	return in
}
