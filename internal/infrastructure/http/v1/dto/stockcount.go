package dto

import (
	"restock/internal/core/id"
	"restock/internal/domain/stockcount"
)

// CreateCountRequest for POST /stock-counts.
type CreateCountRequest struct {
	StoreID id.ID  `json:"storeId" binding:"required"`
	Comment string `json:"comment"`
}

// ToInput maps the request to the count create input.
func (r CreateCountRequest) ToInput() stockcount.CreateInput {
	return stockcount.CreateInput{
		StoreID: r.StoreID,
		Comment: r.Comment,
	}
}

// ScanRequest for POST /stock-counts/:id/scan. Delta and Set are
// mutually exclusive; both absent means "one more".
type ScanRequest struct {
	Code  string `json:"code" binding:"required"`
	Delta *int64 `json:"delta"`
	Set   *int64 `json:"set"`
}

// ToInput maps the request to the count scan input.
func (r ScanRequest) ToInput(countID id.ID) stockcount.ScanInput {
	return stockcount.ScanInput{
		CountID: countID,
		Code:    r.Code,
		Delta:   r.Delta,
		Set:     r.Set,
	}
}

// SetCountLineRequest for PUT /stock-counts/:id/lines/:lineId.
type SetCountLineRequest struct {
	CountedQty int64 `json:"countedQty"`
}

// ApplyCountRequest for POST /stock-counts/:id/apply.
type ApplyCountRequest struct {
	IdempotencyKey string `json:"idempotencyKey" binding:"required"`
}
