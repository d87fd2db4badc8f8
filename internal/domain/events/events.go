// Package events defines the fire-and-forget notification contract.
// Events are collected while a transaction runs and published only after
// a successful commit: best-effort, at-least-once, never part of the
// transaction itself. Subscribers treat them as a signal to re-query.
package events

import (
	"context"
	"time"

	"restock/internal/core/id"
)

// Event types published by the stock workflows.
const (
	TypeStockMovement   = "stock.movement"
	TypePOStatusChanged = "purchaseOrder.statusChanged"
	TypeCountApplied    = "stockCount.applied"
	TypeLowStock        = "lowStock.triggered"
)

// Event is one notification envelope.
type Event struct {
	Type           string    `json:"type"`
	OrganizationID id.ID     `json:"organizationId"`
	OccurredAt     time.Time `json:"occurredAt"`
	Payload        any       `json:"payload"`
}

// New builds an event stamped with the current time.
func New(eventType string, orgID id.ID, payload any) Event {
	return Event{
		Type:           eventType,
		OrganizationID: orgID,
		OccurredAt:     time.Now().UTC(),
		Payload:        payload,
	}
}

// Publisher delivers events to external subscribers. Implementations must
// never fail the caller: delivery errors are logged and dropped.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards all events. Used in tests.
type Nop struct{}

func (Nop) Publish(ctx context.Context, event Event) {}

var _ Publisher = Nop{}

// --- Payloads ---

// StockMovementPayload accompanies TypeStockMovement.
type StockMovementPayload struct {
	MovementID   id.ID  `json:"movementId"`
	StoreID      id.ID  `json:"storeId"`
	ProductID    id.ID  `json:"productId"`
	VariantKey   string `json:"variantKey"`
	MovementType string `json:"movementType"`
	QtyDelta     int64  `json:"qtyDelta"`
	OnHand       int64  `json:"onHand"`
}

// POStatusPayload accompanies TypePOStatusChanged.
type POStatusPayload struct {
	OrderID id.ID  `json:"orderId"`
	Number  string `json:"number"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// CountAppliedPayload accompanies TypeCountApplied.
type CountAppliedPayload struct {
	CountID       id.ID  `json:"countId"`
	Code          string `json:"code"`
	StoreID       id.ID  `json:"storeId"`
	AdjustedLines int    `json:"adjustedLines"`
}

// LowStockPayload accompanies TypeLowStock.
type LowStockPayload struct {
	StoreID    id.ID  `json:"storeId"`
	ProductID  id.ID  `json:"productId"`
	VariantKey string `json:"variantKey"`
	OnHand     int64  `json:"onHand"`
	OnOrder    int64  `json:"onOrder"`
	MinStock   int64  `json:"minStock"`
}
