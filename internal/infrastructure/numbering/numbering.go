// Package numbering adapts the numerator sequences to the document
// workflows. Numbers are allocated inside the caller's transaction, so
// a rolled-back create does not burn a number visible to the user.
package numbering

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"restock/internal/core/id"
	"restock/internal/domain/purchase"
	"restock/internal/infrastructure/storage/postgres"
	"restock/pkg/numerator"
)

// txQuerier resolves the querier per call so sequence updates join the
// open transaction when there is one.
type txQuerier struct {
	txm *postgres.TxManager
}

func (q txQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return q.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...)
}

// PurchaseNumbers allocates purchase order numbers (PO-2026-00001),
// one strict sequence per organization and year.
type PurchaseNumbers struct {
	svc *numerator.Service
	cfg numerator.Config
}

// NewPurchaseNumbers creates the purchase order number source.
func NewPurchaseNumbers(txm *postgres.TxManager) *PurchaseNumbers {
	return &PurchaseNumbers{
		svc: numerator.New(txQuerier{txm: txm}),
		cfg: numerator.DefaultConfig("PO"),
	}
}

var _ purchase.NumberSource = (*PurchaseNumbers)(nil)

// NextNumber returns the next order number for the organization.
func (n *PurchaseNumbers) NextNumber(ctx context.Context, orgID id.ID) (string, error) {
	return n.svc.GetNextNumber(ctx, orgID.String(), n.cfg, numerator.DefaultOptions(), time.Now().UTC())
}
