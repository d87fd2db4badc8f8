package purchase_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/ledger"
	"restock/internal/domain/ledger/ledgertest"
	"restock/internal/domain/purchase"
	"restock/internal/domain/uom"
)

// memOrders is an in-memory purchase repository. GetForUpdate hands out
// deep copies so service-side mutation only lands via the update methods,
// mirroring how the real repository behaves.
type memOrders struct {
	Orders map[id.ID]*purchase.Order
}

func newMemOrders() *memOrders {
	return &memOrders{Orders: make(map[id.ID]*purchase.Order)}
}

func copyOrder(o *purchase.Order) *purchase.Order {
	cp := *o
	cp.Lines = append([]purchase.Line(nil), o.Lines...)
	return &cp
}

func (r *memOrders) Insert(ctx context.Context, order *purchase.Order) error {
	r.Orders[order.ID] = copyOrder(order)
	return nil
}

func (r *memOrders) GetByID(ctx context.Context, orgID, orderID id.ID) (*purchase.Order, error) {
	o, ok := r.Orders[orderID]
	if !ok || o.OrganizationID != orgID {
		return nil, apperror.NewNotFound("purchase order", orderID.String())
	}
	return copyOrder(o), nil
}

func (r *memOrders) GetForUpdate(ctx context.Context, orgID, orderID id.ID) (*purchase.Order, error) {
	return r.GetByID(ctx, orgID, orderID)
}

func (r *memOrders) UpdateHeader(ctx context.Context, order *purchase.Order) error {
	stored, ok := r.Orders[order.ID]
	if !ok {
		return apperror.NewNotFound("purchase order", order.ID.String())
	}
	cp := copyOrder(order)
	cp.Lines = stored.Lines
	r.Orders[order.ID] = cp
	return nil
}

func (r *memOrders) InsertLine(ctx context.Context, line *purchase.Line) error {
	stored, ok := r.Orders[line.OrderID]
	if !ok {
		return apperror.NewNotFound("purchase order", line.OrderID.String())
	}
	stored.Lines = append(stored.Lines, *line)
	return nil
}

func (r *memOrders) UpdateLine(ctx context.Context, line *purchase.Line) error {
	stored, ok := r.Orders[line.OrderID]
	if !ok {
		return apperror.NewNotFound("purchase order", line.OrderID.String())
	}
	for i := range stored.Lines {
		if stored.Lines[i].ID == line.ID {
			stored.Lines[i] = *line
			return nil
		}
	}
	return apperror.NewNotFound("purchase order line", line.ID.String())
}

func (r *memOrders) DeleteLine(ctx context.Context, orderID, lineID id.ID) error {
	stored, ok := r.Orders[orderID]
	if !ok {
		return apperror.NewNotFound("purchase order", orderID.String())
	}
	kept := stored.Lines[:0]
	for i := range stored.Lines {
		if stored.Lines[i].ID != lineID {
			kept = append(kept, stored.Lines[i])
		}
	}
	stored.Lines = kept
	return nil
}

func (r *memOrders) List(ctx context.Context, filter purchase.ListFilter) ([]purchase.Order, error) {
	var out []purchase.Order
	for _, o := range r.Orders {
		if o.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.StoreID != nil && o.StoreID != *filter.StoreID {
			continue
		}
		if filter.SupplierID != nil && o.SupplierID != *filter.SupplierID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memOrders) OpenRemainders(ctx context.Context, orgID, storeID id.ID) ([]ledger.MovementSum, error) {
	type key struct {
		productID  id.ID
		variantKey string
	}
	totals := make(map[key]int64)
	for _, o := range r.Orders {
		if o.OrganizationID != orgID || o.StoreID != storeID {
			continue
		}
		switch o.Status {
		case purchase.StatusSubmitted, purchase.StatusApproved, purchase.StatusPartiallyReceived:
		default:
			continue
		}
		for i := range o.Lines {
			line := &o.Lines[i]
			totals[key{line.ProductID, ledger.VariantKeyOf(line.VariantID)}] += line.Remaining()
		}
	}
	var out []ledger.MovementSum
	for k, total := range totals {
		out = append(out, ledger.MovementSum{ProductID: k.productID, VariantKey: k.variantKey, Total: total})
	}
	return out, nil
}

// seqNumbers allocates PO-000001, PO-000002, ...
type seqNumbers struct{ n int }

func (s *seqNumbers) NextNumber(ctx context.Context, orgID id.ID) (string, error) {
	s.n++
	return fmt.Sprintf("PO-%06d", s.n), nil
}

// env wires the purchase service over the ledger fixture's fakes.
type env struct {
	*ledgertest.Fixture
	Orders *memOrders
	Svc    *purchase.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	f := ledgertest.NewFixture()
	orders := newMemOrders()
	f.WithOnOrder(orders)

	svc := purchase.NewService(purchase.Deps{
		Tx:        ledgertest.PassTx{},
		Repo:      orders,
		Stores:    f.Catalog,
		Products:  f.Catalog.ProductRepo(),
		Suppliers: f.Catalog.SupplierRepo(),
		Resolver:  uom.NewResolver(f.Catalog.PackRepo()),
		Ledger:    f.Service,
		Guard:     f.Guard,
		Numbers:   &seqNumbers{},
		Publisher: f.Publisher,
		Audit:     f.Audit,
	})
	return &env{Fixture: f, Orders: orders, Svc: svc}
}
