package purchase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"restock/internal/core/apperror"
	appctx "restock/internal/core/context"
	"restock/internal/core/entity"
	"restock/internal/core/id"
	"restock/internal/core/tx"
	"restock/internal/core/types"
	"restock/internal/domain/audit"
	"restock/internal/domain/catalog"
	"restock/internal/domain/events"
	"restock/internal/domain/idem"
	"restock/internal/domain/ledger"
	"restock/internal/domain/uom"
)

// Deps wires the purchase order service.
type Deps struct {
	Tx        tx.Manager
	Repo      Repository
	Stores    catalog.StoreRepository
	Products  catalog.ProductRepository
	Suppliers catalog.SupplierRepository
	Resolver  *uom.Resolver
	Ledger    *ledger.Service
	Guard     idem.Guard
	Numbers   NumberSource
	Publisher events.Publisher
	Audit     audit.Sink
}

// Service drives purchase orders through their lifecycle. Stock effects
// (on-order counters, receipts) go through the ledger's primitives; this
// service never writes snapshot or movement rows itself.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// LineInput is one ordered position in caller units.
type LineInput struct {
	ProductID id.ID
	VariantID *id.ID
	Quantity  decimal.Decimal
	UnitID    *id.ID
	PackID    *id.ID
	UnitCost  *types.Money
}

// CreateInput creates an order, optionally submitting it in the same
// transaction.
type CreateInput struct {
	StoreID    id.ID
	SupplierID id.ID
	Comment    string
	Lines      []LineInput
	SubmitNow  bool
}

// Create validates membership of every referenced row, rejects duplicate
// (product, variant) lines and resolves quantities in purchasing mode.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var order *Order
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		store, err := s.deps.Stores.GetByID(ctx, orgID, in.StoreID)
		if err != nil {
			return err
		}
		if _, err := s.deps.Suppliers.GetByID(ctx, orgID, in.SupplierID); err != nil {
			return err
		}

		number, err := s.deps.Numbers.NextNumber(ctx, orgID)
		if err != nil {
			return err
		}

		order = &Order{
			Document:   entity.NewDocument(orgID),
			StoreID:    store.ID,
			SupplierID: in.SupplierID,
			Status:     StatusDraft,
		}
		order.Number = number
		order.Comment = in.Comment
		order.CreatedBy = appctx.GetUserID(ctx).String()

		seen := map[lineKey]bool{}
		for i := range in.Lines {
			line, err := s.buildLine(ctx, orgID, order.ID, in.Lines[i])
			if err != nil {
				return err
			}
			key := lineKey{line.ProductID, ledger.VariantKeyOf(line.VariantID)}
			if seen[key] {
				return apperror.NewConflict("duplicate order line").
					WithDetail("product_id", line.ProductID.String()).
					WithDetail("variant_key", key.variantKey)
			}
			seen[key] = true
			order.Lines = append(order.Lines, *line)
		}

		if err := s.deps.Repo.Insert(ctx, order); err != nil {
			return err
		}

		if err := s.deps.Audit.Write(ctx, audit.Entry{
			OrganizationID: orgID,
			ActorID:        appctx.GetUserID(ctx),
			Action:         "purchaseOrder.create",
			Entity:         "purchase_order",
			EntityID:       order.ID,
			After:          map[string]any{"number": order.Number, "status": order.Status},
			RequestID:      appctx.GetRequestID(ctx),
		}); err != nil {
			return err
		}

		if in.SubmitNow {
			if err := s.submitTx(ctx, col, store, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	col.Flush(ctx, s.deps.Publisher)
	return order, nil
}

type lineKey struct {
	productID  id.ID
	variantKey string
}

func (s *Service) buildLine(ctx context.Context, orgID, orderID id.ID, in LineInput) (*Line, error) {
	product, err := s.deps.Products.GetByID(ctx, orgID, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.VariantID != nil {
		variant, err := s.deps.Products.GetVariant(ctx, orgID, *in.VariantID)
		if err != nil {
			return nil, err
		}
		if variant.ProductID != product.ID {
			return nil, apperror.NewValidation("variant belongs to a different product").
				WithDetail("variant_id", variant.ID.String()).
				WithDetail("product_id", product.ID.String())
		}
	}

	qty, err := s.deps.Resolver.Resolve(ctx, orgID, uom.ResolveInput{
		Product:  product,
		Quantity: in.Quantity,
		UnitID:   in.UnitID,
		PackID:   in.PackID,
		Mode:     uom.ModePurchasing,
	})
	if err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, apperror.NewValidation("ordered quantity must be positive").
			WithDetail("product_id", product.ID.String())
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return nil, apperror.NewValidation("unit cost must not be negative").
			WithDetail("product_id", product.ID.String())
	}

	return &Line{
		ID:         id.New(),
		OrderID:    orderID,
		ProductID:  product.ID,
		VariantID:  in.VariantID,
		QtyOrdered: qty,
		UnitCost:   in.UnitCost,
	}, nil
}

// Submit moves a DRAFT order to SUBMITTED and raises the on-order
// counters by each line's ordered quantity.
func (s *Service) Submit(ctx context.Context, orderID id.ID) (*Order, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var order *Order
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err = s.deps.Repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		store, err := s.deps.Stores.GetByID(ctx, orgID, order.StoreID)
		if err != nil {
			return err
		}
		return s.submitTx(ctx, col, store, order)
	})
	if err != nil {
		return nil, err
	}

	col.Flush(ctx, s.deps.Publisher)
	return order, nil
}

func (s *Service) submitTx(ctx context.Context, col *events.Collector, store *catalog.Store, order *Order) error {
	if !order.Status.CanTransitionTo(StatusSubmitted) {
		return apperror.NewInvalidTransition(string(order.Status), string(StatusSubmitted))
	}
	if len(order.Lines) == 0 {
		return apperror.NewValidation("order has no lines").
			WithDetail("order_id", order.ID.String())
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		key := ledger.VariantKeyOf(line.VariantID)
		if _, err := s.deps.Ledger.AdjustOnOrder(ctx, store, line.ProductID, key, line.QtyOrdered); err != nil {
			return err
		}
	}

	return s.setStatus(ctx, col, order, StatusSubmitted)
}

// Approve moves a SUBMITTED order to APPROVED.
func (s *Service) Approve(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusApproved, "purchaseOrder.approve")
}

// ReceiveLine overrides the received quantity for one line. A nil
// Quantity means "receive all remaining" for that line.
type ReceiveLine struct {
	LineID     id.ID
	Quantity   *decimal.Decimal
	UnitID     *id.ID
	PackID     *id.ID
	ExpiryDate *time.Time
}

// ReceiveInput receives goods against an approved order.
type ReceiveInput struct {
	IdempotencyKey string
	OrderID        id.ID

	// Lines limits the receipt to the listed lines. Empty means every
	// line receives its full remaining quantity.
	Lines []ReceiveLine

	// AllowOverReceive permits qtyReceived to exceed qtyOrdered.
	AllowOverReceive bool
}

// ReceivedLine reports one line's receipt.
type ReceivedLine struct {
	LineID     id.ID  `json:"lineId"`
	Quantity   int64  `json:"quantity"`
	MovementID id.ID  `json:"movementId"`
	LotID      *id.ID `json:"lotId,omitempty"`
}

// ReceiveResult reports the applied receipt.
type ReceiveResult struct {
	Order    Order          `json:"order"`
	Received []ReceivedLine `json:"received"`

	Replayed bool `json:"-"`
}

// Receive applies a (possibly partial) receipt: RECEIVE movements, lot
// mirrors, on-order decrements and cost-basis updates, then advances the
// order status. Idempotency-guarded; receiving an already-RECEIVED order
// is a no-op returning the current state.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	if err := idem.ValidateKey(in.IdempotencyKey); err != nil {
		return nil, err
	}
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var out ReceiveResult
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		res, err := s.deps.Guard.Do(ctx, in.IdempotencyKey, "purchase.receive", func(ctx context.Context) (any, error) {
			return s.receiveTx(ctx, col, orgID, in)
		})
		if err != nil {
			return err
		}
		if err := idem.Unmarshal(res, &out); err != nil {
			return err
		}
		out.Replayed = res.Replayed
		return nil
	})
	if err != nil {
		return nil, err
	}

	col.Flush(ctx, s.deps.Publisher)
	return &out, nil
}

func (s *Service) receiveTx(ctx context.Context, col *events.Collector, orgID id.ID, in ReceiveInput) (*ReceiveResult, error) {
	order, err := s.deps.Repo.GetForUpdate(ctx, orgID, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusReceived {
		return &ReceiveResult{Order: *order}, nil
	}
	if order.Status != StatusApproved && order.Status != StatusPartiallyReceived {
		return nil, apperror.NewInvalidTransition(string(order.Status), string(StatusReceived))
	}

	store, err := s.deps.Stores.GetByID(ctx, orgID, order.StoreID)
	if err != nil {
		return nil, err
	}

	plan, err := s.planReceipt(ctx, orgID, order, in)
	if err != nil {
		return nil, err
	}

	result := &ReceiveResult{}
	for _, item := range plan {
		line := order.FindLine(item.lineID)
		received, err := s.receiveLine(ctx, col, store, order, line, item)
		if err != nil {
			return nil, err
		}
		if received != nil {
			result.Received = append(result.Received, *received)
		}
	}

	next := StatusPartiallyReceived
	if order.AllReceived() {
		next = StatusReceived
	}
	if next != order.Status {
		if !order.Status.CanTransitionTo(next) {
			return nil, apperror.NewInvalidTransition(string(order.Status), string(next))
		}
		if err := s.setStatus(ctx, col, order, next); err != nil {
			return nil, err
		}
	} else {
		order.Touch()
		order.UpdatedBy = appctx.GetUserID(ctx).String()
		if err := s.deps.Repo.UpdateHeader(ctx, order); err != nil {
			return nil, err
		}
	}

	if err := s.deps.Audit.Write(ctx, audit.Entry{
		OrganizationID: orgID,
		ActorID:        appctx.GetUserID(ctx),
		Action:         "purchaseOrder.receive",
		Entity:         "purchase_order",
		EntityID:       order.ID,
		After:          map[string]any{"status": order.Status, "receivedLines": len(result.Received)},
		RequestID:      appctx.GetRequestID(ctx),
	}); err != nil {
		return nil, err
	}

	result.Order = *order
	return result, nil
}

// receiptItem is one planned line receipt in base units.
type receiptItem struct {
	lineID     id.ID
	qty        int64
	expiryDate *time.Time
}

// planReceipt resolves every requested quantity before any stock effect,
// so validation failures reject the receipt with nothing written.
func (s *Service) planReceipt(ctx context.Context, orgID id.ID, order *Order, in ReceiveInput) ([]receiptItem, error) {
	if len(in.Lines) == 0 {
		// Receive all remaining on every line.
		var plan []receiptItem
		for i := range order.Lines {
			line := &order.Lines[i]
			if rem := line.Remaining(); rem > 0 {
				plan = append(plan, receiptItem{lineID: line.ID, qty: rem})
			}
		}
		if len(plan) == 0 {
			return nil, apperror.NewValidation("nothing left to receive").
				WithDetail("order_id", order.ID.String())
		}
		return plan, nil
	}

	plan := make([]receiptItem, 0, len(in.Lines))
	planned := make(map[id.ID]int64, len(in.Lines))
	for _, rl := range in.Lines {
		line := order.FindLine(rl.LineID)
		if line == nil {
			return nil, apperror.NewNotFound("purchase order line", rl.LineID)
		}

		qty := line.Remaining()
		if rl.Quantity != nil {
			product, err := s.deps.Products.GetByID(ctx, orgID, line.ProductID)
			if err != nil {
				return nil, err
			}
			qty, err = s.deps.Resolver.Resolve(ctx, orgID, uom.ResolveInput{
				Product:  product,
				Quantity: *rl.Quantity,
				UnitID:   rl.UnitID,
				PackID:   rl.PackID,
				Mode:     uom.ModeReceiving,
			})
			if err != nil {
				return nil, err
			}
		}
		if qty < 0 {
			return nil, apperror.NewValidation("received quantity must not be negative").
				WithDetail("line_id", line.ID.String())
		}
		if qty == 0 {
			continue
		}

		// A line may appear more than once (split receipts with distinct
		// expiry dates), so the guard checks the accumulated total.
		planned[line.ID] += qty
		if planned[line.ID] > line.Remaining() && !in.AllowOverReceive {
			return nil, apperror.NewOverReceive(line.ID.String(), line.QtyOrdered, line.QtyReceived, planned[line.ID])
		}

		plan = append(plan, receiptItem{lineID: line.ID, qty: qty, expiryDate: rl.ExpiryDate})
	}
	if len(plan) == 0 {
		return nil, apperror.NewValidation("nothing left to receive").
			WithDetail("order_id", order.ID.String())
	}
	return plan, nil
}

func (s *Service) receiveLine(ctx context.Context, col *events.Collector, store *catalog.Store, order *Order, line *Line, item receiptItem) (*ReceivedLine, error) {
	variantKey := ledger.VariantKeyOf(line.VariantID)

	snap, mv, err := s.deps.Ledger.ApplyMovement(ctx, col, store, ledger.MovementInput{
		ProductID:  line.ProductID,
		VariantKey: variantKey,
		Type:       ledger.MovementReceive,
		QtyDelta:   item.qty,
		Reference:  &ledger.Reference{Type: ledger.RefPurchaseOrder, ID: order.ID},
	})
	if err != nil {
		return nil, err
	}

	lot, err := s.deps.Ledger.MirrorLot(ctx, store, mv, item.qty, item.expiryDate)
	if err != nil {
		return nil, err
	}

	// On-order drops only by what was still outstanding: over-receipts
	// beyond the ordered quantity were never on order.
	if drop := min64(item.qty, line.Remaining()); drop > 0 {
		if _, err := s.deps.Ledger.AdjustOnOrder(ctx, store, line.ProductID, variantKey, -drop); err != nil {
			return nil, err
		}
	}

	if line.UnitCost != nil {
		prevOnHand := snap.OnHand - item.qty
		if err := s.deps.Ledger.ApplyCost(ctx, store.OrganizationID, line.ProductID, variantKey, prevOnHand, item.qty, *line.UnitCost); err != nil {
			return nil, err
		}
	}

	line.QtyReceived += item.qty
	if err := s.deps.Repo.UpdateLine(ctx, line); err != nil {
		return nil, err
	}

	out := &ReceivedLine{LineID: line.ID, Quantity: item.qty, MovementID: mv.ID}
	if lot != nil {
		out.LotID = &lot.ID
	}
	return out, nil
}

// Cancel aborts a DRAFT or SUBMITTED order, reversing any on-order
// increments a submit had applied.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*Order, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var order *Order
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err = s.deps.Repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(StatusCancelled) {
			return apperror.NewInvalidTransition(string(order.Status), string(StatusCancelled))
		}

		if order.Status == StatusSubmitted {
			store, err := s.deps.Stores.GetByID(ctx, orgID, order.StoreID)
			if err != nil {
				return err
			}
			for i := range order.Lines {
				line := &order.Lines[i]
				if rem := line.Remaining(); rem > 0 {
					key := ledger.VariantKeyOf(line.VariantID)
					if _, err := s.deps.Ledger.AdjustOnOrder(ctx, store, line.ProductID, key, -rem); err != nil {
						return err
					}
				}
			}
		}

		if err := s.setStatus(ctx, col, order, StatusCancelled); err != nil {
			return err
		}
		return s.deps.Audit.Write(ctx, audit.Entry{
			OrganizationID: orgID,
			ActorID:        appctx.GetUserID(ctx),
			Action:         "purchaseOrder.cancel",
			Entity:         "purchase_order",
			EntityID:       order.ID,
			After:          map[string]any{"status": order.Status},
			RequestID:      appctx.GetRequestID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}

	col.Flush(ctx, s.deps.Publisher)
	return order, nil
}

// AddLine appends a line to a DRAFT order.
func (s *Service) AddLine(ctx context.Context, orderID id.ID, in LineInput) (*Order, error) {
	return s.mutateDraft(ctx, orderID, func(ctx context.Context, orgID id.ID, order *Order) error {
		line, err := s.buildLine(ctx, orgID, order.ID, in)
		if err != nil {
			return err
		}
		key := ledger.VariantKeyOf(line.VariantID)
		for i := range order.Lines {
			if order.Lines[i].ProductID == line.ProductID && ledger.VariantKeyOf(order.Lines[i].VariantID) == key {
				return apperror.NewConflict("duplicate order line").
					WithDetail("product_id", line.ProductID.String()).
					WithDetail("variant_key", key)
			}
		}
		if err := s.deps.Repo.InsertLine(ctx, line); err != nil {
			return err
		}
		order.Lines = append(order.Lines, *line)
		return nil
	})
}

// UpdateLineInput changes quantity or cost on a DRAFT order line.
type UpdateLineInput struct {
	Quantity decimal.Decimal
	UnitID   *id.ID
	PackID   *id.ID
	UnitCost *types.Money
}

// UpdateLine rewrites one line of a DRAFT order.
func (s *Service) UpdateLine(ctx context.Context, orderID, lineID id.ID, in UpdateLineInput) (*Order, error) {
	return s.mutateDraft(ctx, orderID, func(ctx context.Context, orgID id.ID, order *Order) error {
		line := order.FindLine(lineID)
		if line == nil {
			return apperror.NewNotFound("purchase order line", lineID)
		}

		product, err := s.deps.Products.GetByID(ctx, orgID, line.ProductID)
		if err != nil {
			return err
		}
		qty, err := s.deps.Resolver.Resolve(ctx, orgID, uom.ResolveInput{
			Product:  product,
			Quantity: in.Quantity,
			UnitID:   in.UnitID,
			PackID:   in.PackID,
			Mode:     uom.ModePurchasing,
		})
		if err != nil {
			return err
		}
		if qty <= 0 {
			return apperror.NewValidation("ordered quantity must be positive").
				WithDetail("line_id", lineID.String())
		}
		if in.UnitCost != nil && in.UnitCost.IsNegative() {
			return apperror.NewValidation("unit cost must not be negative").
				WithDetail("line_id", lineID.String())
		}

		line.QtyOrdered = qty
		line.UnitCost = in.UnitCost
		return s.deps.Repo.UpdateLine(ctx, line)
	})
}

// RemoveLine deletes one line from a DRAFT order.
func (s *Service) RemoveLine(ctx context.Context, orderID, lineID id.ID) (*Order, error) {
	return s.mutateDraft(ctx, orderID, func(ctx context.Context, orgID id.ID, order *Order) error {
		if order.FindLine(lineID) == nil {
			return apperror.NewNotFound("purchase order line", lineID)
		}
		if err := s.deps.Repo.DeleteLine(ctx, order.ID, lineID); err != nil {
			return err
		}
		kept := order.Lines[:0]
		for i := range order.Lines {
			if order.Lines[i].ID != lineID {
				kept = append(kept, order.Lines[i])
			}
		}
		order.Lines = kept
		return nil
	})
}

// Get loads one order with its lines.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*Order, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}
	return s.deps.Repo.GetByID(ctx, orgID, orderID)
}

// List returns orders matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}
	filter.OrganizationID = orgID
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.deps.Repo.List(ctx, filter)
}

// --- helpers ---

func (s *Service) transition(ctx context.Context, orderID id.ID, next Status, action string) (*Order, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var order *Order
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err = s.deps.Repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return apperror.NewInvalidTransition(string(order.Status), string(next))
		}
		if err := s.setStatus(ctx, col, order, next); err != nil {
			return err
		}
		return s.deps.Audit.Write(ctx, audit.Entry{
			OrganizationID: orgID,
			ActorID:        appctx.GetUserID(ctx),
			Action:         action,
			Entity:         "purchase_order",
			EntityID:       order.ID,
			After:          map[string]any{"status": order.Status},
			RequestID:      appctx.GetRequestID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}

	col.Flush(ctx, s.deps.Publisher)
	return order, nil
}

// setStatus persists a legal status change and queues the status event.
// Callers check legality first; this re-checks as a last line of defense.
func (s *Service) setStatus(ctx context.Context, col *events.Collector, order *Order, next Status) error {
	if !order.Status.CanTransitionTo(next) {
		return apperror.NewInvalidTransition(string(order.Status), string(next))
	}

	prev := order.Status
	now := time.Now().UTC()
	order.Status = next
	switch next {
	case StatusSubmitted:
		order.SubmittedAt = &now
	case StatusApproved:
		order.ApprovedAt = &now
	case StatusReceived:
		order.ReceivedAt = &now
	case StatusCancelled:
		order.CancelledAt = &now
	}
	order.Touch()
	order.UpdatedBy = appctx.GetUserID(ctx).String()

	if err := s.deps.Repo.UpdateHeader(ctx, order); err != nil {
		return err
	}

	col.Add(events.New(events.TypePOStatusChanged, order.OrganizationID, events.POStatusPayload{
		OrderID: order.ID,
		Number:  order.Number,
		From:    string(prev),
		To:      string(next),
	}))
	return nil
}

func (s *Service) mutateDraft(ctx context.Context, orderID id.ID, fn func(ctx context.Context, orgID id.ID, order *Order) error) (*Order, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var order *Order
	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err = s.deps.Repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusDraft {
			return apperror.NewConflict("order lines are locked").
				WithDetail("order_id", order.ID.String()).
				WithDetail("status", string(order.Status))
		}
		if err := fn(ctx, orgID, order); err != nil {
			return err
		}
		order.Touch()
		order.UpdatedBy = appctx.GetUserID(ctx).String()
		return s.deps.Repo.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func callerOrg(ctx context.Context) (id.ID, error) {
	orgID := appctx.GetOrganizationID(ctx)
	if id.IsNil(orgID) {
		return id.Nil(), apperror.NewUnauthorized("missing caller identity")
	}
	return orgID, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
