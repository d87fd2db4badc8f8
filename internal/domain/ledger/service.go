package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"restock/internal/core/apperror"
	appctx "restock/internal/core/context"
	"restock/internal/core/id"
	"restock/internal/core/tx"
	"restock/internal/core/types"
	"restock/internal/domain/alerts"
	"restock/internal/domain/audit"
	"restock/internal/domain/catalog"
	"restock/internal/domain/events"
	"restock/internal/domain/idem"
	"restock/internal/domain/lots"
	"restock/internal/domain/uom"
	"restock/pkg/logger"
)

// Deps wires the ledger service.
type Deps struct {
	Tx        tx.Manager
	Repo      Repository
	Costs     CostRepository
	Stores    catalog.StoreRepository
	Products  catalog.ProductRepository
	Resolver  *uom.Resolver
	Lots      *lots.Tracker
	Guard     idem.Guard
	OnOrder   OnOrderSource
	Alerts    *alerts.Evaluator
	Rules     alerts.RuleSource
	Publisher events.Publisher
	Audit     audit.Sink
}

// Service implements the stock ledger operations. Every public mutation
// runs inside a single transaction; events queue up during the
// transaction and are published only after commit.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// MovementInput describes one primitive movement in base units.
type MovementInput struct {
	ProductID  id.ID
	VariantKey string
	Type       MovementType
	QtyDelta   int64
	Reference  *Reference
	Note       string
}

// ApplyMovement is the single mutation primitive: lock (creating if
// absent) the snapshot row, check the negative-stock policy, persist the
// new counter and append the movement. Must run inside a transaction.
func (s *Service) ApplyMovement(ctx context.Context, col *events.Collector, store *catalog.Store, in MovementInput) (*Snapshot, *Movement, error) {
	key := SnapshotKey{
		OrganizationID: store.OrganizationID,
		StoreID:        store.ID,
		ProductID:      in.ProductID,
		VariantKey:     in.VariantKey,
	}

	snap, err := s.deps.Repo.LockSnapshot(ctx, key, store.AllowNegativeStock)
	if err != nil {
		return nil, nil, err
	}

	next := snap.OnHand + in.QtyDelta
	if next < 0 && !store.AllowNegativeStock {
		return nil, nil, apperror.NewInsufficientStock(in.ProductID.String(), -in.QtyDelta, snap.OnHand).
			WithDetail("store_id", store.ID.String()).
			WithDetail("variant_key", in.VariantKey)
	}

	snap.OnHand = next
	snap.UpdatedAt = time.Now().UTC()
	if err := s.deps.Repo.UpdateSnapshot(ctx, snap); err != nil {
		return nil, nil, err
	}

	m := &Movement{
		ID:             id.New(),
		OrganizationID: store.OrganizationID,
		StoreID:        store.ID,
		ProductID:      in.ProductID,
		VariantKey:     in.VariantKey,
		Type:           in.Type,
		QtyDelta:       in.QtyDelta,
		ActorID:        appctx.GetUserID(ctx),
		Note:           in.Note,
		CreatedAt:      time.Now().UTC(),
	}
	if in.Reference != nil {
		m.RefType = &in.Reference.Type
		m.RefID = &in.Reference.ID
	}
	if err := s.deps.Repo.InsertMovement(ctx, m); err != nil {
		return nil, nil, err
	}

	col.Add(events.New(events.TypeStockMovement, store.OrganizationID, events.StockMovementPayload{
		MovementID:   m.ID,
		StoreID:      store.ID,
		ProductID:    in.ProductID,
		VariantKey:   in.VariantKey,
		MovementType: string(in.Type),
		QtyDelta:     in.QtyDelta,
		OnHand:       snap.OnHand,
	}))

	return snap, m, nil
}

// AdjustOnOrder shifts the on-order counter under the same snapshot lock
// the on-hand mutations use. The counter never drops below zero. Must run
// inside a transaction.
func (s *Service) AdjustOnOrder(ctx context.Context, store *catalog.Store, productID id.ID, variantKey string, delta int64) (*Snapshot, error) {
	key := SnapshotKey{
		OrganizationID: store.OrganizationID,
		StoreID:        store.ID,
		ProductID:      productID,
		VariantKey:     variantKey,
	}

	snap, err := s.deps.Repo.LockSnapshot(ctx, key, store.AllowNegativeStock)
	if err != nil {
		return nil, err
	}

	next := snap.OnOrder + delta
	if next < 0 {
		next = 0
	}
	snap.OnOrder = next
	snap.UpdatedAt = time.Now().UTC()
	if err := s.deps.Repo.UpdateSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// CheckLowStock evaluates the organization's alert rule against the
// snapshot and queues a low-stock event when it fires. Products with no
// configured minimum never alert.
func (s *Service) CheckLowStock(ctx context.Context, col *events.Collector, product *catalog.Product, snap *Snapshot) error {
	if product.MinStock <= 0 {
		return nil
	}

	rule, err := s.deps.Rules.RuleFor(ctx, product.OrganizationID)
	if err != nil {
		return err
	}

	fired, err := s.deps.Alerts.Evaluate(rule, alerts.Input{
		OnHand:   snap.OnHand,
		OnOrder:  snap.OnOrder,
		MinStock: product.MinStock,
	})
	if err != nil {
		// A broken custom rule must not abort the stock mutation.
		logger.Warn(ctx, "low stock rule evaluation failed",
			"product_id", product.ID.String(), "error", err)
		return nil
	}
	if !fired {
		return nil
	}

	col.Add(events.New(events.TypeLowStock, product.OrganizationID, events.LowStockPayload{
		StoreID:    snap.StoreID,
		ProductID:  product.ID,
		VariantKey: snap.VariantKey,
		OnHand:     snap.OnHand,
		OnOrder:    snap.OnOrder,
		MinStock:   product.MinStock,
	}))
	return nil
}

// ApplyCost folds a costed receipt into the weighted-average basis.
// prevOnHand is the on-hand quantity before the receipt. Must run inside
// a transaction.
func (s *Service) ApplyCost(ctx context.Context, orgID, productID id.ID, variantKey string, prevOnHand, qty int64, unitCost types.Money) error {
	cost, err := s.deps.Costs.Get(ctx, orgID, productID, variantKey)
	if err != nil {
		return err
	}

	prevAvg := decimal.Zero
	if cost != nil {
		prevAvg = cost.AvgCost
	} else {
		cost = &ProductCost{
			OrganizationID: orgID,
			ProductID:      productID,
			VariantKey:     variantKey,
		}
	}

	cost.AvgCost = types.WeightedAverage(prevOnHand, prevAvg, qty, unitCost)
	cost.UpdatedAt = time.Now().UTC()
	return s.deps.Costs.Upsert(ctx, cost)
}

// --- Public operations ---

// AdjustInput is one stock adjustment in caller units.
type AdjustInput struct {
	IdempotencyKey string
	StoreID        id.ID
	ProductID      id.ID
	VariantID      *id.ID
	Quantity       decimal.Decimal
	UnitID         *id.ID
	PackID         *id.ID
	ExpiryDate     *time.Time
	Note           string
}

// AdjustResult reports the applied adjustment.
type AdjustResult struct {
	Snapshot   Snapshot `json:"snapshot"`
	MovementID id.ID    `json:"movementId"`
	LotID      *id.ID   `json:"lotId,omitempty"`

	Replayed bool `json:"-"`
}

// Adjust applies a signed stock adjustment, mirrors the matching lot and
// evaluates low-stock alerting. Idempotency-guarded.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (*AdjustResult, error) {
	if err := idem.ValidateKey(in.IdempotencyKey); err != nil {
		return nil, err
	}
	if in.Quantity.IsZero() {
		return nil, apperror.NewValidation("quantity must not be zero")
	}
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var out AdjustResult
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		res, err := s.deps.Guard.Do(ctx, in.IdempotencyKey, "ledger.adjust", func(ctx context.Context) (any, error) {
			return s.adjustTx(ctx, col, orgID, in)
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

func (s *Service) adjustTx(ctx context.Context, col *events.Collector, orgID id.ID, in AdjustInput) (*AdjustResult, error) {
	store, product, variantKey, err := s.loadItem(ctx, orgID, in.StoreID, in.ProductID, in.VariantID)
	if err != nil {
		return nil, err
	}

	delta, err := s.deps.Resolver.Resolve(ctx, orgID, uom.ResolveInput{
		Product:  product,
		Quantity: in.Quantity,
		UnitID:   in.UnitID,
		PackID:   in.PackID,
		Mode:     uom.ModeInventory,
	})
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, apperror.NewValidation("quantity must not be zero")
	}

	snap, mv, err := s.ApplyMovement(ctx, col, store, MovementInput{
		ProductID:  product.ID,
		VariantKey: variantKey,
		Type:       MovementAdjustment,
		QtyDelta:   delta,
		Note:       in.Note,
	})
	if err != nil {
		return nil, err
	}

	lot, err := s.MirrorLot(ctx, store, mv, delta, in.ExpiryDate)
	if err != nil {
		return nil, err
	}

	if err := s.CheckLowStock(ctx, col, product, snap); err != nil {
		return nil, err
	}

	if err := s.deps.Audit.Write(ctx, audit.Entry{
		OrganizationID: orgID,
		ActorID:        appctx.GetUserID(ctx),
		Action:         "stock.adjust",
		Entity:         "inventory_snapshot",
		EntityID:       snap.ID,
		Before:         map[string]any{"onHand": snap.OnHand - delta},
		After:          map[string]any{"onHand": snap.OnHand},
		RequestID:      appctx.GetRequestID(ctx),
	}); err != nil {
		return nil, err
	}

	res := &AdjustResult{Snapshot: *snap, MovementID: mv.ID}
	if lot != nil {
		res.LotID = &lot.ID
	}
	return res, nil
}

// ReceiveInput is one direct (order-less) receipt in caller units.
type ReceiveInput struct {
	IdempotencyKey string
	StoreID        id.ID
	ProductID      id.ID
	VariantID      *id.ID
	Quantity       decimal.Decimal
	UnitID         *id.ID
	PackID         *id.ID
	UnitCost       *types.Money
	ExpiryDate     *time.Time
	Note           string
}

// ReceiveResult reports the applied receipt.
type ReceiveResult struct {
	Snapshot   Snapshot `json:"snapshot"`
	MovementID id.ID    `json:"movementId"`
	LotID      *id.ID   `json:"lotId,omitempty"`

	Replayed bool `json:"-"`
}

// Receive books stock in, mirrors the lot and updates the weighted-average
// cost basis when a unit cost is supplied. Idempotency-guarded.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	if err := idem.ValidateKey(in.IdempotencyKey); err != nil {
		return nil, err
	}
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive")
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return nil, apperror.NewValidation("unit cost must not be negative")
	}
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var out ReceiveResult
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		res, err := s.deps.Guard.Do(ctx, in.IdempotencyKey, "ledger.receive", func(ctx context.Context) (any, error) {
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
	store, product, variantKey, err := s.loadItem(ctx, orgID, in.StoreID, in.ProductID, in.VariantID)
	if err != nil {
		return nil, err
	}

	qty, err := s.deps.Resolver.Resolve(ctx, orgID, uom.ResolveInput{
		Product:  product,
		Quantity: in.Quantity,
		UnitID:   in.UnitID,
		PackID:   in.PackID,
		Mode:     uom.ModeReceiving,
	})
	if err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, apperror.NewValidation("quantity must be positive")
	}

	snap, mv, err := s.ApplyMovement(ctx, col, store, MovementInput{
		ProductID:  product.ID,
		VariantKey: variantKey,
		Type:       MovementReceive,
		QtyDelta:   qty,
		Note:       in.Note,
	})
	if err != nil {
		return nil, err
	}

	lot, err := s.MirrorLot(ctx, store, mv, qty, in.ExpiryDate)
	if err != nil {
		return nil, err
	}

	if in.UnitCost != nil {
		if err := s.ApplyCost(ctx, orgID, product.ID, variantKey, snap.OnHand-qty, qty, *in.UnitCost); err != nil {
			return nil, err
		}
	}

	if err := s.deps.Audit.Write(ctx, audit.Entry{
		OrganizationID: orgID,
		ActorID:        appctx.GetUserID(ctx),
		Action:         "stock.receive",
		Entity:         "inventory_snapshot",
		EntityID:       snap.ID,
		Before:         map[string]any{"onHand": snap.OnHand - qty},
		After:          map[string]any{"onHand": snap.OnHand},
		RequestID:      appctx.GetRequestID(ctx),
	}); err != nil {
		return nil, err
	}

	res := &ReceiveResult{Snapshot: *snap, MovementID: mv.ID}
	if lot != nil {
		res.LotID = &lot.ID
	}
	return res, nil
}

// TransferInput moves stock between two stores of one organization.
type TransferInput struct {
	FromStoreID id.ID
	ToStoreID   id.ID
	ProductID   id.ID
	VariantID   *id.ID
	Quantity    decimal.Decimal
	UnitID      *id.ID
	ExpiryDate  *time.Time
	Note        string
}

// TransferResult reports both legs of an applied transfer.
type TransferResult struct {
	TransferID    id.ID    `json:"transferId"`
	OutMovementID id.ID    `json:"outMovementId"`
	InMovementID  id.ID    `json:"inMovementId"`
	FromSnapshot  Snapshot `json:"fromSnapshot"`
	ToSnapshot    Snapshot `json:"toSnapshot"`
}

// Transfer applies a TRANSFER_OUT at the source and a TRANSFER_IN at the
// destination within one transaction; both legs commit or neither does.
// The legs share a transfer reference id so they trace as one move.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if in.FromStoreID == in.ToStoreID {
		return nil, apperror.NewValidation("source and destination store must differ")
	}
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive")
	}
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var out TransferResult
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		fromStore, product, variantKey, err := s.loadItem(ctx, orgID, in.FromStoreID, in.ProductID, in.VariantID)
		if err != nil {
			return err
		}
		toStore, err := s.deps.Stores.GetByID(ctx, orgID, in.ToStoreID)
		if err != nil {
			return err
		}

		qty, err := s.deps.Resolver.Resolve(ctx, orgID, uom.ResolveInput{
			Product:  product,
			Quantity: in.Quantity,
			UnitID:   in.UnitID,
			Mode:     uom.ModeInventory,
		})
		if err != nil {
			return err
		}
		if qty <= 0 {
			return apperror.NewValidation("quantity must be positive")
		}

		transferID := id.New()
		ref := &Reference{Type: RefTransfer, ID: transferID}

		fromSnap, outMv, err := s.ApplyMovement(ctx, col, fromStore, MovementInput{
			ProductID:  product.ID,
			VariantKey: variantKey,
			Type:       MovementTransferOut,
			QtyDelta:   -qty,
			Reference:  ref,
			Note:       in.Note,
		})
		if err != nil {
			return err
		}
		if _, err := s.MirrorLot(ctx, fromStore, outMv, -qty, in.ExpiryDate); err != nil {
			return err
		}

		toSnap, inMv, err := s.ApplyMovement(ctx, col, toStore, MovementInput{
			ProductID:  product.ID,
			VariantKey: variantKey,
			Type:       MovementTransferIn,
			QtyDelta:   qty,
			Reference:  ref,
			Note:       in.Note,
		})
		if err != nil {
			return err
		}
		if _, err := s.MirrorLot(ctx, toStore, inMv, qty, in.ExpiryDate); err != nil {
			return err
		}

		if err := s.CheckLowStock(ctx, col, product, fromSnap); err != nil {
			return err
		}

		if err := s.deps.Audit.Write(ctx, audit.Entry{
			OrganizationID: orgID,
			ActorID:        appctx.GetUserID(ctx),
			Action:         "stock.transfer",
			Entity:         "stock_transfer",
			EntityID:       transferID,
			After: map[string]any{
				"fromStoreId": fromStore.ID,
				"toStoreId":   toStore.ID,
				"productId":   product.ID,
				"variantKey":  variantKey,
				"qty":         qty,
			},
			RequestID: appctx.GetRequestID(ctx),
		}); err != nil {
			return err
		}

		out = TransferResult{
			TransferID:    transferID,
			OutMovementID: outMv.ID,
			InMovementID:  inMv.ID,
			FromSnapshot:  *fromSnap,
			ToSnapshot:    *toSnap,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	col.Flush(ctx, s.deps.Publisher)
	return &out, nil
}

// RecomputeResult reports a snapshot rebuild.
type RecomputeResult struct {
	StoreID          id.ID `json:"storeId"`
	SnapshotsTouched int   `json:"snapshotsTouched"`
}

// Recompute rebuilds every snapshot of a store from the movement history
// plus open purchase-order remainders. Used for drift correction. Fails
// without writing when a recomputed on-hand would violate the store's
// negative-stock policy.
func (s *Service) Recompute(ctx context.Context, storeID id.ID) (*RecomputeResult, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var out RecomputeResult
	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		store, err := s.deps.Stores.GetByID(ctx, orgID, storeID)
		if err != nil {
			return err
		}

		sums, err := s.deps.Repo.SumMovements(ctx, orgID, storeID)
		if err != nil {
			return err
		}
		remainders, err := s.deps.OnOrder.OpenRemainders(ctx, orgID, storeID)
		if err != nil {
			return err
		}

		type pair struct {
			productID  id.ID
			variantKey string
		}
		onHand := make(map[pair]int64)
		onOrder := make(map[pair]int64)
		for _, sum := range sums {
			onHand[pair{sum.ProductID, sum.VariantKey}] = sum.Total
		}
		for _, rem := range remainders {
			onOrder[pair{rem.ProductID, rem.VariantKey}] += rem.Total
		}

		// Snapshots with no surviving movements go back to zero.
		existing, err := s.deps.Repo.ListSnapshots(ctx, orgID, storeID)
		if err != nil {
			return err
		}
		for _, snap := range existing {
			k := pair{snap.ProductID, snap.VariantKey}
			if _, ok := onHand[k]; !ok {
				onHand[k] = 0
			}
		}

		for k, total := range onHand {
			if total < 0 && !store.AllowNegativeStock {
				return apperror.NewInsufficientStock(k.productID.String(), 0, total).
					WithDetail("reason", "recomputed on-hand is negative").
					WithDetail("variant_key", k.variantKey)
			}
		}

		for k, total := range onHand {
			snap, err := s.deps.Repo.LockSnapshot(ctx, SnapshotKey{
				OrganizationID: orgID,
				StoreID:        storeID,
				ProductID:      k.productID,
				VariantKey:     k.variantKey,
			}, store.AllowNegativeStock)
			if err != nil {
				return err
			}
			snap.OnHand = total
			snap.OnOrder = onOrder[pair{k.productID, k.variantKey}]
			snap.UpdatedAt = time.Now().UTC()
			if err := s.deps.Repo.UpdateSnapshot(ctx, snap); err != nil {
				return err
			}
			out.SnapshotsTouched++
		}

		out.StoreID = storeID
		return s.deps.Audit.Write(ctx, audit.Entry{
			OrganizationID: orgID,
			ActorID:        appctx.GetUserID(ctx),
			Action:         "stock.recompute",
			Entity:         "store",
			EntityID:       storeID,
			After:          map[string]any{"snapshotsTouched": out.SnapshotsTouched},
			RequestID:      appctx.GetRequestID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Queries ---

// GetSnapshot reads the current counters for one triple. A never-touched
// triple reads as zero.
func (s *Service) GetSnapshot(ctx context.Context, storeID, productID id.ID, variantID *id.ID) (*Snapshot, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}
	key := SnapshotKey{
		OrganizationID: orgID,
		StoreID:        storeID,
		ProductID:      productID,
		VariantKey:     VariantKeyOf(variantID),
	}
	snap, err := s.deps.Repo.GetSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		// Lazily-created rows mean "no row" simply reads as zero.
		store, err := s.deps.Stores.GetByID(ctx, orgID, storeID)
		if err != nil {
			return nil, err
		}
		return &Snapshot{
			OrganizationID:     orgID,
			StoreID:            storeID,
			ProductID:          productID,
			VariantKey:         key.VariantKey,
			AllowNegativeStock: store.AllowNegativeStock,
		}, nil
	}
	return snap, nil
}

// ListSnapshots returns every snapshot of one store.
func (s *Service) ListSnapshots(ctx context.Context, storeID id.ID) ([]Snapshot, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}
	return s.deps.Repo.ListSnapshots(ctx, orgID, storeID)
}

// Movements returns filtered movement history for one store.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}
	filter.OrganizationID = orgID
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.deps.Repo.ListMovements(ctx, filter)
}

// --- Helpers ---

func callerOrg(ctx context.Context) (id.ID, error) {
	orgID := appctx.GetOrganizationID(ctx)
	if id.IsNil(orgID) {
		return id.Nil(), apperror.NewUnauthorized("missing caller identity")
	}
	return orgID, nil
}

// loadItem resolves the store, product and optional variant, verifying
// they all belong to the caller's organization and to each other.
func (s *Service) loadItem(ctx context.Context, orgID, storeID, productID id.ID, variantID *id.ID) (*catalog.Store, *catalog.Product, string, error) {
	store, err := s.deps.Stores.GetByID(ctx, orgID, storeID)
	if err != nil {
		return nil, nil, "", err
	}
	product, err := s.deps.Products.GetByID(ctx, orgID, productID)
	if err != nil {
		return nil, nil, "", err
	}
	if variantID != nil {
		variant, err := s.deps.Products.GetVariant(ctx, orgID, *variantID)
		if err != nil {
			return nil, nil, "", err
		}
		if variant.ProductID != product.ID {
			return nil, nil, "", apperror.NewValidation("variant belongs to a different product").
				WithDetail("variant_id", variant.ID.String()).
				WithDetail("product_id", product.ID.String())
		}
	}
	return store, product, VariantKeyOf(variantID), nil
}

// MirrorLot applies the movement's delta to the expiry lot sub-ledger
// when the store tracks lots, and backfills the movement's lot id.
// Callers holding their own transaction (receiving, counting) use this
// alongside ApplyMovement.
func (s *Service) MirrorLot(ctx context.Context, store *catalog.Store, mv *Movement, delta int64, expiry *time.Time) (*lots.StockLot, error) {
	lot, err := s.deps.Lots.Apply(ctx, lots.Adjustment{
		Store:      store,
		ProductID:  mv.ProductID,
		VariantKey: mv.VariantKey,
		QtyDelta:   delta,
		ExpiryDate: expiry,
	})
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, nil
	}
	if err := s.deps.Repo.SetMovementLot(ctx, mv.ID, lot.ID); err != nil {
		return nil, err
	}
	mv.LotID = &lot.ID
	return lot, nil
}
