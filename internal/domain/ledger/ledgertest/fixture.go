// Package ledgertest provides in-memory fakes for the ledger's
// collaborators. Used by the ledger, purchase and stock count tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"restock/internal/core/apperror"
	appctx "restock/internal/core/context"
	"restock/internal/core/id"
	"restock/internal/domain/alerts"
	"restock/internal/domain/audit"
	"restock/internal/domain/catalog"
	"restock/internal/domain/events"
	"restock/internal/domain/idem"
	"restock/internal/domain/ledger"
	"restock/internal/domain/lots"
	"restock/internal/domain/uom"
)

// PassTx runs the function directly; the fakes have no rollback.
type PassTx struct{}

func (PassTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MemGuard is an in-memory idempotency guard keyed by (key, route, user).
type MemGuard struct {
	Records map[string]json.RawMessage
}

func NewMemGuard() *MemGuard {
	return &MemGuard{Records: make(map[string]json.RawMessage)}
}

func (g *MemGuard) Do(ctx context.Context, key, route string, fn func(ctx context.Context) (any, error)) (idem.Result, error) {
	k := strings.Join([]string{key, route, appctx.GetUserID(ctx).String()}, "|")
	if payload, ok := g.Records[k]; ok {
		return idem.Result{Payload: payload, Replayed: true}, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return idem.Result{}, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return idem.Result{}, apperror.NewInternal(err)
	}
	g.Records[k] = payload
	return idem.Result{Payload: payload, Replayed: false}, nil
}

// CapturePublisher records published events.
type CapturePublisher struct {
	Events []events.Event
}

func (p *CapturePublisher) Publish(ctx context.Context, event events.Event) {
	p.Events = append(p.Events, event)
}

// ByType returns the captured events of one type.
func (p *CapturePublisher) ByType(eventType string) []events.Event {
	var out []events.Event
	for _, e := range p.Events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// CaptureSink records audit entries.
type CaptureSink struct {
	Entries []audit.Entry
}

func (s *CaptureSink) Write(ctx context.Context, entry audit.Entry) error {
	s.Entries = append(s.Entries, entry)
	return nil
}

// --- Catalog fakes ---

type MemCatalog struct {
	Stores    map[id.ID]*catalog.Store
	Products  map[id.ID]*catalog.Product
	Variants  map[id.ID]*catalog.Variant
	Packs     map[id.ID]*catalog.Pack
	Suppliers map[id.ID]*catalog.Supplier
}

func NewMemCatalog() *MemCatalog {
	return &MemCatalog{
		Stores:    make(map[id.ID]*catalog.Store),
		Products:  make(map[id.ID]*catalog.Product),
		Variants:  make(map[id.ID]*catalog.Variant),
		Packs:     make(map[id.ID]*catalog.Pack),
		Suppliers: make(map[id.ID]*catalog.Supplier),
	}
}

func (c *MemCatalog) GetByID(ctx context.Context, orgID, storeID id.ID) (*catalog.Store, error) {
	s, ok := c.Stores[storeID]
	if !ok || s.OrganizationID != orgID {
		return nil, apperror.NewNotFound("store", storeID.String())
	}
	return s, nil
}

// ProductRepo exposes the product side of the catalog fake.
func (c *MemCatalog) ProductRepo() catalog.ProductRepository { return (*memProducts)(c) }

// PackRepo exposes the pack side of the catalog fake.
func (c *MemCatalog) PackRepo() catalog.PackRepository { return (*memPacks)(c) }

// SupplierRepo exposes the supplier side of the catalog fake.
func (c *MemCatalog) SupplierRepo() catalog.SupplierRepository { return (*memSuppliers)(c) }

type memProducts MemCatalog

func (c *memProducts) GetByID(ctx context.Context, orgID, productID id.ID) (*catalog.Product, error) {
	p, ok := c.Products[productID]
	if !ok || p.OrganizationID != orgID {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return p, nil
}

func (c *memProducts) GetVariant(ctx context.Context, orgID, variantID id.ID) (*catalog.Variant, error) {
	v, ok := c.Variants[variantID]
	if !ok || v.OrganizationID != orgID {
		return nil, apperror.NewNotFound("variant", variantID.String())
	}
	return v, nil
}

func (c *memProducts) FindByBarcode(ctx context.Context, orgID id.ID, code string) ([]catalog.ScanMatch, error) {
	var out []catalog.ScanMatch
	for _, p := range c.Products {
		if p.OrganizationID == orgID && p.Active && p.Barcode != nil && *p.Barcode == code {
			out = append(out, catalog.ScanMatch{ProductID: p.ID})
		}
	}
	for _, v := range c.Variants {
		if v.OrganizationID == orgID && v.Active && v.Barcode != nil && *v.Barcode == code {
			vid := v.ID
			out = append(out, catalog.ScanMatch{ProductID: v.ProductID, VariantID: &vid})
		}
	}
	return out, nil
}

func (c *memProducts) FindBySKU(ctx context.Context, orgID id.ID, code string) ([]catalog.ScanMatch, error) {
	var out []catalog.ScanMatch
	for _, p := range c.Products {
		if p.OrganizationID == orgID && p.Active && p.SKU == code {
			out = append(out, catalog.ScanMatch{ProductID: p.ID})
		}
	}
	return out, nil
}

func (c *memProducts) FindByVariantSKU(ctx context.Context, orgID id.ID, code string) ([]catalog.ScanMatch, error) {
	var out []catalog.ScanMatch
	for _, v := range c.Variants {
		if v.OrganizationID == orgID && v.Active && v.SKU == code {
			vid := v.ID
			out = append(out, catalog.ScanMatch{ProductID: v.ProductID, VariantID: &vid})
		}
	}
	return out, nil
}

type memPacks MemCatalog

func (c *memPacks) GetByID(ctx context.Context, orgID, packID id.ID) (*catalog.Pack, error) {
	p, ok := c.Packs[packID]
	if !ok || p.OrganizationID != orgID {
		return nil, apperror.NewNotFound("pack", packID.String())
	}
	return p, nil
}

type memSuppliers MemCatalog

func (c *memSuppliers) GetByID(ctx context.Context, orgID, supplierID id.ID) (*catalog.Supplier, error) {
	s, ok := c.Suppliers[supplierID]
	if !ok || s.OrganizationID != orgID {
		return nil, apperror.NewNotFound("supplier", supplierID.String())
	}
	return s, nil
}

// --- Ledger repository fake ---

type MemLedgerRepo struct {
	Snapshots map[ledger.SnapshotKey]*ledger.Snapshot
	Movements []*ledger.Movement
}

func NewMemLedgerRepo() *MemLedgerRepo {
	return &MemLedgerRepo{Snapshots: make(map[ledger.SnapshotKey]*ledger.Snapshot)}
}

func (r *MemLedgerRepo) LockSnapshot(ctx context.Context, key ledger.SnapshotKey, allowNegative bool) (*ledger.Snapshot, error) {
	snap, ok := r.Snapshots[key]
	if !ok {
		snap = &ledger.Snapshot{
			ID:             id.New(),
			OrganizationID: key.OrganizationID,
			StoreID:        key.StoreID,
			ProductID:      key.ProductID,
			VariantKey:     key.VariantKey,
		}
		r.Snapshots[key] = snap
	}
	snap.AllowNegativeStock = allowNegative
	cp := *snap
	return &cp, nil
}

func (r *MemLedgerRepo) UpdateSnapshot(ctx context.Context, snap *ledger.Snapshot) error {
	cp := *snap
	r.Snapshots[snap.Key()] = &cp
	return nil
}

func (r *MemLedgerRepo) GetSnapshot(ctx context.Context, key ledger.SnapshotKey) (*ledger.Snapshot, error) {
	snap, ok := r.Snapshots[key]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (r *MemLedgerRepo) ListSnapshots(ctx context.Context, orgID, storeID id.ID) ([]ledger.Snapshot, error) {
	var out []ledger.Snapshot
	for _, snap := range r.Snapshots {
		if snap.OrganizationID == orgID && snap.StoreID == storeID {
			out = append(out, *snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out, nil
}

func (r *MemLedgerRepo) InsertMovement(ctx context.Context, m *ledger.Movement) error {
	cp := *m
	r.Movements = append(r.Movements, &cp)
	return nil
}

func (r *MemLedgerRepo) SetMovementLot(ctx context.Context, movementID, lotID id.ID) error {
	for _, m := range r.Movements {
		if m.ID == movementID {
			lid := lotID
			m.LotID = &lid
			return nil
		}
	}
	return apperror.NewNotFound("stock movement", movementID.String())
}

func (r *MemLedgerRepo) ListMovements(ctx context.Context, filter ledger.MovementFilter) ([]ledger.Movement, error) {
	var out []ledger.Movement
	for _, m := range r.Movements {
		if m.OrganizationID != filter.OrganizationID || m.StoreID != filter.StoreID {
			continue
		}
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		if filter.VariantKey != nil && m.VariantKey != *filter.VariantKey {
			continue
		}
		if len(filter.Types) > 0 {
			found := false
			for _, t := range filter.Types {
				if m.Type == t {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *MemLedgerRepo) SumMovements(ctx context.Context, orgID, storeID id.ID) ([]ledger.MovementSum, error) {
	type key struct {
		productID  id.ID
		variantKey string
	}
	totals := make(map[key]int64)
	for _, m := range r.Movements {
		if m.OrganizationID == orgID && m.StoreID == storeID {
			totals[key{m.ProductID, m.VariantKey}] += m.QtyDelta
		}
	}
	var out []ledger.MovementSum
	for k, total := range totals {
		out = append(out, ledger.MovementSum{ProductID: k.productID, VariantKey: k.variantKey, Total: total})
	}
	return out, nil
}

// MovementsOf filters recorded movements by type.
func (r *MemLedgerRepo) MovementsOf(mt ledger.MovementType) []*ledger.Movement {
	var out []*ledger.Movement
	for _, m := range r.Movements {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

// --- Cost repository fake ---

type MemCostRepo struct {
	Costs map[string]*ledger.ProductCost
}

func NewMemCostRepo() *MemCostRepo {
	return &MemCostRepo{Costs: make(map[string]*ledger.ProductCost)}
}

func costKey(orgID, productID id.ID, variantKey string) string {
	return orgID.String() + "|" + productID.String() + "|" + variantKey
}

func (r *MemCostRepo) Get(ctx context.Context, orgID, productID id.ID, variantKey string) (*ledger.ProductCost, error) {
	c, ok := r.Costs[costKey(orgID, productID, variantKey)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *MemCostRepo) Upsert(ctx context.Context, cost *ledger.ProductCost) error {
	cp := *cost
	r.Costs[costKey(cost.OrganizationID, cost.ProductID, cost.VariantKey)] = &cp
	return nil
}

// --- Lot repository fake ---

type MemLotRepo struct {
	Lots []*lots.StockLot
}

func (r *MemLotRepo) Find(ctx context.Context, key lots.LotKey) (*lots.StockLot, error) {
	for _, l := range r.Lots {
		if l.OrganizationID == key.OrganizationID &&
			l.StoreID == key.StoreID &&
			l.ProductID == key.ProductID &&
			l.VariantKey == key.VariantKey &&
			sameExpiry(l.ExpiryDate, key.ExpiryDate) {
			return l, nil
		}
	}
	return nil, nil
}

func (r *MemLotRepo) Insert(ctx context.Context, lot *lots.StockLot) error {
	r.Lots = append(r.Lots, lot)
	return nil
}

func (r *MemLotRepo) Update(ctx context.Context, lot *lots.StockLot) error {
	return nil
}

func (r *MemLotRepo) List(ctx context.Context, orgID, storeID id.ID, productID *id.ID) ([]lots.StockLot, error) {
	var out []lots.StockLot
	for _, l := range r.Lots {
		if l.OrganizationID == orgID && l.StoreID == storeID {
			if productID == nil || l.ProductID == *productID {
				out = append(out, *l)
			}
		}
	}
	return out, nil
}

func sameExpiry(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// NoRemainders is an OnOrderSource with no open orders.
type NoRemainders struct{}

func (NoRemainders) OpenRemainders(ctx context.Context, orgID, storeID id.ID) ([]ledger.MovementSum, error) {
	return nil, nil
}

// --- Fixture ---

// Fixture is a fully wired ledger service over in-memory fakes.
type Fixture struct {
	OrgID  id.ID
	UserID id.ID

	Catalog   *MemCatalog
	Repo      *MemLedgerRepo
	Costs     *MemCostRepo
	LotRepo   *MemLotRepo
	Guard     *MemGuard
	Publisher *CapturePublisher
	Audit     *CaptureSink
	OnOrder   ledger.OnOrderSource

	Service *ledger.Service
}

// NewFixture builds the default fixture. Mutate the fakes before use.
func NewFixture() *Fixture {
	f := &Fixture{
		OrgID:     id.New(),
		UserID:    id.New(),
		Catalog:   NewMemCatalog(),
		Repo:      NewMemLedgerRepo(),
		Costs:     NewMemCostRepo(),
		LotRepo:   &MemLotRepo{},
		Guard:     NewMemGuard(),
		Publisher: &CapturePublisher{},
		Audit:     &CaptureSink{},
		OnOrder:   NoRemainders{},
	}
	f.build()
	return f
}

// WithOnOrder swaps the recompute on-order source and rewires the service.
func (f *Fixture) WithOnOrder(src ledger.OnOrderSource) *Fixture {
	f.OnOrder = src
	f.build()
	return f
}

func (f *Fixture) build() {
	evaluator, err := alerts.NewEvaluator()
	if err != nil {
		panic(err)
	}
	f.Service = ledger.NewService(ledger.Deps{
		Tx:        PassTx{},
		Repo:      f.Repo,
		Costs:     f.Costs,
		Stores:    f.Catalog,
		Products:  f.Catalog.ProductRepo(),
		Resolver:  uom.NewResolver(f.Catalog.PackRepo()),
		Lots:      lots.NewTracker(f.LotRepo),
		Guard:     f.Guard,
		OnOrder:   f.OnOrder,
		Alerts:    evaluator,
		Rules:     alerts.StaticRule(""),
		Publisher: f.Publisher,
		Audit:     f.Audit,
	})
}

// Ctx returns a context carrying the fixture's caller identity.
func (f *Fixture) Ctx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:         f.UserID,
		OrganizationID: f.OrgID,
	})
}

// AddStore registers a store in the fixture's organization.
func (f *Fixture) AddStore(name string, allowNegative, trackLots bool) *catalog.Store {
	s := &catalog.Store{
		OrganizationID:     f.OrgID,
		Name:               name,
		Code:               name,
		AllowNegativeStock: allowNegative,
		TrackExpiryLots:    trackLots,
	}
	s.ID = id.New()
	s.Version = 1
	f.Catalog.Stores[s.ID] = s
	return s
}

// AddProduct registers an active product in the fixture's organization.
func (f *Fixture) AddProduct(name, sku string, minStock int64) *catalog.Product {
	p := &catalog.Product{
		OrganizationID: f.OrgID,
		Name:           name,
		SKU:            sku,
		BaseUnitID:     id.New(),
		MinStock:       minStock,
		Active:         true,
	}
	p.ID = id.New()
	p.Version = 1
	f.Catalog.Products[p.ID] = p
	return p
}

// AddVariant registers an active variant of a product.
func (f *Fixture) AddVariant(product *catalog.Product, name, sku string) *catalog.Variant {
	v := &catalog.Variant{
		OrganizationID: f.OrgID,
		ProductID:      product.ID,
		Name:           name,
		SKU:            sku,
		Active:         true,
	}
	v.ID = id.New()
	v.Version = 1
	f.Catalog.Variants[v.ID] = v
	return v
}

// AddSupplier registers an active supplier.
func (f *Fixture) AddSupplier(name string) *catalog.Supplier {
	s := &catalog.Supplier{
		OrganizationID: f.OrgID,
		Name:           name,
		Code:           name,
		Active:         true,
	}
	s.ID = id.New()
	s.Version = 1
	f.Catalog.Suppliers[s.ID] = s
	return s
}

// Snapshot reads the raw stored snapshot for assertions.
func (f *Fixture) Snapshot(storeID, productID id.ID, variantKey string) *ledger.Snapshot {
	return f.Repo.Snapshots[ledger.SnapshotKey{
		OrganizationID: f.OrgID,
		StoreID:        storeID,
		ProductID:      productID,
		VariantKey:     variantKey,
	}]
}
