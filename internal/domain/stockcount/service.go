package stockcount

import (
	"context"
	"time"

	"restock/internal/core/apperror"
	appctx "restock/internal/core/context"
	"restock/internal/core/entity"
	"restock/internal/core/id"
	"restock/internal/core/tx"
	"restock/internal/domain/audit"
	"restock/internal/domain/catalog"
	"restock/internal/domain/events"
	"restock/internal/domain/idem"
	"restock/internal/domain/ledger"
)

// Deps wires the stock count service.
type Deps struct {
	Tx        tx.Manager
	Repo      Repository
	Stores    catalog.StoreRepository
	Products  catalog.ProductRepository
	Ledger    *ledger.Service
	Guard     idem.Guard
	Publisher events.Publisher
	Audit     audit.Sink
}

// Service drives counting sessions. Variance application goes through
// the ledger's movement primitive; counts never touch on-order, so
// cancellation has no ledger effect.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// CreateInput starts a counting session.
type CreateInput struct {
	StoreID id.ID
	Comment string
}

// Create opens a DRAFT count with a fresh code, retrying code
// collisions a bounded number of times.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Count, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var count *Count
	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		store, err := s.deps.Stores.GetByID(ctx, orgID, in.StoreID)
		if err != nil {
			return err
		}

		count = &Count{
			Document: entity.NewDocument(orgID),
			StoreID:  store.ID,
			Status:   StatusDraft,
		}
		count.Comment = in.Comment
		count.CreatedBy = appctx.GetUserID(ctx).String()

		for attempt := 0; ; attempt++ {
			count.Number = newCode(time.Now())
			err := s.deps.Repo.Insert(ctx, count)
			if err == nil {
				break
			}
			appErr, ok := apperror.AsAppError(err)
			if !ok || appErr.Code != apperror.CodeDuplicate || attempt+1 >= maxCodeAttempts {
				return err
			}
		}

		return s.deps.Audit.Write(ctx, audit.Entry{
			OrganizationID: orgID,
			ActorID:        appctx.GetUserID(ctx),
			Action:         "stockCount.create",
			Entity:         "stock_count",
			EntityID:       count.ID,
			After:          map[string]any{"number": count.Number, "status": count.Status},
			RequestID:      appctx.GetRequestID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}
	return count, nil
}

// ScanInput records one scan against a count. Code is matched against
// product barcodes first, then product SKUs, then variant SKUs. Delta
// defaults to +1; Set overrides the counted quantity outright.
type ScanInput struct {
	CountID id.ID
	Code    string
	Delta   *int64
	Set     *int64
}

// Scan adds or updates the line for the scanned item. The first line
// moves the count from DRAFT to IN_PROGRESS.
func (s *Service) Scan(ctx context.Context, in ScanInput) (*Count, error) {
	if in.Code == "" {
		return nil, apperror.NewValidation("scan code is required")
	}
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var count *Count
	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		count, err = s.deps.Repo.GetForUpdate(ctx, orgID, in.CountID)
		if err != nil {
			return err
		}
		if count.Status.Terminal() {
			return apperror.NewConflict("count is closed").
				WithDetail("count_id", count.ID.String()).
				WithDetail("status", string(count.Status))
		}

		match, err := s.resolveScan(ctx, orgID, in.Code)
		if err != nil {
			return err
		}

		line := count.LineFor(match.ProductID, match.VariantID)
		if line == nil {
			// First touch: snapshot the live on-hand as the expectation.
			snap, err := s.deps.Ledger.GetSnapshot(ctx, count.StoreID, match.ProductID, match.VariantID)
			if err != nil {
				return err
			}
			line = &Line{
				ID:             id.New(),
				CountID:        count.ID,
				ProductID:      match.ProductID,
				VariantID:      match.VariantID,
				ExpectedOnHand: snap.OnHand,
			}
			applyScanQty(line, in)
			if err := s.deps.Repo.InsertLine(ctx, line); err != nil {
				return err
			}
			count.Lines = append(count.Lines, *line)
		} else {
			applyScanQty(line, in)
			if err := s.deps.Repo.UpdateLine(ctx, line); err != nil {
				return err
			}
		}

		if count.Status == StatusDraft {
			count.Status = StatusInProgress
		}
		count.Touch()
		count.UpdatedBy = appctx.GetUserID(ctx).String()
		return s.deps.Repo.UpdateHeader(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	return count, nil
}

func applyScanQty(line *Line, in ScanInput) {
	switch {
	case in.Set != nil:
		line.CountedQty = *in.Set
	case in.Delta != nil:
		line.CountedQty += *in.Delta
	default:
		line.CountedQty++
	}
	line.DeltaQty = line.CountedQty - line.ExpectedOnHand
}

// resolveScan matches a scanned code one tier at a time. More than one
// active match within a tier is ambiguous; an unambiguous match in an
// earlier tier shadows all later tiers.
func (s *Service) resolveScan(ctx context.Context, orgID id.ID, code string) (catalog.ScanMatch, error) {
	tiers := []func(context.Context, id.ID, string) ([]catalog.ScanMatch, error){
		s.deps.Products.FindByBarcode,
		s.deps.Products.FindBySKU,
		s.deps.Products.FindByVariantSKU,
	}
	for _, find := range tiers {
		matches, err := find(ctx, orgID, code)
		if err != nil {
			return catalog.ScanMatch{}, err
		}
		if len(matches) > 1 {
			return catalog.ScanMatch{}, apperror.NewScanAmbiguous(code, len(matches))
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
	}
	return catalog.ScanMatch{}, apperror.NewNotFound("scan code", code)
}

// SetLine overrides a line's counted quantity by hand.
func (s *Service) SetLine(ctx context.Context, countID, lineID id.ID, countedQty int64) (*Count, error) {
	return s.mutateOpen(ctx, countID, func(ctx context.Context, count *Count) error {
		line := count.FindLine(lineID)
		if line == nil {
			return apperror.NewNotFound("stock count line", lineID)
		}
		line.CountedQty = countedQty
		line.DeltaQty = line.CountedQty - line.ExpectedOnHand
		return s.deps.Repo.UpdateLine(ctx, line)
	})
}

// RemoveLine drops a line from an open count.
func (s *Service) RemoveLine(ctx context.Context, countID, lineID id.ID) (*Count, error) {
	return s.mutateOpen(ctx, countID, func(ctx context.Context, count *Count) error {
		if count.FindLine(lineID) == nil {
			return apperror.NewNotFound("stock count line", lineID)
		}
		if err := s.deps.Repo.DeleteLine(ctx, count.ID, lineID); err != nil {
			return err
		}
		kept := count.Lines[:0]
		for i := range count.Lines {
			if count.Lines[i].ID != lineID {
				kept = append(kept, count.Lines[i])
			}
		}
		count.Lines = kept
		return nil
	})
}

// ApplyInput applies a count's variance to the ledger.
type ApplyInput struct {
	IdempotencyKey string
	CountID        id.ID
}

// ApplyResult reports the applied count.
type ApplyResult struct {
	Count         Count `json:"count"`
	AdjustedLines int   `json:"adjustedLines"`

	Replayed bool `json:"-"`
}

// Apply re-reads each line's live on-hand, recomputes the variance and
// issues one ADJUSTMENT per nonzero delta, then marks the count APPLIED.
// Idempotency-guarded; applying an already-APPLIED count is a no-op.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	if err := idem.ValidateKey(in.IdempotencyKey); err != nil {
		return nil, err
	}
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var out ApplyResult
	col := &events.Collector{}

	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		res, err := s.deps.Guard.Do(ctx, in.IdempotencyKey, "stockcount.apply", func(ctx context.Context) (any, error) {
			return s.applyTx(ctx, col, orgID, in.CountID)
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

func (s *Service) applyTx(ctx context.Context, col *events.Collector, orgID, countID id.ID) (*ApplyResult, error) {
	count, err := s.deps.Repo.GetForUpdate(ctx, orgID, countID)
	if err != nil {
		return nil, err
	}
	if count.Status == StatusApplied {
		return &ApplyResult{Count: *count}, nil
	}
	if count.Status == StatusCancelled {
		return nil, apperror.NewInvalidTransition(string(count.Status), string(StatusApplied))
	}
	if len(count.Lines) == 0 {
		return nil, apperror.NewValidation("count has no lines").
			WithDetail("count_id", count.ID.String())
	}

	store, err := s.deps.Stores.GetByID(ctx, orgID, count.StoreID)
	if err != nil {
		return nil, err
	}

	adjusted := 0
	for i := range count.Lines {
		line := &count.Lines[i]

		// Freshness check: the ledger may have moved since the scan.
		live, err := s.deps.Ledger.GetSnapshot(ctx, count.StoreID, line.ProductID, line.VariantID)
		if err != nil {
			return nil, err
		}
		line.ExpectedOnHand = live.OnHand
		line.DeltaQty = line.CountedQty - live.OnHand
		if err := s.deps.Repo.UpdateLine(ctx, line); err != nil {
			return nil, err
		}
		if line.DeltaQty == 0 {
			continue
		}

		snap, _, err := s.deps.Ledger.ApplyMovement(ctx, col, store, ledger.MovementInput{
			ProductID:  line.ProductID,
			VariantKey: ledger.VariantKeyOf(line.VariantID),
			Type:       ledger.MovementAdjustment,
			QtyDelta:   line.DeltaQty,
			Reference:  &ledger.Reference{Type: ledger.RefStockCount, ID: count.ID},
			Note:       "stock count " + count.Number,
		})
		if err != nil {
			return nil, err
		}
		adjusted++

		if err := s.deps.Audit.Write(ctx, audit.Entry{
			OrganizationID: orgID,
			ActorID:        appctx.GetUserID(ctx),
			Action:         "stockCount.adjust",
			Entity:         "inventory_snapshot",
			EntityID:       snap.ID,
			Before:         map[string]any{"onHand": snap.OnHand - line.DeltaQty},
			After:          map[string]any{"onHand": snap.OnHand},
			RequestID:      appctx.GetRequestID(ctx),
		}); err != nil {
			return nil, err
		}

		if line.DeltaQty < 0 {
			product, err := s.deps.Products.GetByID(ctx, orgID, line.ProductID)
			if err != nil {
				return nil, err
			}
			if err := s.deps.Ledger.CheckLowStock(ctx, col, product, snap); err != nil {
				return nil, err
			}
		}
	}

	count.Status = StatusApplied
	count.Touch()
	count.UpdatedBy = appctx.GetUserID(ctx).String()
	if err := s.deps.Repo.UpdateHeader(ctx, count); err != nil {
		return nil, err
	}

	col.Add(events.New(events.TypeCountApplied, orgID, events.CountAppliedPayload{
		CountID:       count.ID,
		Code:          count.Number,
		StoreID:       count.StoreID,
		AdjustedLines: adjusted,
	}))

	if err := s.deps.Audit.Write(ctx, audit.Entry{
		OrganizationID: orgID,
		ActorID:        appctx.GetUserID(ctx),
		Action:         "stockCount.apply",
		Entity:         "stock_count",
		EntityID:       count.ID,
		After:          map[string]any{"status": count.Status, "adjustedLines": adjusted},
		RequestID:      appctx.GetRequestID(ctx),
	}); err != nil {
		return nil, err
	}

	return &ApplyResult{Count: *count, AdjustedLines: adjusted}, nil
}

// Cancel closes an open count. Counts never touch on-order, so there is
// nothing to reverse.
func (s *Service) Cancel(ctx context.Context, countID id.ID) (*Count, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var count *Count
	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		count, err = s.deps.Repo.GetForUpdate(ctx, orgID, countID)
		if err != nil {
			return err
		}
		if count.Status.Terminal() {
			return apperror.NewInvalidTransition(string(count.Status), string(StatusCancelled))
		}
		count.Status = StatusCancelled
		count.Touch()
		count.UpdatedBy = appctx.GetUserID(ctx).String()
		if err := s.deps.Repo.UpdateHeader(ctx, count); err != nil {
			return err
		}
		return s.deps.Audit.Write(ctx, audit.Entry{
			OrganizationID: orgID,
			ActorID:        appctx.GetUserID(ctx),
			Action:         "stockCount.cancel",
			Entity:         "stock_count",
			EntityID:       count.ID,
			After:          map[string]any{"status": count.Status},
			RequestID:      appctx.GetRequestID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}
	return count, nil
}

// Get loads one count with its lines.
func (s *Service) Get(ctx context.Context, countID id.ID) (*Count, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}
	return s.deps.Repo.GetByID(ctx, orgID, countID)
}

// List returns counts matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Count, error) {
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

func (s *Service) mutateOpen(ctx context.Context, countID id.ID, fn func(ctx context.Context, count *Count) error) (*Count, error) {
	orgID, err := callerOrg(ctx)
	if err != nil {
		return nil, err
	}

	var count *Count
	err = s.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		count, err = s.deps.Repo.GetForUpdate(ctx, orgID, countID)
		if err != nil {
			return err
		}
		if count.Status.Terminal() {
			return apperror.NewConflict("count is closed").
				WithDetail("count_id", count.ID.String()).
				WithDetail("status", string(count.Status))
		}
		if err := fn(ctx, count); err != nil {
			return err
		}
		count.Touch()
		count.UpdatedBy = appctx.GetUserID(ctx).String()
		return s.deps.Repo.UpdateHeader(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	return count, nil
}

func callerOrg(ctx context.Context) (id.ID, error) {
	orgID := appctx.GetOrganizationID(ctx)
	if id.IsNil(orgID) {
		return id.Nil(), apperror.NewUnauthorized("missing caller identity")
	}
	return orgID, nil
}
