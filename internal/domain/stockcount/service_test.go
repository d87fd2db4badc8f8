package stockcount_test

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/events"
	"restock/internal/domain/ledger"
	"restock/internal/domain/stockcount"
)

var codePattern = regexp.MustCompile(`^SC-\d{8}-[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{4}$`)

func TestCreateAllocatesCode(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	ctx := e.Ctx()

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)
	assert.Equal(t, stockcount.StatusDraft, count.Status)
	assert.Regexp(t, codePattern, count.Number)
	assert.Empty(t, count.Lines)
}

func TestCreateRetriesCodeCollisions(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	ctx := e.Ctx()

	e.Counts.FailInserts = 4
	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)
	assert.Regexp(t, codePattern, count.Number)

	// A fifth consecutive collision exhausts the retry budget.
	e.Counts.FailInserts = 5
	_, err = e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	requireCode(t, err, apperror.CodeDuplicate)
}

func TestScanBuildsLines(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	beans := e.AddProduct("Beans", "BEANS-01", 0)
	ctx := e.Ctx()

	// Seed stock so the expectation snapshot is nonzero.
	_, err := e.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "seed-0000001",
		StoreID:        store.ID,
		ProductID:      beans.ID,
		Quantity:       decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)

	// First scan: line created, expectation snapshotted, DRAFT flips.
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01"})
	require.NoError(t, err)
	assert.Equal(t, stockcount.StatusInProgress, count.Status)
	require.Len(t, count.Lines, 1)
	line := count.Lines[0]
	assert.Equal(t, int64(50), line.ExpectedOnHand)
	assert.Equal(t, int64(1), line.CountedQty)
	assert.Equal(t, int64(-49), line.DeltaQty)

	// Default delta is +1; an explicit delta adds more.
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count.Lines[0].CountedQty)

	five := int64(5)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01", Delta: &five})
	require.NoError(t, err)
	assert.Equal(t, int64(7), count.Lines[0].CountedQty)

	// Set overrides outright.
	set := int64(47)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01", Set: &set})
	require.NoError(t, err)
	assert.Equal(t, int64(47), count.Lines[0].CountedQty)
	assert.Equal(t, int64(-3), count.Lines[0].DeltaQty)
	require.Len(t, count.Lines, 1)
}

func TestScanPrecedenceAndAmbiguity(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	ctx := e.Ctx()

	// A product whose barcode equals another product's SKU: the barcode
	// tier wins.
	code := "4601234567890"
	beans := e.AddProduct("Beans", code, 0)
	milk := e.AddProduct("Milk", "MILK-01", 0)
	milk.Barcode = &code

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)

	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: code})
	require.NoError(t, err)
	require.Len(t, count.Lines, 1)
	assert.Equal(t, milk.ID, count.Lines[0].ProductID)

	// Two variants sharing a barcode are ambiguous.
	shared := "2000000000017"
	v1 := e.AddVariant(beans, "Beans 1kg", "BEANS-1KG")
	v1.Barcode = &shared
	v2 := e.AddVariant(beans, "Beans 5kg", "BEANS-5KG")
	v2.Barcode = &shared

	_, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: shared})
	requireCode(t, err, apperror.CodeScanAmbiguous)

	// Variant SKU is the last tier.
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-5KG"})
	require.NoError(t, err)
	require.Len(t, count.Lines, 2)
	require.NotNil(t, count.Lines[1].VariantID)
	assert.Equal(t, v2.ID, *count.Lines[1].VariantID)

	_, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "NO-SUCH-CODE"})
	requireCode(t, err, apperror.CodeNotFound)
}

func TestApplyVariance(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	beans := e.AddProduct("Beans", "BEANS-01", 0)
	ctx := e.Ctx()

	_, err := e.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "seed-0000001",
		StoreID:        store.ID,
		ProductID:      beans.ID,
		Quantity:       decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)
	set := int64(47)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01", Set: &set})
	require.NoError(t, err)

	res, err := e.Svc.Apply(ctx, stockcount.ApplyInput{
		IdempotencyKey: "apply-0000001",
		CountID:        count.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, stockcount.StatusApplied, res.Count.Status)
	assert.Equal(t, 1, res.AdjustedLines)

	snap := e.Snapshot(store.ID, beans.ID, ledger.BaseVariantKey)
	assert.Equal(t, int64(47), snap.OnHand)

	adjustments := e.Repo.MovementsOf(ledger.MovementAdjustment)
	require.Len(t, adjustments, 2) // seed + variance
	variance := adjustments[1]
	assert.Equal(t, int64(-3), variance.QtyDelta)
	require.NotNil(t, variance.RefType)
	assert.Equal(t, ledger.RefStockCount, *variance.RefType)
	assert.Equal(t, count.ID, *variance.RefID)

	applied := e.Publisher.ByType(events.TypeCountApplied)
	require.Len(t, applied, 1)
	payload := applied[0].Payload.(events.CountAppliedPayload)
	assert.Equal(t, count.Number, payload.Code)
	assert.Equal(t, 1, payload.AdjustedLines)
}

func TestApplyReReadsLiveOnHand(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	beans := e.AddProduct("Beans", "BEANS-01", 0)
	ctx := e.Ctx()

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)
	set := int64(10)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01", Set: &set})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count.Lines[0].ExpectedOnHand)

	// Stock moves between scan and apply.
	_, err = e.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "drift-0000001",
		StoreID:        store.ID,
		ProductID:      beans.ID,
		Quantity:       decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	res, err := e.Svc.Apply(ctx, stockcount.ApplyInput{
		IdempotencyKey: "apply-0000001",
		CountID:        count.ID,
	})
	require.NoError(t, err)

	// Counted 10 against a live 10: no variance, nothing adjusted.
	assert.Equal(t, 0, res.AdjustedLines)
	assert.Equal(t, int64(10), e.Snapshot(store.ID, beans.ID, ledger.BaseVariantKey).OnHand)
	assert.Len(t, e.Repo.MovementsOf(ledger.MovementAdjustment), 1)
}

func TestApplyIdempotentReplay(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	e.AddProduct("Beans", "BEANS-01", 0)
	ctx := e.Ctx()

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)
	set := int64(5)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01", Set: &set})
	require.NoError(t, err)

	in := stockcount.ApplyInput{IdempotencyKey: "apply-0000001", CountID: count.ID}
	first, err := e.Svc.Apply(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := e.Svc.Apply(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.AdjustedLines, second.AdjustedLines)
	assert.Len(t, e.Repo.Movements, 1)
}

func TestReApplyIsNoOp(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	e.AddProduct("Beans", "BEANS-01", 0)
	ctx := e.Ctx()

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)
	set := int64(5)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01", Set: &set})
	require.NoError(t, err)

	_, err = e.Svc.Apply(ctx, stockcount.ApplyInput{IdempotencyKey: "apply-0000001", CountID: count.ID})
	require.NoError(t, err)

	// Fresh key against an APPLIED count: current state, no new effects.
	res, err := e.Svc.Apply(ctx, stockcount.ApplyInput{IdempotencyKey: "apply-0000002", CountID: count.ID})
	require.NoError(t, err)
	assert.Equal(t, stockcount.StatusApplied, res.Count.Status)
	assert.Equal(t, 0, res.AdjustedLines)
	assert.Len(t, e.Repo.Movements, 1)
}

func TestApplyEmptyCountRejected(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	ctx := e.Ctx()

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)

	_, err = e.Svc.Apply(ctx, stockcount.ApplyInput{IdempotencyKey: "apply-0000001", CountID: count.ID})
	requireCode(t, err, apperror.CodeValidation)
}

func TestApplyLowStockAlert(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	beans := e.AddProduct("Beans", "BEANS-01", 5)
	ctx := e.Ctx()

	_, err := e.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "seed-0000001",
		StoreID:        store.ID,
		ProductID:      beans.ID,
		Quantity:       decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)
	set := int64(3)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01", Set: &set})
	require.NoError(t, err)

	_, err = e.Svc.Apply(ctx, stockcount.ApplyInput{IdempotencyKey: "apply-0000001", CountID: count.ID})
	require.NoError(t, err)

	alerts := e.Publisher.ByType(events.TypeLowStock)
	require.Len(t, alerts, 1)
	payload := alerts[0].Payload.(events.LowStockPayload)
	assert.Equal(t, int64(3), payload.OnHand)
	assert.Equal(t, int64(5), payload.MinStock)
}

func TestCancelLocksCount(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	e.AddProduct("Beans", "BEANS-01", 0)
	ctx := e.Ctx()

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)

	count, err = e.Svc.Cancel(ctx, count.ID)
	require.NoError(t, err)
	assert.Equal(t, stockcount.StatusCancelled, count.Status)

	// No ledger effect, and the count is closed for everything.
	assert.Empty(t, e.Repo.Movements)
	_, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01"})
	requireCode(t, err, apperror.CodeConflict)
	_, err = e.Svc.Apply(ctx, stockcount.ApplyInput{IdempotencyKey: "apply-0000001", CountID: count.ID})
	requireCode(t, err, apperror.CodeInvalidTransition)
	_, err = e.Svc.Cancel(ctx, count.ID)
	requireCode(t, err, apperror.CodeInvalidTransition)
}

func TestLineEditing(t *testing.T) {
	e := newEnv(t)
	store := e.AddStore("Main", false, false)
	e.AddProduct("Beans", "BEANS-01", 0)
	e.AddProduct("Rice", "RICE-01", 0)
	ctx := e.Ctx()

	count, err := e.Svc.Create(ctx, stockcount.CreateInput{StoreID: store.ID})
	require.NoError(t, err)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "BEANS-01"})
	require.NoError(t, err)
	count, err = e.Svc.Scan(ctx, stockcount.ScanInput{CountID: count.ID, Code: "RICE-01"})
	require.NoError(t, err)
	require.Len(t, count.Lines, 2)

	count, err = e.Svc.SetLine(ctx, count.ID, count.Lines[0].ID, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count.Lines[0].CountedQty)

	count, err = e.Svc.RemoveLine(ctx, count.ID, count.Lines[1].ID)
	require.NoError(t, err)
	require.Len(t, count.Lines, 1)

	_, err = e.Svc.SetLine(ctx, count.ID, id.New(), 1)
	requireCode(t, err, apperror.CodeNotFound)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}
