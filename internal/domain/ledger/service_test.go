package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/core/types"
	"restock/internal/domain/events"
	"restock/internal/domain/ledger"
	"restock/internal/domain/ledger/ledgertest"
)

func TestAdjustMovesOnHand(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)
	ctx := f.Ctx()

	res, err := f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Snapshot.OnHand)
	assert.False(t, res.Replayed)

	res2, err := f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0002",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(-4),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res2.Snapshot.OnHand)

	snap := f.Snapshot(store.ID, product.ID, ledger.BaseVariantKey)
	require.NotNil(t, snap)
	assert.Equal(t, int64(6), snap.OnHand)
	assert.Len(t, f.Repo.Movements, 2)

	// Every mutation audits within the transaction.
	assert.Len(t, f.Audit.Entries, 2)
	assert.Equal(t, "stock.adjust", f.Audit.Entries[0].Action)
}

func TestSnapshotEqualsSumOfDeltas(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", true, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)
	ctx := f.Ctx()

	deltas := []int64{10, -3, 25, -7, -20, 4}
	var want int64
	for i, d := range deltas {
		_, err := f.Service.Adjust(ctx, ledger.AdjustInput{
			IdempotencyKey: "adjust-seq-" + string(rune('a'+i)) + "0000000",
			StoreID:        store.ID,
			ProductID:      product.ID,
			Quantity:       decimal.NewFromInt(d),
		})
		require.NoError(t, err)
		want += d
	}

	snap := f.Snapshot(store.ID, product.ID, ledger.BaseVariantKey)
	assert.Equal(t, want, snap.OnHand)

	// Recompute over the full movement log reproduces the same value.
	snap.OnHand = 999 // simulate drift
	_, err := f.Service.Recompute(ctx, store.ID)
	require.NoError(t, err)
	assert.Equal(t, want, f.Snapshot(store.ID, product.ID, ledger.BaseVariantKey).OnHand)
}

func TestAdjustNegativeStockGuard(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)
	ctx := f.Ctx()

	_, err := f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	_, err = f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0002",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(-6),
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)

	// Snapshot unchanged, no second movement.
	assert.Equal(t, int64(5), f.Snapshot(store.ID, product.ID, ledger.BaseVariantKey).OnHand)
	assert.Len(t, f.Repo.Movements, 1)
}

func TestAdjustAllowedNegativeStock(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", true, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)

	res, err := f.Service.Adjust(f.Ctx(), ledger.AdjustInput{
		IdempotencyKey: "adjust-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(-6),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-6), res.Snapshot.OnHand)
}

func TestAdjustIdempotentReplay(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)
	ctx := f.Ctx()

	in := ledger.AdjustInput{
		IdempotencyKey: "retry-key-001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(7),
	}

	first, err := f.Service.Adjust(ctx, in)
	require.NoError(t, err)
	second, err := f.Service.Adjust(ctx, in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Snapshot, second.Snapshot)
	assert.Equal(t, first.MovementID, second.MovementID)

	// One set of effects only.
	assert.Len(t, f.Repo.Movements, 1)
	assert.Equal(t, int64(7), f.Snapshot(store.ID, product.ID, ledger.BaseVariantKey).OnHand)
}

func TestAdjustRejectsShortIdempotencyKey(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)

	_, err := f.Service.Adjust(f.Ctx(), ledger.AdjustInput{
		IdempotencyKey: "short",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(1),
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestAdjustMirrorsLot(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, true)
	product := f.AddProduct("Yogurt", "YOG-01", 0)
	expiry := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	res, err := f.Service.Adjust(f.Ctx(), ledger.AdjustInput{
		IdempotencyKey: "adjust-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(12),
		ExpiryDate:     &expiry,
	})
	require.NoError(t, err)
	require.NotNil(t, res.LotID)

	// Movement carries the backfilled lot reference.
	require.Len(t, f.Repo.Movements, 1)
	require.NotNil(t, f.Repo.Movements[0].LotID)
	assert.Equal(t, *res.LotID, *f.Repo.Movements[0].LotID)

	require.Len(t, f.LotRepo.Lots, 1)
	assert.Equal(t, int64(12), f.LotRepo.Lots[0].OnHandQty)
}

func TestAdjustPublishesLowStockEvent(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 5)
	ctx := f.Ctx()

	_, err := f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Empty(t, f.Publisher.ByType(events.TypeLowStock))

	_, err = f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0002",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(-6),
	})
	require.NoError(t, err)

	low := f.Publisher.ByType(events.TypeLowStock)
	require.Len(t, low, 1)
	payload, ok := low[0].Payload.(events.LowStockPayload)
	require.True(t, ok)
	assert.Equal(t, int64(4), payload.OnHand)
	assert.Equal(t, int64(5), payload.MinStock)
}

func TestReceiveUpdatesWeightedAverageCost(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)
	ctx := f.Ctx()

	cost1 := types.MustMoney("2.00")
	_, err := f.Service.Receive(ctx, ledger.ReceiveInput{
		IdempotencyKey: "receive-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(10),
		UnitCost:       &cost1,
	})
	require.NoError(t, err)

	cost2 := types.MustMoney("4.00")
	_, err = f.Service.Receive(ctx, ledger.ReceiveInput{
		IdempotencyKey: "receive-0002",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(10),
		UnitCost:       &cost2,
	})
	require.NoError(t, err)

	basis, err := f.Costs.Get(ctx, f.OrgID, product.ID, ledger.BaseVariantKey)
	require.NoError(t, err)
	require.NotNil(t, basis)
	// (10*2 + 10*4) / 20 = 3
	assert.True(t, basis.AvgCost.Equal(types.MustMoney("3")), "got %s", basis.AvgCost)
}

func TestReceiveWithoutCostLeavesBasisUntouched(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)

	_, err := f.Service.Receive(f.Ctx(), ledger.ReceiveInput{
		IdempotencyKey: "receive-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Empty(t, f.Costs.Costs)
}

func TestReceiveRejectsNonPositiveQuantity(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)

	_, err := f.Service.Receive(f.Ctx(), ledger.ReceiveInput{
		IdempotencyKey: "receive-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(-5),
	})
	require.Error(t, err)
}

func TestTransferBothLegs(t *testing.T) {
	f := ledgertest.NewFixture()
	src := f.AddStore("Central", false, false)
	dst := f.AddStore("Branch", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)
	ctx := f.Ctx()

	_, err := f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0001",
		StoreID:        src.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	res, err := f.Service.Transfer(ctx, ledger.TransferInput{
		FromStoreID: src.ID,
		ToStoreID:   dst.ID,
		ProductID:   product.ID,
		Quantity:    decimal.NewFromInt(8),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.FromSnapshot.OnHand)
	assert.Equal(t, int64(8), res.ToSnapshot.OnHand)

	outs := f.Repo.MovementsOf(ledger.MovementTransferOut)
	ins := f.Repo.MovementsOf(ledger.MovementTransferIn)
	require.Len(t, outs, 1)
	require.Len(t, ins, 1)
	assert.Equal(t, -outs[0].QtyDelta, ins[0].QtyDelta)

	// Both legs share one transfer reference.
	require.NotNil(t, outs[0].RefID)
	require.NotNil(t, ins[0].RefID)
	assert.Equal(t, *outs[0].RefID, *ins[0].RefID)
	assert.Equal(t, ledger.RefTransfer, *outs[0].RefType)
}

func TestTransferDestinationMissingLeavesSourceUntouched(t *testing.T) {
	f := ledgertest.NewFixture()
	src := f.AddStore("Central", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)
	ctx := f.Ctx()

	_, err := f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0001",
		StoreID:        src.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	before := len(f.Repo.Movements)

	_, err = f.Service.Transfer(ctx, ledger.TransferInput{
		FromStoreID: src.ID,
		ToStoreID:   f.OrgID, // not a store
		ProductID:   product.ID,
		Quantity:    decimal.NewFromInt(8),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	// Neither leg persisted.
	assert.Len(t, f.Repo.Movements, before)
	assert.Equal(t, int64(20), f.Snapshot(src.ID, product.ID, ledger.BaseVariantKey).OnHand)
}

func TestTransferRejectsSameStore(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)

	_, err := f.Service.Transfer(f.Ctx(), ledger.TransferInput{
		FromStoreID: store.ID,
		ToStoreID:   store.ID,
		ProductID:   product.ID,
		Quantity:    decimal.NewFromInt(1),
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestTransferInsufficientSource(t *testing.T) {
	f := ledgertest.NewFixture()
	src := f.AddStore("Central", false, false)
	dst := f.AddStore("Branch", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)

	_, err := f.Service.Transfer(f.Ctx(), ledger.TransferInput{
		FromStoreID: src.ID,
		ToStoreID:   dst.ID,
		ProductID:   product.ID,
		Quantity:    decimal.NewFromInt(3),
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
}

func TestRecomputeIncludesOnOrderRemainders(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)
	ctx := f.Ctx()

	f.WithOnOrder(staticRemainders{{ProductID: product.ID, VariantKey: ledger.BaseVariantKey, Total: 30}})

	_, err := f.Service.Adjust(ctx, ledger.AdjustInput{
		IdempotencyKey: "adjust-0001",
		StoreID:        store.ID,
		ProductID:      product.ID,
		Quantity:       decimal.NewFromInt(15),
	})
	require.NoError(t, err)

	_, err = f.Service.Recompute(ctx, store.ID)
	require.NoError(t, err)

	snap := f.Snapshot(store.ID, product.ID, ledger.BaseVariantKey)
	assert.Equal(t, int64(15), snap.OnHand)
	assert.Equal(t, int64(30), snap.OnOrder)
}

type staticRemainders []ledger.MovementSum

func (s staticRemainders) OpenRemainders(ctx context.Context, orgID, storeID id.ID) ([]ledger.MovementSum, error) {
	return s, nil
}

func TestGetSnapshotZeroWhenNeverTouched(t *testing.T) {
	f := ledgertest.NewFixture()
	store := f.AddStore("Main", false, false)
	product := f.AddProduct("Beans", "BEANS-01", 0)

	snap, err := f.Service.GetSnapshot(f.Ctx(), store.ID, product.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.OnHand)
	assert.Equal(t, int64(0), snap.OnOrder)
}
