package lots

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/catalog"
)

type memLotRepo struct {
	lots []*StockLot
}

func sameExpiry(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (m *memLotRepo) Find(ctx context.Context, key LotKey) (*StockLot, error) {
	for _, l := range m.lots {
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

func (m *memLotRepo) Insert(ctx context.Context, lot *StockLot) error {
	m.lots = append(m.lots, lot)
	return nil
}

func (m *memLotRepo) Update(ctx context.Context, lot *StockLot) error {
	return nil
}

func (m *memLotRepo) List(ctx context.Context, orgID, storeID id.ID, productID *id.ID) ([]StockLot, error) {
	var out []StockLot
	for _, l := range m.lots {
		if l.OrganizationID == orgID && l.StoreID == storeID {
			if productID == nil || l.ProductID == *productID {
				out = append(out, *l)
			}
		}
	}
	return out, nil
}

func trackingStore(allowNegative bool) *catalog.Store {
	s := &catalog.Store{
		OrganizationID:     id.New(),
		Name:               "Main",
		TrackExpiryLots:    true,
		AllowNegativeStock: allowNegative,
	}
	s.ID = id.New()
	return s
}

func TestApplyNoOpWhenStoreDoesNotTrackLots(t *testing.T) {
	store := trackingStore(false)
	store.TrackExpiryLots = false

	repo := &memLotRepo{}
	tracker := NewTracker(repo)

	lot, err := tracker.Apply(context.Background(), Adjustment{
		Store: store, ProductID: id.New(), VariantKey: "BASE", QtyDelta: 10,
	})
	require.NoError(t, err)
	assert.Nil(t, lot)
	assert.Empty(t, repo.lots)
}

func TestApplyCreatesLotOnPositiveDelta(t *testing.T) {
	store := trackingStore(false)
	repo := &memLotRepo{}
	tracker := NewTracker(repo)
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	productID := id.New()

	lot, err := tracker.Apply(context.Background(), Adjustment{
		Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: 24, ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	require.NotNil(t, lot)
	assert.Equal(t, int64(24), lot.OnHandQty)

	// Same key accumulates, separate expiry opens a new lot.
	lot2, err := tracker.Apply(context.Background(), Adjustment{
		Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: 6, ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, lot.ID, lot2.ID)
	assert.Equal(t, int64(30), lot2.OnHandQty)

	other := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	lot3, err := tracker.Apply(context.Background(), Adjustment{
		Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: 12, ExpiryDate: &other,
	})
	require.NoError(t, err)
	assert.NotEqual(t, lot.ID, lot3.ID)
	assert.Len(t, repo.lots, 2)
}

func TestApplyNilExpiryIsAValidKey(t *testing.T) {
	store := trackingStore(false)
	repo := &memLotRepo{}
	tracker := NewTracker(repo)
	productID := id.New()
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	noExpiry, err := tracker.Apply(context.Background(), Adjustment{
		Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: 5,
	})
	require.NoError(t, err)

	dated, err := tracker.Apply(context.Background(), Adjustment{
		Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: 5, ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	assert.NotEqual(t, noExpiry.ID, dated.ID)
}

func TestApplyDecrementAgainstMissingLotFails(t *testing.T) {
	store := trackingStore(false)
	tracker := NewTracker(&memLotRepo{})

	_, err := tracker.Apply(context.Background(), Adjustment{
		Store: store, ProductID: id.New(), VariantKey: "BASE", QtyDelta: -1,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestApplyNegativeStockPolicy(t *testing.T) {
	productID := id.New()
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("disallowed", func(t *testing.T) {
		store := trackingStore(false)
		tracker := NewTracker(&memLotRepo{})

		_, err := tracker.Apply(context.Background(), Adjustment{
			Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: 10, ExpiryDate: &expiry,
		})
		require.NoError(t, err)

		_, err = tracker.Apply(context.Background(), Adjustment{
			Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: -11, ExpiryDate: &expiry,
		})
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	})

	t.Run("allowed", func(t *testing.T) {
		store := trackingStore(true)
		tracker := NewTracker(&memLotRepo{})

		_, err := tracker.Apply(context.Background(), Adjustment{
			Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: 10, ExpiryDate: &expiry,
		})
		require.NoError(t, err)

		lot, err := tracker.Apply(context.Background(), Adjustment{
			Store: store, ProductID: productID, VariantKey: "BASE", QtyDelta: -11, ExpiryDate: &expiry,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(-1), lot.OnHandQty)
	})
}

func TestApplyZeroDeltaIsNoOp(t *testing.T) {
	store := trackingStore(false)
	repo := &memLotRepo{}
	tracker := NewTracker(repo)

	lot, err := tracker.Apply(context.Background(), Adjustment{
		Store: store, ProductID: id.New(), VariantKey: "BASE", QtyDelta: 0,
	})
	require.NoError(t, err)
	assert.Nil(t, lot)
	assert.Empty(t, repo.lots)
}
