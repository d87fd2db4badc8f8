package uom

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/catalog"
)

type fakePackRepo struct {
	packs map[id.ID]*catalog.Pack
}

func (f *fakePackRepo) GetByID(ctx context.Context, orgID, packID id.ID) (*catalog.Pack, error) {
	p, ok := f.packs[packID]
	if !ok || p.OrganizationID != orgID {
		return nil, apperror.NewNotFound("pack", packID.String())
	}
	return p, nil
}

func TestResolve(t *testing.T) {
	orgID := id.New()
	baseUnitID := id.New()
	otherUnitID := id.New()

	product := &catalog.Product{
		OrganizationID: orgID,
		BaseUnitID:     baseUnitID,
	}
	product.ID = id.New()

	casePack := &catalog.Pack{
		OrganizationID:    orgID,
		ProductID:         product.ID,
		Name:              "Case of 24",
		Multiplier:        24,
		AllowInPurchasing: true,
		AllowInReceiving:  false,
	}
	casePack.ID = id.New()

	foreignPack := &catalog.Pack{
		OrganizationID:    orgID,
		ProductID:         id.New(),
		Multiplier:        6,
		AllowInPurchasing: true,
		AllowInReceiving:  true,
	}
	foreignPack.ID = id.New()

	repo := &fakePackRepo{packs: map[id.ID]*catalog.Pack{
		casePack.ID:    casePack,
		foreignPack.ID: foreignPack,
	}}
	resolver := NewResolver(repo)
	ctx := context.Background()

	tests := []struct {
		name     string
		input    ResolveInput
		want     int64
		wantCode string
	}{
		{
			name:  "plain base quantity",
			input: ResolveInput{Product: product, Quantity: decimal.NewFromInt(5), Mode: ModeInventory},
			want:  5,
		},
		{
			name:  "negative base quantity",
			input: ResolveInput{Product: product, Quantity: decimal.NewFromInt(-3), Mode: ModeInventory},
			want:  -3,
		},
		{
			name:  "pack multiplies quantity",
			input: ResolveInput{Product: product, Quantity: decimal.NewFromInt(2), PackID: &casePack.ID, Mode: ModePurchasing},
			want:  48,
		},
		{
			name:     "pack disabled for receiving",
			input:    ResolveInput{Product: product, Quantity: decimal.NewFromInt(1), PackID: &casePack.ID, Mode: ModeReceiving},
			wantCode: apperror.CodePackNotAllowed,
		},
		{
			name:     "pack disabled for inventory",
			input:    ResolveInput{Product: product, Quantity: decimal.NewFromInt(1), PackID: &casePack.ID, Mode: ModeInventory},
			wantCode: apperror.CodePackNotAllowed,
		},
		{
			name:     "pack of another product",
			input:    ResolveInput{Product: product, Quantity: decimal.NewFromInt(1), PackID: &foreignPack.ID, Mode: ModePurchasing},
			wantCode: apperror.CodeValidation,
		},
		{
			name:     "foreign unit rejected",
			input:    ResolveInput{Product: product, Quantity: decimal.NewFromInt(1), UnitID: &otherUnitID, Mode: ModePurchasing},
			wantCode: apperror.CodeUnitMismatch,
		},
		{
			name:  "base unit accepted explicitly",
			input: ResolveInput{Product: product, Quantity: decimal.NewFromInt(7), UnitID: &baseUnitID, Mode: ModeReceiving},
			want:  7,
		},
		{
			name:     "fractional quantity rejected",
			input:    ResolveInput{Product: product, Quantity: decimal.RequireFromString("1.5"), Mode: ModeInventory},
			wantCode: apperror.CodeValidation,
		},
		{
			name:  "fractional packs resolving to whole base units",
			input: ResolveInput{Product: product, Quantity: decimal.RequireFromString("0.5"), PackID: &casePack.ID, Mode: ModePurchasing},
			want:  12,
		},
		{
			name:     "unit and pack together rejected",
			input:    ResolveInput{Product: product, Quantity: decimal.NewFromInt(1), UnitID: &baseUnitID, PackID: &casePack.ID, Mode: ModePurchasing},
			wantCode: apperror.CodeValidation,
		},
		{
			name:     "missing product",
			input:    ResolveInput{Quantity: decimal.NewFromInt(1), Mode: ModeInventory},
			wantCode: apperror.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(ctx, orgID, tt.input)
			if tt.wantCode != "" {
				require.Error(t, err)
				appErr, ok := apperror.AsAppError(err)
				require.True(t, ok, "expected AppError, got %v", err)
				assert.Equal(t, tt.wantCode, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePackOutsideOrganization(t *testing.T) {
	orgID := id.New()
	product := &catalog.Product{OrganizationID: orgID, BaseUnitID: id.New()}
	product.ID = id.New()

	pack := &catalog.Pack{
		OrganizationID:    id.New(), // different tenant
		ProductID:         product.ID,
		Multiplier:        10,
		AllowInPurchasing: true,
	}
	pack.ID = id.New()

	resolver := NewResolver(&fakePackRepo{packs: map[id.ID]*catalog.Pack{pack.ID: pack}})

	_, err := resolver.Resolve(context.Background(), orgID, ResolveInput{
		Product:  product,
		Quantity: decimal.NewFromInt(1),
		PackID:   &pack.ID,
		Mode:     ModePurchasing,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
