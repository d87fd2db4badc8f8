package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"restock/internal/core/id"
	"restock/internal/domain/catalog"
)

func TestNopGateAdmitsAllResources(t *testing.T) {
	var gate catalog.CapacityGate = catalog.NopGate{}
	ctx := context.Background()
	orgID := id.New()

	require.NoError(t, gate.AssertWithinLimits(ctx, orgID, catalog.ResourceStore))
	require.NoError(t, gate.AssertWithinLimits(ctx, orgID, catalog.ResourceProduct))
}
