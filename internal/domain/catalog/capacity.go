package catalog

import (
	"context"

	"restock/internal/core/id"
)

// Resource kinds checked against the organization's plan limits.
const (
	ResourceStore   = "store"
	ResourceProduct = "product"
)

// CapacityGate is the plan-limit pre-check consulted before admitting new
// catalog rows. The implementation lives outside this service (billing);
// failures surface as capacity errors to the caller.
type CapacityGate interface {
	AssertWithinLimits(ctx context.Context, organizationID id.ID, kind string) error
}

// NopGate admits everything. Used where no billing service is wired, such
// as the demo seeder.
type NopGate struct{}

func (NopGate) AssertWithinLimits(ctx context.Context, organizationID id.ID, kind string) error {
	return nil
}

var _ CapacityGate = NopGate{}
